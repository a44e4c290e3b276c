package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Runner is the minimal surface Registry needs from a running scheduler
// session: status for eviction, Stop for cancellation. Kept as a narrow
// interface rather than importing internal/scheduler directly, matching
// Session's own decoupling from that package via the Sink interface.
type Runner interface {
	Status() string
	Stop()
}

type registered struct {
	session   *Session
	runner    Runner
	persist   *Persistence
	lastTouch time.Time
}

// Registry holds every session a process is tracking, keyed by session_id,
// and evicts idle terminal sessions after idleTTL (§5, default 60 minutes).
// Eviction only drops the in-memory entry; JSONL files already written
// under persistence stay on disk.
type Registry struct {
	mu       sync.Mutex
	logger   *zap.Logger
	idleTTL  time.Duration
	sessions map[string]*registered
}

// NewRegistry creates a Registry. idleTTL <= 0 defaults to 60 minutes.
func NewRegistry(logger *zap.Logger, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 60 * time.Minute
	}
	return &Registry{
		logger:   logger.Named("session_registry"),
		idleTTL:  idleTTL,
		sessions: make(map[string]*registered),
	}
}

// Register adds a new running session, keyed by s.ID(). persist may be nil.
func (r *Registry) Register(s *Session, runner Runner, persist *Persistence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = &registered{session: s, runner: runner, persist: persist, lastTouch: time.Now()}
}

// Get returns the session for id, touching its last-access time so an
// actively-polled session never ages out mid-use.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	reg.lastTouch = time.Now()
	return reg.session, true
}

// Stop requests the session's scheduler halt at the next bucket boundary.
// Returns false if id is unknown.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.sessions[id]
	if !ok {
		return false
	}
	reg.runner.Stop()
	return true
}

// Len reports how many sessions are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// EvictIdle drops any session whose runner status is terminal (stopped,
// completed, error) and has gone untouched for idleTTL. Returns the evicted
// session IDs.
func (r *Registry) EvictIdle(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, reg := range r.sessions {
		if !isTerminalStatus(reg.runner.Status()) {
			continue
		}
		if now.Sub(reg.lastTouch) < r.idleTTL {
			continue
		}
		if reg.persist != nil {
			if err := reg.persist.Close(); err != nil {
				r.logger.Warn("close persistence on eviction", zap.String("session_id", id), zap.Error(err))
			}
		}
		delete(r.sessions, id)
		evicted = append(evicted, id)
	}
	return evicted
}

func isTerminalStatus(status string) bool {
	switch status {
	case "stopped", "completed", "error":
		return true
	default:
		return false
	}
}

// Run polls EvictIdle every interval until ctx is cancelled. Intended to be
// started once per process by cmd/server.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if evicted := r.EvictIdle(now); len(evicted) > 0 {
				r.logger.Info("evicted idle sessions", zap.Int("count", len(evicted)))
			}
		}
	}
}
