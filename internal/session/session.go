// Package session implements the session and event stream (§4.8): a
// per-(user, strategy, date) accumulator that turns diagnostics.Events and
// gps.Position changes into the accumulated/delta snapshot subscribers poll
// or resume from, and persists both to append-only JSONL files.
package session

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/diagnostics"
	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/internal/metrics"
)

// Status is the session's own lifecycle state, distinct from a single
// Trade's TradeStatus.
type Status string

const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ID derives the stable session_id from user_id+strategy_id+date.
func ID(userID, strategyID string, date time.Time) string {
	return fmt.Sprintf("%s:%s:%s", userID, strategyID, date.Format("2006-01-02"))
}

// Session implements scheduler.Sink and diagnostics.Sink: it is handed to a
// running scheduler.Session and a graph.Recorder so it sees every
// node-execution event and every second-bucket boundary without either of
// those packages knowing it exists.
type Session struct {
	mu sync.Mutex

	logger *zap.Logger

	id, userID, strategyID string

	gps *gps.Store

	status      Status
	currentTime time.Time
	totalTicks  int
	currentTick int

	events     []diagnostics.Event
	eventIndex map[string]int

	trades     map[string]*Trade
	tradeOrder []string

	deltaEvents []diagnostics.Event
	deltaTrades map[string]*Trade

	persist *Persistence
	metrics *metrics.Metrics
}

// New creates a Session. persist may be nil to run without JSONL
// persistence (e.g. in tests). totalTicks is the number of one-second buckets
// the tick source will deliver (OnSecondTick advances the count once per
// bucket), used for Progress.Percentage; pass 0 if unknown (percentage stays 0).
func New(logger *zap.Logger, userID, strategyID string, date time.Time, gpsStore *gps.Store, persist *Persistence, totalTicks int) *Session {
	return &Session{
		logger:      logger.Named("session"),
		id:          ID(userID, strategyID, date),
		userID:      userID,
		strategyID:  strategyID,
		gps:         gpsStore,
		status:      StatusRunning,
		totalTicks:  totalTicks,
		eventIndex:  make(map[string]int),
		trades:      make(map[string]*Trade),
		deltaTrades: make(map[string]*Trade),
		persist:     persist,
	}
}

func (s *Session) ID() string { return s.id }

// AttachMetrics wires a process-wide metrics.Metrics into the session so
// every trade that transitions to CLOSED bumps
// strategy_engine_trades_closed_total. Optional, matching
// diagnostics.Recorder.AttachMetrics.
func (s *Session) AttachMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func (s *Session) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// OnDiagnosticEvent implements diagnostics.Sink.
func (s *Session) OnDiagnosticEvent(ev diagnostics.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventIndex[ev.ExecutionID] = len(s.events)
	s.events = append(s.events, ev)
	s.deltaEvents = append(s.deltaEvents, ev)

	if s.persist != nil {
		if err := s.persist.AppendEvent(ev); err != nil {
			s.logger.Warn("append node event", zap.Error(err))
		}
	}
}

// OnSecondTick implements scheduler.Sink. It runs after the scheduler's
// per-bucket graph traversal, so GPS reflects every position change the
// bucket produced; it recomputes trade projections from GPS and advances
// playback progress.
func (s *Session) OnSecondTick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentTime = now
	s.currentTick++
	s.upsertTradesLocked()

	if s.totalTicks > 0 && s.currentTick >= s.totalTicks {
		s.status = StatusCompleted
	}
}

func (s *Session) upsertTradesLocked() {
	for _, pos := range s.gps.GetAllPositions() {
		next := tradeFromPosition(pos)
		existing, known := s.trades[next.TradeID]
		if known && equalProjection(*existing, next) {
			continue
		}
		if !known {
			s.tradeOrder = append(s.tradeOrder, next.TradeID)
		}
		if next.Status == TradeClosed && (!known || existing.Status != TradeClosed) {
			s.recordTradeClosedLocked(next)
		}
		stored := next
		s.trades[next.TradeID] = &stored
		s.deltaTrades[next.TradeID] = &stored
	}

	if s.persist != nil {
		if err := s.persist.WriteTrades(s.orderedTradesLocked()); err != nil {
			s.logger.Warn("write trades", zap.Error(err))
		}
	}
}

func (s *Session) recordTradeClosedLocked(t Trade) {
	if s.metrics == nil {
		return
	}
	result := "flat"
	switch {
	case t.RealizedPNL.IsPositive():
		result = "win"
	case t.RealizedPNL.IsNegative():
		result = "loss"
	}
	s.metrics.RecordTradeClosed(result)
}

func (s *Session) orderedTradesLocked() []*Trade {
	out := make([]*Trade, 0, len(s.tradeOrder))
	for _, id := range s.tradeOrder {
		if t, ok := s.trades[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Emit returns the session's current accumulated+delta snapshot and clears
// the delta buffers, for a live subscriber pushed to once per emission tick.
func (s *Session) Emit() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	deltaEvents := s.deltaEvents
	deltaTrades := make([]*Trade, 0, len(s.deltaTrades))
	for _, id := range s.tradeOrder {
		if t, ok := s.deltaTrades[id]; ok {
			deltaTrades = append(deltaTrades, t)
		}
	}

	snap := Snapshot{
		SessionID:   s.id,
		UserID:      s.userID,
		StrategyID:  s.strategyID,
		Status:      s.status,
		CurrentTime: s.currentTime,
		Accumulated: s.accumulatedLocked(),
		Delta:       Delta{Trades: deltaTrades, Events: deltaEvents},
		Progress:    s.progressLocked(),
		IsDelta:     true,
	}

	s.deltaEvents = nil
	s.deltaTrades = make(map[string]*Trade)
	return snap
}

// InitialState implements the resume protocol: a subscriber supplies the
// last_event_id/last_trade_id it already has, and gets everything after
// those (or a full accumulated replay if either is empty or not found).
func (s *Session) InitialState(lastEventID, lastTradeID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, eventsFound := s.eventsAfterLocked(lastEventID)
	trades, tradesFound := s.tradesAfterLocked(lastTradeID)

	return Snapshot{
		SessionID:   s.id,
		UserID:      s.userID,
		StrategyID:  s.strategyID,
		Status:      s.status,
		CurrentTime: s.currentTime,
		Accumulated: s.accumulatedLocked(),
		Delta:       Delta{Trades: trades, Events: events},
		Progress:    s.progressLocked(),
		IsDelta:     eventsFound || tradesFound,
	}
}

func (s *Session) eventsAfterLocked(lastEventID string) (events []diagnostics.Event, found bool) {
	if lastEventID == "" {
		return append([]diagnostics.Event(nil), s.events...), false
	}
	idx, ok := s.eventIndex[lastEventID]
	if !ok {
		return append([]diagnostics.Event(nil), s.events...), false
	}
	out := make([]diagnostics.Event, len(s.events)-idx-1)
	copy(out, s.events[idx+1:])
	return out, true
}

func (s *Session) tradesAfterLocked(lastTradeID string) (trades []*Trade, found bool) {
	if lastTradeID == "" {
		return s.orderedTradesLocked(), false
	}
	for i, id := range s.tradeOrder {
		if id != lastTradeID {
			continue
		}
		out := make([]*Trade, 0, len(s.tradeOrder)-i-1)
		for _, rest := range s.tradeOrder[i+1:] {
			out = append(out, s.trades[rest])
		}
		return out, true
	}
	return s.orderedTradesLocked(), false
}

func (s *Session) accumulatedLocked() Accumulated {
	realized, unrealized, _ := s.gps.OverallPNL()
	return Accumulated{
		Trades:        s.orderedTradesLocked(),
		EventsHistory: append([]diagnostics.Event(nil), s.events...),
		Summary: Summary{
			OpenPositions:   len(s.gps.GetOpenPositions()),
			ClosedPositions: len(s.gps.GetClosedPositions()),
			RealizedPNL:     realized,
			UnrealizedPNL:   unrealized,
		},
	}
}

func (s *Session) progressLocked() Progress {
	pct := 0.0
	if s.totalTicks > 0 {
		pct = float64(s.currentTick) / float64(s.totalTicks) * 100
	}
	return Progress{CurrentTick: s.currentTick, TotalTicks: s.totalTicks, Percentage: pct}
}
