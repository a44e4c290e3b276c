package session_test

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/internal/session"
)

type fakeRunner struct {
	status  string
	stopped bool
}

func (r *fakeRunner) Status() string { return r.status }
func (r *fakeRunner) Stop()          { r.stopped = true }

func TestRegistryGetAndStop(t *testing.T) {
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	store := gps.NewStore(zap.NewNop())
	s := session.New(zap.NewNop(), "user1", "strat1", date, store, nil, 0)
	runner := &fakeRunner{status: "running"}

	reg := session.NewRegistry(zap.NewNop(), time.Hour)
	reg.Register(s, runner, nil)

	got, ok := reg.Get(s.ID())
	if !ok || got != s {
		t.Fatal("expected to find the registered session")
	}
	if !reg.Stop(s.ID()) {
		t.Fatal("expected Stop to find the session")
	}
	if !runner.stopped {
		t.Fatal("expected Stop to propagate to the runner")
	}
	if reg.Stop("missing") {
		t.Fatal("expected Stop on an unknown id to return false")
	}
}

func TestEvictIdleDropsOnlyTerminalAndStaleEntries(t *testing.T) {
	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	store := gps.NewStore(zap.NewNop())

	running := session.New(zap.NewNop(), "user1", "running-strat", date, store, nil, 0)
	completed := session.New(zap.NewNop(), "user1", "completed-strat", date, store, nil, 0)

	reg := session.NewRegistry(zap.NewNop(), time.Minute)
	reg.Register(running, &fakeRunner{status: "running"}, nil)
	reg.Register(completed, &fakeRunner{status: "completed"}, nil)

	now := time.Now().Add(2 * time.Minute)
	evicted := reg.EvictIdle(now)
	if len(evicted) != 1 || evicted[0] != completed.ID() {
		t.Fatalf("expected only the completed session evicted, got %+v", evicted)
	}
	if _, ok := reg.Get(running.ID()); !ok {
		t.Fatal("expected the running session to survive eviction")
	}
	if _, ok := reg.Get(completed.ID()); ok {
		t.Fatal("expected the completed session to have been evicted")
	}
}
