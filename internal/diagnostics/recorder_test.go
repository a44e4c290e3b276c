package diagnostics_test

import (
	"testing"

	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/diagnostics"
)

type collectingSink struct{ events []diagnostics.Event }

func (s *collectingSink) OnDiagnosticEvent(ev diagnostics.Event) { s.events = append(s.events, ev) }

func TestRecorderForwardsAndRetainsEvents(t *testing.T) {
	sink := &collectingSink{}
	r := diagnostics.NewRecorder(zap.NewNop(), sink)

	r.RecordEvaluation("exec1", "entrySignal", "entrySignalNode", map[string]interface{}{"satisfied": true})
	r.RecordEvaluation("exec2", "entry", "entryNode", map[string]interface{}{"filled": true})

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 forwarded events, got %d", len(sink.events))
	}
	if len(r.Events()) != 2 {
		t.Fatalf("expected 2 retained events, got %d", len(r.Events()))
	}
	if sink.events[0].ExecutionID != "exec1" || sink.events[1].ExecutionID != "exec2" {
		t.Fatalf("expected insertion order preserved, got %+v", sink.events)
	}
}

func TestEventsAfterReturnsOnlyNewerEvents(t *testing.T) {
	r := diagnostics.NewRecorder(zap.NewNop(), nil)
	r.RecordEvaluation("exec1", "n1", "startNode", nil)
	r.RecordEvaluation("exec2", "n2", "entrySignalNode", nil)
	r.RecordEvaluation("exec3", "n3", "entryNode", nil)

	events, found := r.EventsAfter("exec1")
	if !found {
		t.Fatal("expected exec1 to be found")
	}
	if len(events) != 2 || events[0].ExecutionID != "exec2" || events[1].ExecutionID != "exec3" {
		t.Fatalf("expected events after exec1, got %+v", events)
	}

	full, found := r.EventsAfter("missing")
	if found {
		t.Fatal("expected not-found for an unknown execution id")
	}
	if len(full) != 3 {
		t.Fatalf("expected a full replay when last_event_id is not found, got %d", len(full))
	}

	all, found := r.EventsAfter("")
	if found {
		t.Fatal("expected found=false for an empty last_event_id")
	}
	if len(all) != 3 {
		t.Fatalf("expected a full replay when last_event_id is absent, got %d", len(all))
	}
}
