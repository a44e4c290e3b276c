// Package diagnostics implements the per-node-execution recorder (§4.9):
// it receives the evaluation_data snapshot internal/graph produces for
// every node execution and turns it into a structured Event, forwarded to
// whatever sink (internal/session's event stream) wants to observe it.
package diagnostics

import (
	"time"

	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/metrics"
)

// Event is one node execution's diagnostic snapshot. For condition nodes
// Data carries "satisfied" and "leaves" (each leaf's LHS/RHS values,
// operator, and satisfied flag, via expr.LeafDiagnostic); for entry/exit
// nodes it carries the order and resulting position/exit projection; for
// square-off, the triggering reason and how many positions/orders it
// touched. internal/graph's node catalogue populates Data; this package
// only stamps and forwards it.
type Event struct {
	ExecutionID string                 `json:"exec_id"`
	NodeID      string                 `json:"node_id"`
	NodeType    string                 `json:"node_type"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data"`
}

// Sink receives each diagnostic Event as it is recorded, in node-execution
// order. internal/session implements this to merge events into its
// accumulated/delta snapshot and append to node_events.jsonl.
type Sink interface {
	OnDiagnosticEvent(Event)
}

// Recorder implements graph.Recorder. One instance per session; retains
// every event it has seen (accumulated.events_history, §4.8) in addition to
// forwarding each one to Sink as it arrives.
type Recorder struct {
	logger  *zap.Logger
	sink    Sink
	metrics *metrics.Metrics
	events  []Event
}

// NewRecorder creates a Recorder that forwards to sink (nil is a valid
// no-op sink — the recorder still retains its own history).
func NewRecorder(logger *zap.Logger, sink Sink) *Recorder {
	return &Recorder{logger: logger.Named("diagnostics"), sink: sink}
}

// AttachMetrics wires a process-wide metrics.Metrics into the recorder so
// every recorded evaluation also increments strategy_engine_node_executions_total.
// Optional: a Recorder with no metrics attached behaves exactly as before.
func (r *Recorder) AttachMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// RecordEvaluation implements graph.Recorder.
func (r *Recorder) RecordEvaluation(executionID, nodeID, nodeType string, data map[string]interface{}) {
	ev := Event{
		ExecutionID: executionID,
		NodeID:      nodeID,
		NodeType:    nodeType,
		Timestamp:   time.Now(),
		Data:        data,
	}
	r.events = append(r.events, ev)
	r.metrics.RecordNodeExecution(nodeType)
	if r.sink != nil {
		r.sink.OnDiagnosticEvent(ev)
	}
}

// Events returns every event recorded so far, insertion order. Used to seed
// a reconnecting subscriber's full accumulated.events_history (§4.8's resume
// protocol) when no last_event_id is given.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsAfter returns every event after the one with executionID lastEventID,
// insertion order. found=false if lastEventID is empty or not present, in
// which case the caller should treat the result as a full replay per §4.8's
// resume protocol ("or full if absent/not-found").
func (r *Recorder) EventsAfter(lastEventID string) (events []Event, found bool) {
	if lastEventID == "" {
		return r.Events(), false
	}
	for i, ev := range r.events {
		if ev.ExecutionID == lastEventID {
			out := make([]Event, len(r.events)-i-1)
			copy(out, r.events[i+1:])
			return out, true
		}
	}
	return r.Events(), false
}
