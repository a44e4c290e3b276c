package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tradelayout/strategy-engine/internal/diagnostics"
)

// Persistence writes a session's two append-only/rewrite files under
// <root>/<date>/<user_id>/<strategy_id>/: node_events.jsonl is appended to
// once per node execution, trades.jsonl is rewritten wholesale every time
// the trade set changes (§4.8).
type Persistence struct {
	dir        string
	eventsFile *os.File
}

// NewPersistence creates the session's directory tree and opens
// node_events.jsonl for appending.
func NewPersistence(root, userID, strategyID string, date time.Time) (*Persistence, error) {
	dir := filepath.Join(root, date.Format("2006-01-02"), userID, strategyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create dir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "node_events.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("session: open node_events.jsonl: %w", err)
	}
	return &Persistence{dir: dir, eventsFile: f}, nil
}

type eventRecord struct {
	ExecutionID string                 `json:"exec_id"`
	Event       map[string]interface{} `json:"event"`
	Timestamp   time.Time              `json:"timestamp"`
}

// AppendEvent writes one {exec_id,event,timestamp} line to node_events.jsonl.
func (p *Persistence) AppendEvent(ev diagnostics.Event) error {
	rec := eventRecord{
		ExecutionID: ev.ExecutionID,
		Event: map[string]interface{}{
			"node_id":   ev.NodeID,
			"node_type": ev.NodeType,
			"data":      ev.Data,
		},
		Timestamp: ev.Timestamp,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = p.eventsFile.Write(line)
	return err
}

// WriteTrades rewrites trades.jsonl from the current trade set, one JSON
// object per line in tradeOrder. Writes to a temp file first and renames
// over the target so a reader never observes a partial file.
func (p *Persistence) WriteTrades(trades []*Trade) error {
	tmpPath := filepath.Join(p.dir, "trades.jsonl.tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, t := range trades {
		if err := enc.Encode(t); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, filepath.Join(p.dir, "trades.jsonl"))
}

func (p *Persistence) Close() error {
	if p.eventsFile == nil {
		return nil
	}
	return p.eventsFile.Close()
}
