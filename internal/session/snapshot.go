package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/diagnostics"
)

// Progress reports where a backtest/live-sim session is against its tick
// source, shown to a subscriber as playback percentage (§4.8).
type Progress struct {
	CurrentTick int     `json:"current_tick"`
	TotalTicks  int     `json:"total_ticks"`
	Percentage  float64 `json:"percentage"`
}

// Summary is the session-wide P&L rollup shown alongside the trade list.
type Summary struct {
	OpenPositions   int             `json:"open_positions"`
	ClosedPositions int             `json:"closed_positions"`
	RealizedPNL     decimal.Decimal `json:"realized_pnl"`
	UnrealizedPNL   decimal.Decimal `json:"unrealized_pnl"`
}

// Accumulated is the session's full history as seen from tick zero.
type Accumulated struct {
	Trades        []*Trade            `json:"trades"`
	EventsHistory []diagnostics.Event `json:"events_history"`
	Summary       Summary             `json:"summary"`
}

// Delta is what changed since the last emission (or since a resuming
// subscriber's last_event_id/last_trade_id).
type Delta struct {
	Trades []*Trade            `json:"trades"`
	Events []diagnostics.Event `json:"events"`
}

// Snapshot is the wire shape pushed to (or requested by) an event-stream
// subscriber, per §4.8.
type Snapshot struct {
	SessionID   string      `json:"session_id"`
	UserID      string      `json:"user_id"`
	StrategyID  string      `json:"strategy_id"`
	Status      Status      `json:"status"`
	CurrentTime time.Time   `json:"current_time"`
	Accumulated Accumulated `json:"accumulated"`
	Delta       Delta       `json:"delta"`
	Progress    Progress    `json:"progress"`
	IsDelta     bool        `json:"is_delta"`
}
