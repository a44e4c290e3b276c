package session

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// TradeStatus is a trade projection's lifecycle state, derived from how much
// of its underlying position's quantity has been closed (§4.8).
type TradeStatus string

const (
	TradeOpen    TradeStatus = "OPEN"
	TradePartial TradeStatus = "PARTIAL"
	TradeClosed  TradeStatus = "CLOSED"
)

// Trade is the session's derived projection of one gps.Position, keyed by
// (position_id, re_entry_num) via Position.TradeID(). It is what gets
// upserted into accumulated.trades and persisted to trades.jsonl.
type Trade struct {
	TradeID       string          `json:"trade_id"`
	PositionID    string          `json:"position_id"`
	ReEntryNum    int             `json:"re_entry_num"`
	Symbol        string          `json:"symbol"`
	Side          types.Side      `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	QtyClosed     decimal.Decimal `json:"qty_closed"`
	Status        TradeStatus     `json:"status"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	ExitPrice     decimal.Decimal `json:"exit_price,omitempty"`
	RealizedPNL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPNL decimal.Decimal `json:"unrealized_pnl"`
	EntryTime     time.Time       `json:"entry_time"`
	ExitTime      time.Time       `json:"exit_time,omitempty"`
}

// tradeFromPosition derives a Trade projection from a gps.Position. Status
// follows qty_closed against quantity: nothing closed is OPEN, some but not
// all is PARTIAL, everything (or the position itself marked closed) is
// CLOSED.
func tradeFromPosition(pos *gps.Position) Trade {
	qtyClosed := decimal.Zero
	for _, txn := range pos.Transactions {
		if txn.Status == gps.TransactionClosed {
			qtyClosed = qtyClosed.Add(txn.Quantity)
		}
	}

	status := TradeOpen
	switch {
	case pos.Status == "closed" || (!pos.Quantity.IsZero() && qtyClosed.GreaterThanOrEqual(pos.Quantity)):
		status = TradeClosed
	case qtyClosed.GreaterThan(decimal.Zero):
		status = TradePartial
	}

	return Trade{
		TradeID:       pos.TradeID(),
		PositionID:    pos.PositionID,
		ReEntryNum:    pos.ReEntryNum,
		Symbol:        pos.Symbol,
		Side:          pos.Side,
		Quantity:      pos.Quantity,
		QtyClosed:     qtyClosed,
		Status:        status,
		EntryPrice:    pos.EntryPrice,
		ExitPrice:     pos.ExitPrice,
		RealizedPNL:   pos.RealizedPNL,
		UnrealizedPNL: pos.UnrealizedPNL,
		EntryTime:     pos.EntryTime,
		ExitTime:      pos.ExitTime,
	}
}

// equalProjection reports whether two Trade snapshots of the same trade_id
// agree on everything a subscriber would care about; a recompute that is
// not equal to the stored projection goes into this tick's delta buffer.
func equalProjection(a, b Trade) bool {
	return a.Status == b.Status &&
		a.QtyClosed.Equal(b.QtyClosed) &&
		a.RealizedPNL.Equal(b.RealizedPNL) &&
		a.UnrealizedPNL.Equal(b.UnrealizedPNL) &&
		a.ExitPrice.Equal(b.ExitPrice) &&
		a.ExitTime.Equal(b.ExitTime)
}
