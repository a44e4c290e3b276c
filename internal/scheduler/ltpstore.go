package scheduler

import (
	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// LTPStore holds the latest traded price per symbol for one session. It
// implements broker.LTPSource, feeding PaperGateway's market-order fills,
// and is the LTP leg of sessionExprContext. One instance per session, never
// shared or locked — per §5, the only cross-session resources are the
// expiry calendar, the historical tick store, and the broker gateway.
type LTPStore struct {
	entries map[string]types.LTPEntry
}

// NewLTPStore creates an empty LTP store.
func NewLTPStore() *LTPStore {
	return &LTPStore{entries: make(map[string]types.LTPEntry)}
}

// Update records tick as the latest price for its symbol.
func (s *LTPStore) Update(tick types.Tick) {
	s.entries[tick.Symbol] = types.LTPEntry{
		LTP:       tick.LTP,
		Timestamp: tick.Timestamp,
		Volume:    tick.Volume,
		OI:        tick.OI,
	}
}

// LTP returns the latest price for symbol, ok=false if none has arrived yet.
func (s *LTPStore) LTP(symbol string) (decimal.Decimal, bool) {
	e, ok := s.entries[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return e.LTP, true
}

// Snapshot copies the current entries, for gps.Store.UpdatePrices.
func (s *LTPStore) Snapshot() map[string]types.LTPEntry {
	out := make(map[string]types.LTPEntry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
