package indicator

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// Registration describes one (symbol, timeframe, key) indicator to compute.
type Registration struct {
	Symbol    string
	Timeframe int
	Key       string
	Kind      Kind
	Period    int
}

type seriesKey struct {
	symbol    string
	timeframe int
	key       string
}

// Engine computes registered indicators on every completed candle and
// writes the results into the candle's Indicators map and into its own
// scalar cache for condition-evaluator lookups. Single-goroutine usage
// per session — no locking.
type Engine struct {
	logger *zap.Logger
	state  map[seriesKey]Indicator
}

// NewEngine creates an indicator engine from a set of registrations.
func NewEngine(logger *zap.Logger, registrations []Registration) *Engine {
	e := &Engine{
		logger: logger.Named("indicator"),
		state:  make(map[seriesKey]Indicator, len(registrations)),
	}
	for _, r := range registrations {
		k := seriesKey{symbol: r.Symbol, timeframe: r.Timeframe, key: r.Key}
		e.state[k] = NewIndicator(r.Kind, r.Period)
	}
	return e
}

// OnCandleComplete updates every indicator registered for the candle's
// (symbol, timeframe) and writes results into the candle's Indicators map.
// Wire this as the candle.Builder's OnComplete callback.
func (e *Engine) OnCandleComplete(c *types.Candle) {
	if c.Indicators == nil {
		c.Indicators = make(map[string]*decimal.Decimal)
	}
	for k, ind := range e.state {
		if k.symbol != c.Symbol || k.timeframe != c.Timeframe {
			continue
		}
		value, ready := ind.Update(c.Close)
		if !ready {
			c.Indicators[k.key] = nil
			continue
		}
		v := value
		c.Indicators[k.key] = &v
	}
}

// Value returns the cached latest scalar for (symbol, timeframe, key).
// ok=false before warm-up completes or if unregistered.
func (e *Engine) Value(symbol string, timeframe int, key string) (decimal.Decimal, bool) {
	ind, ok := e.state[seriesKey{symbol: symbol, timeframe: timeframe, key: key}]
	if !ok {
		return decimal.Zero, false
	}
	return ind.Value()
}
