package scheduler

import (
	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/candle"
	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/internal/indicator"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// sessionExprContext composes the LTP store, candle builder, indicator
// engine, and GPS node variables into the single expr.Context the strategy
// graph's condition/expression evaluator reads against. One instance per
// session, wired once at session construction.
type sessionExprContext struct {
	ltp              *LTPStore
	candles          *candle.Builder
	indicators       *indicator.Engine
	gps              *gps.Store
	underlyingSymbol string
}

func (c *sessionExprContext) LTP(symbol string) (decimal.Decimal, bool) {
	return c.ltp.LTP(symbol)
}

func (c *sessionExprContext) UnderlyingLTP() (decimal.Decimal, bool) {
	if c.underlyingSymbol == "" {
		return decimal.Zero, false
	}
	return c.ltp.LTP(c.underlyingSymbol)
}

func (c *sessionExprContext) CandleField(symbol string, timeframe int, field types.CandleField, offset int) (decimal.Decimal, bool) {
	return c.candles.Field(symbol, timeframe, field, offset)
}

// Indicator only resolves offset=0: the indicator engine caches the latest
// scalar per (symbol, timeframe, key) and keeps no historical series, unlike
// the candle builder. A condition referencing an indicator at a non-zero
// offset will simply not resolve.
func (c *sessionExprContext) Indicator(symbol string, timeframe int, key string, offset int) (decimal.Decimal, bool) {
	if offset != 0 {
		return decimal.Zero, false
	}
	return c.indicators.Value(symbol, timeframe, key)
}

func (c *sessionExprContext) NodeVariable(nodeID, name string) (decimal.Decimal, bool) {
	return c.gps.GetNodeVariable(nodeID, name)
}
