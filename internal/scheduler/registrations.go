package scheduler

import (
	"strings"

	"github.com/tradelayout/strategy-engine/internal/indicator"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// IndicatorRegistrations builds the indicator engine's registrations and the
// distinct timeframe list (in minutes) from a StartNode's
// tradingInstrumentConfig, per §6's strategy JSON shape. symbol is the
// (already-resolved) strategy instrument every timeframe's indicators track.
func IndicatorRegistrations(symbol string, cfg types.TradingInstrumentConfig) ([]indicator.Registration, []int) {
	var regs []indicator.Registration
	seen := make(map[int]bool)
	var timeframes []int

	for _, tf := range cfg.Timeframes {
		if !seen[tf.Timeframe] {
			seen[tf.Timeframe] = true
			timeframes = append(timeframes, tf.Timeframe)
		}
		for key, ind := range tf.Indicators {
			period := ind.Length
			if period <= 0 {
				period = ind.Period
			}
			regs = append(regs, indicator.Registration{
				Symbol:    symbol,
				Timeframe: tf.Timeframe,
				Key:       key,
				Kind:      indicatorKind(ind.IndicatorName),
				Period:    period,
			})
		}
	}
	return regs, timeframes
}

func indicatorKind(name string) indicator.Kind {
	switch strings.ToUpper(name) {
	case "EMA":
		return indicator.KindEMA
	case "RSI":
		return indicator.KindRSI
	default:
		return indicator.KindSMA
	}
}
