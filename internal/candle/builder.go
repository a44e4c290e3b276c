// Package candle builds OHLCV bars from ticks, per (symbol, timeframe).
package candle

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// OnComplete is invoked whenever a candle rolls over and the previous bar
// is finalized. The pointer is the same one Builder retains in its
// completed history; implementations (the indicator engine) may write its
// Indicators map but must not change its OHLCV fields.
type OnComplete func(completed *types.Candle)

// key identifies one (symbol, timeframe) candle series.
type key struct {
	symbol    string
	timeframe int
}

// series tracks the forming candle and retained history for one (symbol,timeframe).
type series struct {
	current   *types.Candle
	completed []*types.Candle
}

// Builder maintains forming and completed candles for every registered
// (symbol, timeframe) pair within one session. Not safe for concurrent use
// across sessions; the owning session's scheduler is the sole caller.
type Builder struct {
	logger      *zap.Logger
	maxRetained int
	onComplete  OnComplete

	series map[key]*series
}

// NewBuilder creates a candle builder that retains up to maxRetained
// completed candles per (symbol, timeframe) series.
func NewBuilder(logger *zap.Logger, maxRetained int, onComplete OnComplete) *Builder {
	if maxRetained <= 0 {
		maxRetained = 500
	}
	return &Builder{
		logger:      logger.Named("candle"),
		maxRetained: maxRetained,
		onComplete:  onComplete,
		series:      make(map[key]*series),
	}
}

// bucketStart floors t to the timeframe boundary (timeframe in minutes).
func bucketStart(t time.Time, timeframeMinutes int) time.Time {
	interval := time.Duration(timeframeMinutes) * time.Minute
	return t.Truncate(interval)
}

// OnTick feeds one tick into the (tick.Symbol, timeframe) series, completing
// and opening candles as bucket boundaries are crossed. Ticks older than the
// current bucket are dropped with a warning: the stream is assumed monotonic.
func (b *Builder) OnTick(tick types.Tick, timeframeMinutes int) {
	k := key{symbol: tick.Symbol, timeframe: timeframeMinutes}
	s, ok := b.series[k]
	if !ok {
		s = &series{}
		b.series[k] = s
	}

	bucket := bucketStart(tick.Timestamp, timeframeMinutes)

	if s.current == nil {
		s.current = b.openCandle(tick, bucket, timeframeMinutes)
		return
	}

	if bucket.Before(s.current.Timestamp) {
		b.logger.Warn("dropping out-of-order tick",
			zap.String("symbol", tick.Symbol),
			zap.Int("timeframe", timeframeMinutes),
			zap.Time("tick_time", tick.Timestamp),
			zap.Time("current_bucket", s.current.Timestamp),
		)
		return
	}

	if bucket.After(s.current.Timestamp) {
		b.complete(k, s)
		s.current = b.openCandle(tick, bucket, timeframeMinutes)
		return
	}

	b.update(s.current, tick)
}

func (b *Builder) openCandle(tick types.Tick, bucket time.Time, timeframeMinutes int) *types.Candle {
	return &types.Candle{
		Symbol:    tick.Symbol,
		Timeframe: timeframeMinutes,
		Timestamp: bucket,
		Open:      tick.LTP,
		High:      tick.LTP,
		Low:       tick.LTP,
		Close:     tick.LTP,
		Volume:    tick.LTQ,
		TickCount: 1,
		Completed: false,
	}
}

func (b *Builder) update(c *types.Candle, tick types.Tick) {
	if tick.LTP.GreaterThan(c.High) {
		c.High = tick.LTP
	}
	if tick.LTP.LessThan(c.Low) {
		c.Low = tick.LTP
	}
	c.Close = tick.LTP
	c.Volume = c.Volume.Add(tick.LTQ)
	c.TickCount++
}

func (b *Builder) complete(k key, s *series) {
	s.current.Completed = true
	s.completed = append(s.completed, s.current)
	if len(s.completed) > b.maxRetained {
		s.completed = s.completed[len(s.completed)-b.maxRetained:]
	}
	if b.onComplete != nil {
		b.onComplete(s.current)
	}
}

// Current returns the forming candle for (symbol, timeframe), or nil.
func (b *Builder) Current(symbol string, timeframeMinutes int) *types.Candle {
	s, ok := b.series[key{symbol: symbol, timeframe: timeframeMinutes}]
	if !ok {
		return nil
	}
	return s.current
}

// Closes returns the last n completed closes (oldest first) for
// (symbol, timeframe), used for SMA/EMA/RSI warm-up.
func (b *Builder) Closes(symbol string, timeframeMinutes, n int) []decimal.Decimal {
	s, ok := b.series[key{symbol: symbol, timeframe: timeframeMinutes}]
	if !ok {
		return nil
	}
	completed := s.completed
	if n > 0 && len(completed) > n {
		completed = completed[len(completed)-n:]
	}
	closes := make([]decimal.Decimal, len(completed))
	for i, c := range completed {
		closes[i] = c.Close
	}
	return closes
}

// Field returns the value of field at offset (0 = most recent completed
// candle, -1 = one before that, …) for (symbol, timeframe). ok=false if the
// offset does not resolve (insufficient history).
func (b *Builder) Field(symbol string, timeframeMinutes int, field types.CandleField, offset int) (decimal.Decimal, bool) {
	s, ok := b.series[key{symbol: symbol, timeframe: timeframeMinutes}]
	if !ok || offset > 0 {
		return decimal.Zero, false
	}
	idx := len(s.completed) - 1 + offset
	if idx < 0 || idx >= len(s.completed) {
		return decimal.Zero, false
	}
	return s.completed[idx].Field(field), true
}

// Completed returns the completed-candle history for (symbol, timeframe),
// oldest first.
func (b *Builder) Completed(symbol string, timeframeMinutes int) []*types.Candle {
	s, ok := b.series[key{symbol: symbol, timeframe: timeframeMinutes}]
	if !ok {
		return nil
	}
	return s.completed
}
