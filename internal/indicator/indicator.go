// Package indicator computes SMA/EMA/RSI (and similar recurrence-based
// indicators) from completed candles, one instance per
// (symbol, timeframe, key).
package indicator

import (
	"github.com/shopspring/decimal"
)

// Kind names a supported indicator family.
type Kind string

const (
	KindSMA Kind = "SMA"
	KindEMA Kind = "EMA"
	KindRSI Kind = "RSI"
)

// Indicator is a stateful recurrence-based calculator seeded from a
// warm-up window of closes. Value reports ok=false until the warm-up
// window has been satisfied.
type Indicator interface {
	Update(close decimal.Decimal) (value decimal.Decimal, ready bool)
	Value() (value decimal.Decimal, ready bool)
}

// NewIndicator constructs an Indicator for the given kind and period.
func NewIndicator(kind Kind, period int) Indicator {
	switch kind {
	case KindEMA:
		return NewEMA(period)
	case KindRSI:
		return NewRSI(period)
	case KindSMA:
		return NewSMA(period)
	default:
		return NewSMA(period)
	}
}

// SMA is a simple moving average over the last `period` closes.
type SMA struct {
	period int
	window []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates an SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{period: period, window: make([]decimal.Decimal, 0, period)}
}

// Update feeds the next close and returns the updated average.
func (s *SMA) Update(close decimal.Decimal) (decimal.Decimal, bool) {
	s.window = append(s.window, close)
	s.sum = s.sum.Add(close)
	if len(s.window) > s.period {
		s.sum = s.sum.Sub(s.window[0])
		s.window = s.window[1:]
	}
	return s.Value()
}

// Value returns the current average, ready once `period` closes have arrived.
func (s *SMA) Value() (decimal.Decimal, bool) {
	if len(s.window) < s.period {
		return decimal.Zero, false
	}
	return s.sum.Div(decimal.NewFromInt(int64(len(s.window)))), true
}

// EMA is an exponential moving average, seeded by an SMA of the first
// `period` closes and recurring in O(1) thereafter.
type EMA struct {
	period     int
	multiplier decimal.Decimal
	seed       *SMA
	current    decimal.Decimal
	ready      bool
}

// NewEMA creates an EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: decimal.NewFromFloat(2.0 / float64(period+1)),
		seed:       NewSMA(period),
	}
}

// Update feeds the next close and returns the updated EMA value.
func (e *EMA) Update(close decimal.Decimal) (decimal.Decimal, bool) {
	if !e.ready {
		seedVal, seeded := e.seed.Update(close)
		if !seeded {
			return decimal.Zero, false
		}
		e.current = seedVal
		e.ready = true
		return e.current, true
	}
	e.current = close.Sub(e.current).Mul(e.multiplier).Add(e.current)
	return e.current, true
}

// Value returns the current EMA value.
func (e *EMA) Value() (decimal.Decimal, bool) {
	return e.current, e.ready
}

// RSI is a Wilder-smoothed relative strength index.
type RSI struct {
	period       int
	prevClose    decimal.Decimal
	havePrev     bool
	gains        []decimal.Decimal
	losses       []decimal.Decimal
	avgGain      decimal.Decimal
	avgLoss      decimal.Decimal
	ready        bool
	currentValue decimal.Decimal
}

// NewRSI creates an RSI indicator with the given period.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

// Update feeds the next close and returns the updated RSI value.
func (r *RSI) Update(close decimal.Decimal) (decimal.Decimal, bool) {
	if !r.havePrev {
		r.prevClose = close
		r.havePrev = true
		return decimal.Zero, false
	}

	change := close.Sub(r.prevClose)
	r.prevClose = close

	gain := decimal.Zero
	loss := decimal.Zero
	if change.GreaterThan(decimal.Zero) {
		gain = change
	} else {
		loss = change.Abs()
	}

	if !r.ready {
		r.gains = append(r.gains, gain)
		r.losses = append(r.losses, loss)
		if len(r.gains) < r.period {
			return decimal.Zero, false
		}
		r.avgGain = sumDecimals(r.gains).Div(decimal.NewFromInt(int64(r.period)))
		r.avgLoss = sumDecimals(r.losses).Div(decimal.NewFromInt(int64(r.period)))
		r.ready = true
		r.currentValue = r.compute()
		return r.currentValue, true
	}

	periodDec := decimal.NewFromInt(int64(r.period))
	r.avgGain = r.avgGain.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(gain).Div(periodDec)
	r.avgLoss = r.avgLoss.Mul(periodDec.Sub(decimal.NewFromInt(1))).Add(loss).Div(periodDec)
	r.currentValue = r.compute()
	return r.currentValue, true
}

func (r *RSI) compute() decimal.Decimal {
	if r.avgLoss.IsZero() {
		return decimal.NewFromInt(100)
	}
	rs := r.avgGain.Div(r.avgLoss)
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
}

// Value returns the current RSI value.
func (r *RSI) Value() (decimal.Decimal, bool) {
	return r.currentValue, r.ready
}

func sumDecimals(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum
}
