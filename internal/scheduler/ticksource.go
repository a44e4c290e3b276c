package scheduler

import (
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// TickSource is a monotonic iterator of ticks for a trading day (backtest)
// or a live feed, per §4.7. Next returns ok=false once the source is
// exhausted; it never re-orders or re-delivers a tick.
type TickSource interface {
	Next() (types.Tick, bool, error)
}

// SliceTickSource replays a pre-loaded, timestamp-ascending slice of ticks.
// Grounded on the teacher's DataLoader-backed backtest engine (it drives its
// event queue from a loaded OHLCV slice the same way), adapted from bar
// iteration to tick iteration since the strategy graph reasons in ticks.
type SliceTickSource struct {
	ticks []types.Tick
	idx   int
}

// NewSliceTickSource creates a TickSource over an already timestamp-sorted
// slice of ticks.
func NewSliceTickSource(ticks []types.Tick) *SliceTickSource {
	return &SliceTickSource{ticks: ticks}
}

func (s *SliceTickSource) Next() (types.Tick, bool, error) {
	if s.idx >= len(s.ticks) {
		return types.Tick{}, false, nil
	}
	t := s.ticks[s.idx]
	s.idx++
	return t, true, nil
}

// ChannelTickSource adapts a live broker feed's tick channel to TickSource,
// for live and live-simulation sessions. A closed channel signals exhausted.
type ChannelTickSource struct {
	ch <-chan types.Tick
}

// NewChannelTickSource wraps a live tick channel as a TickSource.
func NewChannelTickSource(ch <-chan types.Tick) *ChannelTickSource {
	return &ChannelTickSource{ch: ch}
}

func (s *ChannelTickSource) Next() (types.Tick, bool, error) {
	t, ok := <-s.ch
	return t, ok, nil
}
