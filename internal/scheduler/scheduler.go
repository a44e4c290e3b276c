// Package scheduler implements the tick processor / session scheduler
// (§4.7): second-batching of ticks, one strategy-graph traversal per
// second-bucket, and cooperative pacing for live-simulation sessions.
// Grounded on the teacher's backtester.Engine event loop (internal/backtester/engine.go),
// adapted from an event-queue-driven loop over OHLCV bars to a tick-batching
// loop that drives internal/graph's per-tick traversal directly.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/broker"
	"github.com/tradelayout/strategy-engine/internal/candle"
	"github.com/tradelayout/strategy-engine/internal/fno"
	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/internal/graph"
	"github.com/tradelayout/strategy-engine/internal/indicator"
	"github.com/tradelayout/strategy-engine/internal/metrics"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// Sink receives derived per-second-bucket state so the session & event
// stream (internal/session) can build its accumulated/delta snapshots
// without the scheduler needing to know the stream's shape.
type Sink interface {
	OnSecondTick(now time.Time)
}

// Config wires everything one strategy session needs. Each field is owned
// by exactly this session for its lifetime, per §5's single-threaded
// cooperative scheduling model.
type Config struct {
	Logger *zap.Logger

	Graph      *graph.Graph
	GPS        *gps.Store
	Candles    *candle.Builder
	Indicators *indicator.Engine
	LTP        *LTPStore
	Resolver   *fno.Resolver
	Gateway    broker.OrderGateway
	Recorder   graph.Recorder
	Sink       Sink
	Metrics    *metrics.Metrics

	// Mode is "backtest" or "live" (also used for live-simulation, which is
	// "live" mode paced by SpeedMultiplier rather than run unthrottled).
	Mode string
	// SpeedMultiplier is the wall-clock-to-sim-clock ratio for live-sim
	// pacing; <= 0 means run unthrottled (backtest mode ignores it).
	SpeedMultiplier float64

	StrategyScale    decimal.Decimal
	UnderlyingSymbol string
	// Timeframes are the distinct candle timeframes (minutes) the strategy's
	// indicators are registered against; see IndicatorRegistrations.
	Timeframes []int
}

// Session runs one strategy's tick processing loop. Not safe for concurrent
// use: a session is pinned to one worker goroutine for its lifetime.
type Session struct {
	logger *zap.Logger

	graph      *graph.Graph
	gps        *gps.Store
	candles    *candle.Builder
	indicators *indicator.Engine
	ltp        *LTPStore
	expr       *sessionExprContext
	resolver   *fno.Resolver
	gateway    broker.OrderGateway
	recorder   graph.Recorder
	sink       Sink
	metrics    *metrics.Metrics

	mode            string
	speedMultiplier float64
	strategyScale   decimal.Decimal
	timeframes      []int

	resolvedSymbol string
	peeked         *types.Tick

	stopRequested atomic.Bool
	status        atomic.Value // string
}

// NewSession builds a session ready to Run against a TickSource.
func NewSession(cfg Config) *Session {
	scale := cfg.StrategyScale
	if scale.IsZero() {
		scale = decimal.NewFromInt(1)
	}
	s := &Session{
		logger:     cfg.Logger,
		graph:      cfg.Graph,
		gps:        cfg.GPS,
		candles:    cfg.Candles,
		indicators: cfg.Indicators,
		ltp:        cfg.LTP,
		expr: &sessionExprContext{
			ltp:              cfg.LTP,
			candles:          cfg.Candles,
			indicators:       cfg.Indicators,
			gps:              cfg.GPS,
			underlyingSymbol: cfg.UnderlyingSymbol,
		},
		resolver:        cfg.Resolver,
		gateway:         cfg.Gateway,
		recorder:        cfg.Recorder,
		sink:            cfg.Sink,
		metrics:         cfg.Metrics,
		mode:            cfg.Mode,
		speedMultiplier: cfg.SpeedMultiplier,
		strategyScale:   scale,
		timeframes:      cfg.Timeframes,
	}
	s.status.Store("idle")
	return s
}

// Status reports the session's current lifecycle state: idle, running,
// stopped, completed, or error.
func (s *Session) Status() string {
	v, _ := s.status.Load().(string)
	return v
}

// Stop requests the loop exit at the next bucket boundary, per §5's
// cancellation semantics. Safe to call from another goroutine.
func (s *Session) Stop() {
	s.stopRequested.Store(true)
}

func (s *Session) setStatus(v string) { s.status.Store(v) }

// Run drives the session's loop until the TickSource is exhausted, ctx is
// cancelled, or Stop is called. Returns the first fatal error encountered;
// a *graph.FatalError means the strategy graph itself hit an unrecoverable
// condition (e.g. a concurrent-open-position guard or a cyclic variable).
func (s *Session) Run(ctx context.Context, source TickSource) error {
	s.setStatus("running")
	for {
		if s.stopRequested.Load() {
			s.setStatus("stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			s.setStatus("stopped")
			return ctx.Err()
		default:
		}

		bucketStartedAt := time.Now()
		bucket, err := s.nextBucket(source)
		if err != nil {
			s.setStatus("error")
			return err
		}
		if len(bucket) == 0 {
			s.setStatus("completed")
			return nil
		}

		for _, tick := range bucket {
			s.ltp.Update(tick)
			for _, tf := range s.timeframes {
				s.candles.OnTick(tick, tf)
			}
			if s.metrics != nil {
				s.metrics.TicksProcessed.Inc()
			}
		}

		last := bucket[len(bucket)-1]
		s.gps.SetCurrentTickTime(last.Timestamp)
		s.gps.UpdatePrices(s.ltp.Snapshot(), s.expr.underlyingSymbol)

		tickCtx := s.buildTickContext(ctx, last.Timestamp)
		if err := s.graph.Traverse(tickCtx); err != nil {
			s.setStatus("error")
			return err
		}
		s.resolvedSymbol = tickCtx.StrategySymbol

		if s.metrics != nil {
			s.metrics.BucketsProcessed.Inc()
			s.metrics.BucketLagSeconds.Observe(time.Since(bucketStartedAt).Seconds())
		}

		if s.sink != nil {
			s.sink.OnSecondTick(last.Timestamp)
		}

		if s.mode == "live" && s.speedMultiplier > 0 {
			target := time.Duration(float64(time.Second) / s.speedMultiplier)
			if sleepFor := target - time.Since(bucketStartedAt); sleepFor > 0 {
				select {
				case <-time.After(sleepFor):
				case <-ctx.Done():
					s.setStatus("stopped")
					return ctx.Err()
				}
			}
		}
	}
}

// nextBucket groups ticks sharing the same truncated-to-the-second
// timestamp, per §4.7 step 1, using a one-tick lookahead to detect the
// bucket boundary.
func (s *Session) nextBucket(source TickSource) ([]types.Tick, error) {
	first := s.peeked
	s.peeked = nil
	if first == nil {
		t, ok, err := source.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		first = &t
	}

	bucketSecond := first.Timestamp.Truncate(time.Second)
	bucket := []types.Tick{*first}
	for {
		t, ok, err := source.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if t.Timestamp.Truncate(time.Second).After(bucketSecond) {
			tc := t
			s.peeked = &tc
			break
		}
		bucket = append(bucket, t)
	}
	return bucket, nil
}

func (s *Session) buildTickContext(ctx context.Context, now time.Time) *graph.TickContext {
	return &graph.TickContext{
		Context:        ctx,
		Now:            now,
		Mode:           s.mode,
		Logger:         s.logger,
		GPS:            s.gps,
		Expr:           s.expr,
		Gateway:        s.gateway,
		Resolver:       s.resolver,
		StrategySymbol: s.resolvedSymbol,
		StrategyScale:  s.strategyScale,
		Recorder:       s.recorder,
	}
}
