package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/api"
	"github.com/tradelayout/strategy-engine/internal/broker"
	"github.com/tradelayout/strategy-engine/internal/candle"
	"github.com/tradelayout/strategy-engine/internal/config"
	"github.com/tradelayout/strategy-engine/internal/data"
	"github.com/tradelayout/strategy-engine/internal/diagnostics"
	"github.com/tradelayout/strategy-engine/internal/fno"
	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/internal/graph"
	"github.com/tradelayout/strategy-engine/internal/indicator"
	"github.com/tradelayout/strategy-engine/internal/metrics"
	"github.com/tradelayout/strategy-engine/internal/scheduler"
	"github.com/tradelayout/strategy-engine/internal/session"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// spotAdapter adapts an LTPStore (keyed by a session's already-resolved
// trading symbol) to fno.SpotSource, whose callers pass the underlying's
// base symbol directly.
type spotAdapter struct {
	ltp *scheduler.LTPStore
}

func (a spotAdapter) UnderlyingLTP(base string) (decimal.Decimal, bool) {
	return a.ltp.LTP(base)
}

// Coordinator implements api.SessionStarter: it owns constructing every
// per-session component (graph, GPS, candles, indicators, gateway,
// recorder, scheduler session) from a CreateSessionRequest and launching
// the session's Run loop, keeping internal/api itself free of those
// package dependencies (DESIGN.md, internal/api section).
type Coordinator struct {
	logger   *zap.Logger
	cfg      *config.Config
	registry *session.Registry
	calendar *fno.Calendar
	store    *data.Store
	metrics  *metrics.Metrics
}

// NewCoordinator builds a Coordinator. calendar may be empty (no known
// expiries) for strategies that never touch F&O symbols.
func NewCoordinator(logger *zap.Logger, cfg *config.Config, registry *session.Registry, calendar *fno.Calendar, store *data.Store, m *metrics.Metrics) *Coordinator {
	return &Coordinator{logger: logger, cfg: cfg, registry: registry, calendar: calendar, store: store, metrics: m}
}

// StartSession implements api.SessionStarter.
func (c *Coordinator) StartSession(ctx context.Context, req api.CreateSessionRequest) (string, error) {
	g, strategyScale, err := graph.BuildFromDef(&req.Graph, req.StrategyID)
	if err != nil {
		return "", fmt.Errorf("build graph: %w", err)
	}

	startData, err := startNodeData(&req.Graph)
	if err != nil {
		return "", fmt.Errorf("read start node: %w", err)
	}

	symbol := startData.TradingInstrumentConfig.Symbol
	if symbol == "" {
		symbol = startData.TradingInstrument.Symbol
	}
	registrations, timeframes := scheduler.IndicatorRegistrations(symbol, startData.TradingInstrumentConfig)

	logger := c.logger.Named("session").With(zap.String("user_id", req.UserID), zap.String("strategy_id", req.StrategyID))

	date := time.Now()
	if len(req.Ticks) > 0 {
		date = req.Ticks[0].Timestamp
	} else if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return "", fmt.Errorf("parse date: %w", err)
		}
		date = parsed
	}

	ticks := req.Ticks
	if len(ticks) == 0 {
		loaded, err := c.store.LoadTicks(ctx, symbol, date)
		if err != nil {
			return "", fmt.Errorf("load ticks for %s on %s: %w", symbol, date.Format("2006-01-02"), err)
		}
		ticks = loaded
	}

	gpsStore := gps.NewStore(logger)
	ltp := scheduler.NewLTPStore()
	indicators := indicator.NewEngine(logger, registrations)
	candles := candle.NewBuilder(logger, 500, indicators.OnCandleComplete)
	resolver := fno.NewResolver(c.calendar, spotAdapter{ltp: ltp})
	gateway := broker.NewPaperGateway(ltp)
	gateway.AttachMetrics(c.metrics)

	persist, err := session.NewPersistence(c.cfg.Session.PersistenceRoot, req.UserID, req.StrategyID, date)
	if err != nil {
		return "", fmt.Errorf("open session persistence: %w", err)
	}

	// Session progress advances once per one-second bucket, so its total is
	// the number of distinct seconds in the replay, not the tick count.
	totalBuckets := 0
	var lastSecond time.Time
	for i, t := range ticks {
		if sec := t.Timestamp.Truncate(time.Second); i == 0 || sec.After(lastSecond) {
			totalBuckets++
			lastSecond = sec
		}
	}

	sess := session.New(logger, req.UserID, req.StrategyID, date, gpsStore, persist, totalBuckets)
	sess.AttachMetrics(c.metrics)
	recorder := diagnostics.NewRecorder(logger, sess)
	recorder.AttachMetrics(c.metrics)

	speedMultiplier := req.SpeedMultiplier
	if speedMultiplier <= 0 {
		speedMultiplier = c.cfg.Scheduler.SpeedMultiplier
	}
	mode := req.Mode
	if mode == "" {
		mode = c.cfg.Scheduler.Mode
	}

	schedSession := scheduler.NewSession(scheduler.Config{
		Logger:           logger,
		Graph:            g,
		GPS:              gpsStore,
		Candles:          candles,
		Indicators:       indicators,
		LTP:              ltp,
		Resolver:         resolver,
		Gateway:          gateway,
		Recorder:         recorder,
		Sink:             sess,
		Metrics:          c.metrics,
		Mode:             mode,
		SpeedMultiplier:  speedMultiplier,
		StrategyScale:    strategyScale,
		UnderlyingSymbol: req.UnderlyingSymbol,
		Timeframes:       timeframes,
	})

	c.registry.Register(sess, schedSession, persist)
	if c.metrics != nil {
		c.metrics.SessionsActive.Inc()
	}

	source := scheduler.NewSliceTickSource(ticks)
	go func() {
		defer func() {
			if c.metrics != nil {
				c.metrics.SessionsActive.Dec()
			}
			if err := persist.Close(); err != nil {
				logger.Warn("close session persistence", zap.Error(err))
			}
		}()
		if err := schedSession.Run(ctx, source); err != nil {
			logger.Error("session run ended with error", zap.Error(err))
			sess.SetStatus(session.StatusError)
			return
		}
		if sess.Status() == session.StatusRunning {
			sess.SetStatus(session.StatusCompleted)
		}
	}()

	return sess.ID(), nil
}

func startNodeData(def *types.GraphDef) (*types.StartNodeData, error) {
	for _, nd := range def.Nodes {
		if nd.Type != types.NodeTypeStart {
			continue
		}
		var payload types.StartNodeData
		if err := json.Unmarshal(nd.Data, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}
	return nil, fmt.Errorf("graph has no startNode")
}
