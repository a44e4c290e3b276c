// Package metrics defines the prometheus collectors the engine exposes at
// /metrics. Grounded on the pack's only prometheus usage (chidi150c-coinbase's
// metrics.go): package-level collectors registered once, with small typed
// helper methods instead of exported globals, since this engine runs many
// concurrent sessions per process rather than the single bot loop that
// example was written for.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the engine updates. One instance per
// process, threaded into internal/scheduler, internal/diagnostics and
// internal/broker; nil-safe via the optional fields those packages already
// accept, so a caller that doesn't want metrics can pass nil.
type Metrics struct {
	TicksProcessed      prometheus.Counter
	BucketsProcessed    prometheus.Counter
	NodeExecutions      *prometheus.CounterVec
	OrdersPlaced        *prometheus.CounterVec
	OrdersRejected      *prometheus.CounterVec
	TradesClosed        *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
	BucketLagSeconds    prometheus.Histogram
}

// New creates and registers the engine's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_engine_ticks_processed_total",
			Help: "Ticks fed into a session's candle/indicator/GPS update.",
		}),
		BucketsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_engine_buckets_processed_total",
			Help: "One-second tick buckets that completed a strategy-graph traversal.",
		}),
		NodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_engine_node_executions_total",
			Help: "Node executions recorded by the diagnostics recorder, by node type.",
		}, []string{"node_type"}),
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_engine_orders_placed_total",
			Help: "Orders placed through the broker gateway, by side.",
		}, []string{"side"}),
		OrdersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_engine_orders_rejected_total",
			Help: "Orders rejected by the broker gateway, by reason.",
		}, []string{"reason"}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_engine_trades_closed_total",
			Help: "Closed trade projections, by result (win|loss|flat).",
		}, []string{"result"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strategy_engine_sessions_active",
			Help: "Sessions currently in the running status.",
		}),
		BucketLagSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "strategy_engine_bucket_lag_seconds",
			Help:    "Wall-clock time spent processing one tick bucket, including graph traversal.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.TicksProcessed,
		m.BucketsProcessed,
		m.NodeExecutions,
		m.OrdersPlaced,
		m.OrdersRejected,
		m.TradesClosed,
		m.SessionsActive,
		m.BucketLagSeconds,
	)
	return m
}

func (m *Metrics) RecordNodeExecution(nodeType string) {
	if m == nil {
		return
	}
	m.NodeExecutions.WithLabelValues(nodeType).Inc()
}

func (m *Metrics) RecordOrderPlaced(side string) {
	if m == nil {
		return
	}
	m.OrdersPlaced.WithLabelValues(side).Inc()
}

func (m *Metrics) RecordOrderRejected(reason string) {
	if m == nil {
		return
	}
	m.OrdersRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTradeClosed(result string) {
	if m == nil {
		return
	}
	m.TradesClosed.WithLabelValues(result).Inc()
}
