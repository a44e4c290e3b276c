package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tradelayout/strategy-engine/internal/metrics"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.RecordNodeExecution("entry")
	m.RecordOrderPlaced("buy")
	m.RecordOrderRejected("risk_limit")
	m.RecordTradeClosed("win")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	want := []string{
		"strategy_engine_ticks_processed_total",
		"strategy_engine_buckets_processed_total",
		"strategy_engine_node_executions_total",
		"strategy_engine_orders_placed_total",
		"strategy_engine_orders_rejected_total",
		"strategy_engine_trades_closed_total",
		"strategy_engine_sessions_active",
		"strategy_engine_bucket_lag_seconds",
	}
	for _, name := range want {
		if _, ok := byName[name]; !ok {
			t.Errorf("expected collector %s to be registered", name)
		}
	}

	nodeExecs := byName["strategy_engine_node_executions_total"]
	if got := nodeExecs.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("expected node_executions_total to be 1, got %v", got)
	}
}

func TestRecordHelpersAreNilSafe(t *testing.T) {
	var m *metrics.Metrics
	m.RecordNodeExecution("entry")
	m.RecordOrderPlaced("buy")
	m.RecordOrderRejected("risk_limit")
	m.RecordTradeClosed("win")
}
