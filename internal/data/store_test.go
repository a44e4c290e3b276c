package data_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/data"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

func sampleTicks(date time.Time) []types.Tick {
	return []types.Tick{
		{Symbol: "RELIANCE", LTP: decimal.NewFromInt(2500), Timestamp: date.Add(2 * time.Second)},
		{Symbol: "RELIANCE", LTP: decimal.NewFromInt(2499), Timestamp: date.Add(1 * time.Second)},
		{Symbol: "RELIANCE", LTP: decimal.NewFromInt(2501), Timestamp: date.Add(3 * time.Second)},
	}
}

func TestSaveAndLoadTicksRoundTrip(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	date := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	if err := store.SaveTicks("RELIANCE", date, sampleTicks(date)); err != nil {
		t.Fatalf("SaveTicks: %v", err)
	}

	got, err := store.LoadTicks(context.Background(), "RELIANCE", date)
	if err != nil {
		t.Fatalf("LoadTicks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Errorf("ticks not sorted ascending: %v before %v", got[i].Timestamp, got[i-1].Timestamp)
		}
	}
}

func TestLoadTicksMissingFileErrors(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	_, err = store.LoadTicks(context.Background(), "UNKNOWN", time.Now())
	if err == nil {
		t.Fatal("expected an error for a missing tick file")
	}
}

func TestLoadTicksReloadsAfterClearCache(t *testing.T) {
	dir := t.TempDir()
	store, err := data.NewStore(zap.NewNop(), dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	date := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	if err := store.SaveTicks("RELIANCE", date, sampleTicks(date)); err != nil {
		t.Fatalf("SaveTicks: %v", err)
	}

	if _, err := store.LoadTicks(context.Background(), "RELIANCE", date); err != nil {
		t.Fatalf("first LoadTicks: %v", err)
	}

	store.ClearCache()

	if _, err := store.LoadTicks(context.Background(), "RELIANCE", date); err != nil {
		t.Fatalf("LoadTicks after ClearCache: %v", err)
	}
}

func TestAvailableSymbols(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	date := time.Date(2024, 3, 4, 9, 15, 0, 0, time.UTC)
	if err := store.SaveTicks("RELIANCE", date, sampleTicks(date)); err != nil {
		t.Fatalf("SaveTicks RELIANCE: %v", err)
	}
	if err := store.SaveTicks("NIFTY", date, sampleTicks(date)); err != nil {
		t.Fatalf("SaveTicks NIFTY: %v", err)
	}

	symbols, err := store.AvailableSymbols()
	if err != nil {
		t.Fatalf("AvailableSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "NIFTY" || symbols[1] != "RELIANCE" {
		t.Errorf("unexpected symbols: %v", symbols)
	}
}

func TestLoadTicksRespectsCancelledContext(t *testing.T) {
	store, err := data.NewStore(zap.NewNop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.LoadTicks(ctx, "RELIANCE", time.Now())
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
