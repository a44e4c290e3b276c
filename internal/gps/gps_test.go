package gps

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

func newTestStore() *Store {
	return NewStore(zap.NewNop())
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAddPositionAssignsSequentialPositionNum(t *testing.T) {
	s := newTestStore()
	tickTime := time.Now()

	in := EntryInput{
		Price:      dec("100"),
		Quantity:   dec("1"),
		Multiplier: dec("75"),
		Symbol:     "NIFTY:OPT:25000CE",
		Side:       types.SideBuy,
		NodeID:     "entry1",
	}
	if err := s.AddPosition("pos1", in, tickTime); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if got := s.GetLatestPositionNum("pos1"); got != 1 {
		t.Fatalf("expected position_num 1, got %d", got)
	}

	if err := s.ClosePosition("pos1", ExitInput{Price: dec("110"), Reason: "target"}, tickTime); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}

	in.ReEntryNum = 1
	if err := s.AddPosition("pos1", in, tickTime); err != nil {
		t.Fatalf("second AddPosition: %v", err)
	}
	if got := s.GetLatestPositionNum("pos1"); got != 2 {
		t.Fatalf("expected position_num 2 after re-entry, got %d", got)
	}
}

func TestAddPositionRejectsConcurrentOpen(t *testing.T) {
	s := newTestStore()
	tickTime := time.Now()
	in := EntryInput{Price: dec("100"), Quantity: dec("1"), Multiplier: dec("75"), Symbol: "NIFTY:OPT:25000CE"}

	if err := s.AddPosition("pos1", in, tickTime); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	err := s.AddPosition("pos1", in, tickTime)
	if err == nil {
		t.Fatal("expected ConcurrentOpenPositionError, got nil")
	}
	if _, ok := err.(*ConcurrentOpenPositionError); !ok {
		t.Fatalf("expected *ConcurrentOpenPositionError, got %T", err)
	}
}

func TestClosePositionComputesPNLBySide(t *testing.T) {
	s := newTestStore()
	tickTime := time.Now()

	buyIn := EntryInput{Price: dec("100"), Quantity: dec("1"), Multiplier: dec("75"), Symbol: "NIFTY:OPT:25000CE", Side: types.SideBuy}
	if err := s.AddPosition("buy-pos", buyIn, tickTime); err != nil {
		t.Fatalf("AddPosition buy: %v", err)
	}
	if err := s.ClosePosition("buy-pos", ExitInput{Price: dec("110")}, tickTime); err != nil {
		t.Fatalf("ClosePosition buy: %v", err)
	}
	got := s.GetPosition("buy-pos")
	want := dec("750") // (110-100)*75
	if !got.RealizedPNL.Equal(want) {
		t.Fatalf("buy pnl: want %s got %s", want, got.RealizedPNL)
	}

	sellIn := EntryInput{Price: dec("100"), Quantity: dec("1"), Multiplier: dec("75"), Symbol: "NIFTY:OPT:25000PE", Side: types.SideSell}
	if err := s.AddPosition("sell-pos", sellIn, tickTime); err != nil {
		t.Fatalf("AddPosition sell: %v", err)
	}
	if err := s.ClosePosition("sell-pos", ExitInput{Price: dec("90")}, tickTime); err != nil {
		t.Fatalf("ClosePosition sell: %v", err)
	}
	got = s.GetPosition("sell-pos")
	want = dec("750") // (100-90)*75
	if !got.RealizedPNL.Equal(want) {
		t.Fatalf("sell pnl: want %s got %s", want, got.RealizedPNL)
	}
}

func TestClosePositionIsIdempotentWhenNothingOpen(t *testing.T) {
	s := newTestStore()
	if err := s.ClosePosition("never-opened", ExitInput{Price: dec("1")}, time.Now()); err != nil {
		t.Fatalf("expected no-op nil error, got %v", err)
	}
}

func TestUpdatePricesFallsBackToUnderlying(t *testing.T) {
	s := newTestStore()
	tickTime := time.Now()
	in := EntryInput{Price: dec("100"), Quantity: dec("1"), Multiplier: dec("75"), Symbol: "NIFTY:OPT:25000CE", Side: types.SideBuy}
	if err := s.AddPosition("pos1", in, tickTime); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	ltp := map[string]types.LTPEntry{
		"NIFTY": {LTP: dec("25050")},
	}
	s.UpdatePrices(ltp, "NIFTY")

	pos := s.GetPosition("pos1")
	if !pos.CurrentPrice.Equal(dec("25050")) {
		t.Fatalf("expected fallback to underlying LTP, got %s", pos.CurrentPrice)
	}
}

func TestResetDayPreservesPositionsButResetsCounters(t *testing.T) {
	s := newTestStore()
	tickTime := time.Now()
	in := EntryInput{Price: dec("100"), Quantity: dec("1"), Multiplier: dec("75"), Symbol: "NIFTY:OPT:25000CE"}
	if err := s.AddPosition("pos1", in, tickTime); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := s.ClosePosition("pos1", ExitInput{Price: dec("110")}, tickTime); err != nil {
		t.Fatalf("ClosePosition: %v", err)
	}

	s.ResetDay(tickTime)

	if s.GetLatestPositionNum("pos1") != 0 {
		t.Fatalf("expected counters reset after ResetDay")
	}
	if s.GetPosition("pos1") == nil {
		t.Fatal("expected historical position to survive ResetDay")
	}
}

func TestTradeIDFormatting(t *testing.T) {
	p := &Position{PositionID: "entry1"}
	if got := p.TradeID(); got != "entry1" {
		t.Fatalf("want entry1, got %s", got)
	}
	p.ReEntryNum = 2
	if got := p.TradeID(); got != "entry1-r2" {
		t.Fatalf("want entry1-r2, got %s", got)
	}
}
