package graph

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// TestEntryNodeFallsBackToLots exercises spec.md:256's quantity|lots
// alternate-key wire shape: a PositionDef that supplies only Lots (no
// Quantity) must still place the intended size, the same as the adjacent
// Multiplier/LotSize fallback.
func TestEntryNodeFallsBackToLots(t *testing.T) {
	store := gps.NewStore(testLogger())
	gw := newFakeGateway(decimal.NewFromInt(101))
	ec := &fakeExprContext{ltp: map[string]decimal.Decimal{"NIFTY": decimal.NewFromInt(101)}, gps: store}

	entry := NewEntryNode("entry", "entry", types.PositionDef{
		ID: "p1", VPI: "pos1", Lots: 3, LotSize: 2,
		PositionType: "buy", OrderType: "MARKET", ProductType: "INTRADAY",
	}, "test-strategy")
	entry.markActive()

	ctx := baseTickContext(time.Now(), store, gw, ec)
	if _, err := entry.OnTick(ctx); err != nil {
		t.Fatalf("OnTick: %v", err)
	}

	pos := store.GetPosition("pos1")
	if pos == nil {
		t.Fatal("expected a position to be recorded")
	}
	wantQty := decimal.NewFromInt(6) // lots(3) * lotSize(2)
	if !pos.ActualQuantity.Equal(wantQty) {
		t.Errorf("expected actual quantity %s, got %s", wantQty, pos.ActualQuantity)
	}
}
