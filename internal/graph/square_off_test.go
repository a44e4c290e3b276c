package graph

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

func TestSquareOffClosesOpenPositionsAndEndsSession(t *testing.T) {
	store := gps.NewStore(testLogger())
	now := time.Date(2026, 1, 5, 15, 20, 0, 0, time.UTC)
	store.SetCurrentTickTime(now)
	if err := store.AddPosition("pos1", gps.EntryInput{
		Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1),
		Multiplier: decimal.NewFromInt(1), Symbol: "NIFTY", Side: types.SideBuy,
	}, now); err != nil {
		t.Fatal(err)
	}

	entry := NewEntryNode("entry", "entry", types.PositionDef{VPI: "pos1"}, "s")
	squareOff := NewSquareOffNode("squareOff", "square off")

	g := NewGraph()
	g.AddNode(entry)
	g.AddNode(squareOff)
	g.SetStart("squareOff")
	squareOff.markActive()

	ec := &fakeExprContext{ltp: map[string]decimal.Decimal{"NIFTY": decimal.NewFromInt(105)}, gps: store}
	ctx := baseTickContext(now, store, newFakeGateway(decimal.Zero), ec)
	ctx.Graph = g

	if err := g.Traverse(ctx); err != nil {
		t.Fatal(err)
	}

	pos := store.GetPosition("pos1")
	if pos.Status != "closed" {
		t.Fatalf("expected pos1 closed by square-off, got %+v", pos)
	}
	if !pos.ExitPrice.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("expected exit at LTP 105, got %s", pos.ExitPrice)
	}
	if entry.Status() != StatusInactive || squareOff.Status() != StatusInactive {
		t.Fatal("expected every node Inactive after TerminateSession")
	}

	// A later tick must be a no-op: no positions left to close, and the
	// node is already Inactive so the traversal never re-runs OnTick.
	if err := g.Traverse(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSquareOffFallsBackToUnderlyingLTP(t *testing.T) {
	store := gps.NewStore(testLogger())
	now := time.Date(2026, 1, 5, 15, 20, 0, 0, time.UTC)
	store.SetCurrentTickTime(now)
	store.AddPosition("pos1", gps.EntryInput{
		Price: decimal.NewFromInt(50), Quantity: decimal.NewFromInt(1),
		Multiplier: decimal.NewFromInt(1), Symbol: "NIFTY:2026-01-08:OPT:25000:CE",
	}, now)

	squareOff := NewSquareOffNode("squareOff", "square off")
	g := NewGraph()
	g.AddNode(squareOff)
	g.SetStart("squareOff")
	squareOff.markActive()

	// No LTP for the option symbol, but the underlying resolves.
	ec := &fakeExprContext{underlying: decimal.NewFromInt(25200), hasUnderly: true, gps: store}
	ctx := baseTickContext(now, store, newFakeGateway(decimal.Zero), ec)
	ctx.Graph = g

	if err := g.Traverse(ctx); err != nil {
		t.Fatal(err)
	}
	pos := store.GetPosition("pos1")
	if !pos.ExitPrice.Equal(decimal.NewFromInt(25200)) {
		t.Fatalf("expected exit at underlying LTP 25200, got %s", pos.ExitPrice)
	}
}
