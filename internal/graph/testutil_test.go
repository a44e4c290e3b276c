package graph

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// fakeExprContext is a minimal expr.Context test double backed by plain maps.
type fakeExprContext struct {
	ltp        map[string]decimal.Decimal
	underlying decimal.Decimal
	hasUnderly bool
	gps        *gps.Store
}

func (f *fakeExprContext) LTP(symbol string) (decimal.Decimal, bool) {
	v, ok := f.ltp[symbol]
	return v, ok
}

func (f *fakeExprContext) UnderlyingLTP() (decimal.Decimal, bool) {
	return f.underlying, f.hasUnderly
}

func (f *fakeExprContext) CandleField(string, int, types.CandleField, int) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

func (f *fakeExprContext) Indicator(string, int, string, int) (decimal.Decimal, bool) {
	return decimal.Zero, false
}

func (f *fakeExprContext) NodeVariable(nodeID, name string) (decimal.Decimal, bool) {
	if f.gps == nil {
		return decimal.Zero, false
	}
	return f.gps.GetNodeVariable(nodeID, name)
}

// fakeGateway is an OrderGateway test double that always fills immediately
// at a fixed price, unless told to reject the next order.
type fakeGateway struct {
	nextPrice    decimal.Decimal
	rejectNext   bool
	rejectReason string
	counter      int
	statuses     map[string]types.OrderStatusInfo
	cancelled    map[string]bool
}

func newFakeGateway(price decimal.Decimal) *fakeGateway {
	return &fakeGateway{
		nextPrice: price,
		statuses:  make(map[string]types.OrderStatusInfo),
		cancelled: make(map[string]bool),
	}
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req types.OrderRequest) (types.OrderAck, error) {
	g.counter++
	id := "ord_" + itoaTest(g.counter)
	if g.rejectNext {
		g.rejectNext = false
		g.statuses[id] = types.OrderStatusInfo{Status: types.OrderStatusRejected, RejectionReason: g.rejectReason}
		return types.OrderAck{OrderID: id}, nil
	}
	g.statuses[id] = types.OrderStatusInfo{
		Status:         types.OrderStatusComplete,
		FilledQuantity: req.Quantity,
		Quantity:       req.Quantity,
		AveragePrice:   g.nextPrice,
	}
	return types.OrderAck{OrderID: id}, nil
}

func (g *fakeGateway) OrderStatus(_ context.Context, orderID string) (types.OrderStatusInfo, error) {
	return g.statuses[orderID], nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, orderID string) (types.CancelResult, error) {
	g.cancelled[orderID] = true
	return types.CancelResult{Success: true}, nil
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func baseTickContext(now time.Time, store *gps.Store, gw *fakeGateway, ec *fakeExprContext) *TickContext {
	return &TickContext{
		Context:       context.Background(),
		Now:           now,
		Mode:          "backtest",
		Logger:        testLogger(),
		GPS:           store,
		Expr:          ec,
		Gateway:       gw,
		StrategyScale: decimal.NewFromInt(1),
		StrategySymbol: "NIFTY",
	}
}
