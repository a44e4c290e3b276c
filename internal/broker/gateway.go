// Package broker defines the OrderGateway contract that EntryNode and
// ExitNode submit orders through, plus a paper-trading implementation used
// for backtests and for live-sim sessions that have no real broker attached.
package broker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/metrics"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// OrderGateway is the boundary between a strategy session and a broker. A
// live session submits to a real adapter; a backtest session submits to
// PaperGateway. Both satisfy this interface so EntryNode/ExitNode never
// need to know which mode they're running in.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req types.OrderRequest) (types.OrderAck, error)
	OrderStatus(ctx context.Context, orderID string) (types.OrderStatusInfo, error)
	CancelOrder(ctx context.Context, orderID string) (types.CancelResult, error)
}

// LTPSource supplies the last traded price PaperGateway fills market orders
// at. The scheduler's LTP store implements this.
type LTPSource interface {
	LTP(symbol string) (decimal.Decimal, bool)
}

type paperOrder struct {
	req       types.OrderRequest
	status    types.OrderStatusInfo
	createdAt time.Time
}

// PaperGateway fills every order immediately at the current LTP. It never
// rejects unless the symbol has no known price, which mirrors the
// original's "backtest mode: immediate fill" behavior for EntryNode/ExitNode.
type PaperGateway struct {
	ltp     LTPSource
	orders  map[string]*paperOrder
	metrics *metrics.Metrics
}

// NewPaperGateway constructs a gateway backed by ltp for price lookups.
func NewPaperGateway(ltp LTPSource) *PaperGateway {
	return &PaperGateway{
		ltp:    ltp,
		orders: make(map[string]*paperOrder),
	}
}

// AttachMetrics wires a process-wide metrics.Metrics into the gateway so
// every placed order bumps strategy_engine_orders_placed_total or
// strategy_engine_orders_rejected_total. Optional, matching
// diagnostics.Recorder.AttachMetrics: a gateway with none attached behaves
// exactly as before.
func (g *PaperGateway) AttachMetrics(m *metrics.Metrics) {
	g.metrics = m
}

// PlaceOrder fills immediately at LTP, or rejects if the symbol has no
// known price (no ticks seen yet for it).
func (g *PaperGateway) PlaceOrder(_ context.Context, req types.OrderRequest) (types.OrderAck, error) {
	orderID := "paper-" + uuid.New().String()
	price, ok := g.ltp.LTP(req.Symbol)
	if !ok {
		g.orders[orderID] = &paperOrder{
			req: req,
			status: types.OrderStatusInfo{
				Status:          types.OrderStatusRejected,
				RejectionReason: "no LTP available for " + req.Symbol,
			},
			createdAt: time.Now(),
		}
		g.metrics.RecordOrderRejected("no_ltp")
		return types.OrderAck{OrderID: orderID, BrokerOrderID: orderID}, nil
	}

	g.orders[orderID] = &paperOrder{
		req: req,
		status: types.OrderStatusInfo{
			Status:         types.OrderStatusComplete,
			FilledQuantity: req.Quantity,
			Quantity:       req.Quantity,
			AveragePrice:   price,
			CompletedAt:    time.Now(),
		},
		createdAt: time.Now(),
	}
	g.metrics.RecordOrderPlaced(strings.ToLower(string(req.Side)))
	return types.OrderAck{OrderID: orderID, BrokerOrderID: orderID}, nil
}

// OrderStatus returns the order's current state.
func (g *PaperGateway) OrderStatus(_ context.Context, orderID string) (types.OrderStatusInfo, error) {
	o, ok := g.orders[orderID]
	if !ok {
		return types.OrderStatusInfo{}, ErrOrderNotFound
	}
	return o.status, nil
}

// CancelOrder cancels a pending order. PaperGateway fills synchronously so
// there is nothing to cancel once PlaceOrder has returned, matching the
// original's assumption that backtest orders never sit in PENDING.
func (g *PaperGateway) CancelOrder(_ context.Context, orderID string) (types.CancelResult, error) {
	o, ok := g.orders[orderID]
	if !ok {
		return types.CancelResult{Success: false, Reason: "order not found"}, nil
	}
	if o.status.Status.IsTerminal() {
		return types.CancelResult{Success: false, Reason: "order already terminal"}, nil
	}
	o.status.Status = types.OrderStatusCancelled
	return types.CancelResult{Success: true}, nil
}

// ErrOrderNotFound is returned by OrderStatus for an unknown order ID.
var ErrOrderNotFound = &gatewayError{"order not found"}

type gatewayError struct{ msg string }

func (e *gatewayError) Error() string { return e.msg }
