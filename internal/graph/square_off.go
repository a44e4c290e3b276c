package graph

import (
	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// SquareOffNode is the strategy-level terminator: it cancels any pending
// orders (live mode only), closes every open position at current market
// price, and marks every node in the graph Inactive. Idempotent via
// squareOffExecuted so a repeat activation in the same or a later tick is a
// no-op.
type SquareOffNode struct {
	Base

	squareOffExecuted bool
}

// NewSquareOffNode constructs a SquareOffNode. It carries no condition data
// of its own; StartNode decides when to activate it via endConditions.
func NewSquareOffNode(id, label string) *SquareOffNode {
	return &SquareOffNode{Base: newBase(id, types.NodeTypeSquareOff, label)}
}

func (n *SquareOffNode) OnTick(ctx *TickContext) (Outcome, error) {
	if n.squareOffExecuted {
		return Outcome{LogicCompleted: true, TerminateSession: true, Reason: "square-off already executed"}, nil
	}
	n.squareOffExecuted = true

	cancelled := 0
	if ctx.Mode == "live" {
		cancelled = n.cancelPendingOrders(ctx)
	}

	closed := 0
	for positionID, pos := range ctx.GPS.GetOpenPositions() {
		price := n.exitPrice(ctx, pos)
		err := ctx.GPS.ClosePosition(positionID, gps.ExitInput{
			Price:      price,
			Reason:     "square_off",
			ReEntryNum: pos.ReEntryNum,
		}, ctx.Now)
		if err != nil {
			return Outcome{}, &FatalError{Err: err}
		}
		closed++
	}

	return Outcome{
		LogicCompleted:   true,
		TerminateSession: true,
		Evaluation: map[string]interface{}{
			"positionsClosed": closed,
			"ordersCancelled": cancelled,
		},
	}, nil
}

// exitPrice follows the fallback chain: the position's own symbol LTP, then
// the underlying's LTP, then the last known current_price on the position.
func (n *SquareOffNode) exitPrice(ctx *TickContext, pos *gps.Position) decimal.Decimal {
	if ltp, ok := ctx.Expr.LTP(pos.Symbol); ok {
		return ltp
	}
	if ltp, ok := ctx.Expr.UnderlyingLTP(); ok {
		return ltp
	}
	return pos.CurrentPrice
}

// cancelPendingOrders cancels any order still in flight on a live-mode
// EntryNode/ExitNode across the whole graph and returns how many it reached.
func (n *SquareOffNode) cancelPendingOrders(ctx *TickContext) int {
	count := 0
	for _, node := range ctx.Graph.Nodes() {
		var orderID string
		switch t := node.(type) {
		case *EntryNode:
			orderID = t.pendingOrderID
		case *ExitNode:
			orderID = t.pendingOrderID
		default:
			continue
		}
		if orderID == "" {
			continue
		}
		if _, err := ctx.Gateway.CancelOrder(ctx.Context, orderID); err == nil {
			count++
		}
	}
	return count
}
