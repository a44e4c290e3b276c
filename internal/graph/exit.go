package graph

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// ExitNode places the exit order for a specific target position. If the
// target is already closed (a peer ExitNode fired first) it completes
// without ordering. It defers to the next tick if the target position was
// opened this very tick, guarding the same-tick open-and-close case.
type ExitNode struct {
	Base

	config types.ExitOrderConfig

	pendingOrderID string
	exitSide       types.Side
}

// NewExitNode constructs an ExitNode from its parsed exit order config.
func NewExitNode(id, label string, cfg types.ExitOrderConfig) *ExitNode {
	return &ExitNode{Base: newBase(id, types.NodeTypeExit, label), config: cfg}
}

func (n *ExitNode) resetForReEntry() {
	n.pendingOrderID = ""
}

func (n *ExitNode) OnTick(ctx *TickContext) (Outcome, error) {
	pos := ctx.GPS.GetPosition(n.config.TargetPositionVPI)
	if pos == nil || pos.Status != "open" {
		return Outcome{
			LogicCompleted: true,
			Reason:         "position_already_closed",
			Evaluation:     map[string]interface{}{"exit_reason": "position_already_closed"},
		}, nil
	}

	if !pos.JustOpenedAtTick.IsZero() && pos.JustOpenedAtTick.Equal(ctx.Now) {
		return Outcome{Reason: "deferring same-tick open-and-close to next tick"}, nil
	}

	if n.pendingOrderID != "" {
		return n.checkFill(ctx, pos)
	}
	return n.placeOrder(ctx, pos)
}

func (n *ExitNode) placeOrder(ctx *TickContext, pos *gps.Position) (Outcome, error) {
	n.exitSide = pos.Side.Opposite()

	qty := pos.ActualQuantity
	if n.config.Quantity == "specific" && n.config.SpecificQuantity > 0 {
		qty = decimal.NewFromFloat(n.config.SpecificQuantity)
	}

	req := types.OrderRequest{
		Symbol:      pos.Symbol,
		Exchange:    pos.Exchange,
		Side:        n.exitSide,
		Quantity:    qty,
		OrderType:   orderTypeFrom(n.config.OrderType),
		ProductType: types.ProductIntraday,
		NodeID:      n.id,
	}

	ack, err := ctx.Gateway.PlaceOrder(ctx.Context, req)
	if err != nil {
		return Outcome{LogicCompleted: true, Reason: "exit order placement failed: " + err.Error()}, nil
	}

	if ctx.Mode == "live" {
		n.pendingOrderID = ack.OrderID
		n.markPending()
		return Outcome{Pending: true, Reason: "exit order placed, waiting for fill"}, nil
	}

	n.pendingOrderID = ack.OrderID
	return n.checkFill(ctx, pos)
}

func (n *ExitNode) checkFill(ctx *TickContext, pos *gps.Position) (Outcome, error) {
	status, err := ctx.Gateway.OrderStatus(ctx.Context, n.pendingOrderID)
	if err != nil {
		return Outcome{}, &FatalError{Err: fmt.Errorf("exitNode %s: order status: %w", n.id, err)}
	}

	switch status.Status {
	case types.OrderStatusComplete:
		err := ctx.GPS.ClosePosition(n.config.TargetPositionVPI, gps.ExitInput{
			Price:       status.AveragePrice,
			Reason:      "exit_signal",
			ExecutionID: n.executionID,
			ReEntryNum:  n.reEntryNum,
		}, ctx.Now)
		if err != nil {
			return Outcome{}, &FatalError{Err: err}
		}
		n.pendingOrderID = ""
		return Outcome{
			LogicCompleted:   true,
			ActivateChildren: true,
			Evaluation: map[string]interface{}{
				"filled":    true,
				"exitPrice": status.AveragePrice,
			},
		}, nil

	case types.OrderStatusRejected, types.OrderStatusCancelled:
		reason := status.RejectionReason
		if reason == "" {
			reason = string(status.Status)
		}
		n.pendingOrderID = ""
		return Outcome{LogicCompleted: true, Reason: "exit order rejected: " + reason}, nil

	default:
		return Outcome{Pending: true, Reason: "waiting for exit fill"}, nil
	}
}
