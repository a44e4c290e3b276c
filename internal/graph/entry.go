package graph

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// EntryNode places one order per activation. It tracks its own in-flight
// order locally (no retry once rejected); once the fill is recorded in
// GPS it activates its children and goes Inactive, staying Inactive until
// a ReEntrySignalNode resets it for another attempt.
type EntryNode struct {
	Base

	position types.PositionDef
	strategy string

	pendingOrderID string
}

// NewEntryNode constructs an EntryNode for a single position leg. The
// original models a list of positions per node; this engine places exactly
// one leg per EntryNode instance, matching the single (position_id, VPI)
// bookkeeping GPS tracks per node.
func NewEntryNode(id string, label string, pos types.PositionDef, strategyName string) *EntryNode {
	return &EntryNode{
		Base:     newBase(id, types.NodeTypeEntry, label),
		position: pos,
		strategy: strategyName,
	}
}

// MaxEntries returns the configured bound. The builder reads the same value
// from the position definition when it wires a paired ReEntrySignalNode.
func (n *EntryNode) MaxEntries() int { return n.position.MaxEntries }

// PositionID returns this node's stable position_id (its VPI).
func (n *EntryNode) PositionID() string { return n.position.VPI }

func (n *EntryNode) resetForReEntry() {
	n.pendingOrderID = ""
}

func (n *EntryNode) OnTick(ctx *TickContext) (Outcome, error) {
	if n.pendingOrderID != "" {
		return n.checkFill(ctx)
	}
	return n.placeOrder(ctx)
}

func (n *EntryNode) placeOrder(ctx *TickContext) (Outcome, error) {
	symbol, err := resolveDynamicSymbol(ctx, ctx.StrategySymbol)
	if err != nil {
		return Outcome{}, &FatalError{Err: fmt.Errorf("entryNode %s: resolve symbol: %w", n.id, err)}
	}

	qty := decimal.NewFromFloat(n.position.Quantity)
	if qty.IsZero() {
		qty = decimal.NewFromFloat(n.position.Lots)
	}
	multiplier := decimal.NewFromFloat(n.position.Multiplier)
	if multiplier.IsZero() {
		multiplier = decimal.NewFromFloat(n.position.LotSize)
	}
	if multiplier.IsZero() {
		multiplier = decimal.NewFromInt(1)
	}
	actualQty := qty.Mul(multiplier)
	if ctx.StrategyScale.IsPositive() {
		actualQty = actualQty.Mul(ctx.StrategyScale)
	}

	req := types.OrderRequest{
		Symbol:      symbol,
		Exchange:    types.ExchangeFor(symbol),
		Side:        sideFromPositionType(n.position.PositionType),
		Quantity:    actualQty,
		OrderType:   orderTypeFrom(n.position.OrderType),
		ProductType: productTypeFrom(n.position.ProductType),
		NodeID:      n.id,
	}

	ack, err := ctx.Gateway.PlaceOrder(ctx.Context, req)
	if err != nil {
		return Outcome{LogicCompleted: true, Reason: "order placement failed: " + err.Error()}, nil
	}

	if ctx.Mode == "live" {
		n.pendingOrderID = ack.OrderID
		n.markPending()
		return Outcome{Pending: true, Reason: "order placed, waiting for fill",
			Evaluation: map[string]interface{}{"order_id": ack.OrderID, "symbol": symbol}}, nil
	}

	// Backtest mode: fill is immediate, check it synchronously.
	n.pendingOrderID = ack.OrderID
	return n.checkFill(ctx)
}

func (n *EntryNode) checkFill(ctx *TickContext) (Outcome, error) {
	status, err := ctx.Gateway.OrderStatus(ctx.Context, n.pendingOrderID)
	if err != nil {
		return Outcome{}, &FatalError{Err: fmt.Errorf("entryNode %s: order status: %w", n.id, err)}
	}

	switch status.Status {
	case types.OrderStatusComplete:
		underlying, _ := ctx.Expr.UnderlyingLTP()
		vars := ctx.GPS.GetNodeVariables(n.id)

		qty := decimal.NewFromFloat(n.position.Quantity)
		if qty.IsZero() {
			qty = decimal.NewFromFloat(n.position.Lots)
		}
		err := ctx.GPS.AddPosition(n.position.VPI, gps.EntryInput{
			Price:                  status.AveragePrice,
			Quantity:               qty,
			Multiplier:             decimal.NewFromFloat(n.position.Multiplier),
			ActualQuantity:         status.FilledQuantity,
			Symbol:                 ctx.StrategySymbol,
			Side:                   sideFromPositionType(n.position.PositionType),
			Strategy:               n.strategy,
			NodeID:                 n.id,
			ExecutionID:            n.executionID,
			ReEntryNum:             n.reEntryNum,
			UnderlyingPriceOnEntry: underlying,
			NodeVariablesSnapshot:  vars,
			OrderType:              orderTypeFrom(n.position.OrderType),
			ProductType:            productTypeFrom(n.position.ProductType),
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
				"fillPrice": status.AveragePrice,
				"positionId": n.position.VPI,
			},
		}, nil

	case types.OrderStatusRejected, types.OrderStatusCancelled:
		reason := status.RejectionReason
		if reason == "" {
			reason = string(status.Status)
		}
		n.pendingOrderID = ""
		return Outcome{
			LogicCompleted: true,
			Reason:         "order rejected: " + reason,
			Evaluation:     map[string]interface{}{"rejected": true, "reason": reason},
		}, nil

	default:
		return Outcome{Pending: true, Reason: "waiting for fill"}, nil
	}
}
