package graph

import (
	"fmt"

	"github.com/tradelayout/strategy-engine/internal/expr"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// EntrySignalNode is a one-shot signal: it evaluates its condition tree
// every tick it is Active and, on satisfaction, computes its node variables
// and completes. It becomes Active again only when another node activates
// it through normal graph flow (such as a ReEntrySignalNode upstream);
// EntrySignalNode itself never re-arms on its own.
type EntrySignalNode struct {
	Base

	conditions        *expr.Condition
	reEntryConditions *expr.Condition
	variables         []Variable

	targetPositionID string
}

// NewEntrySignalNode constructs an EntrySignalNode. targetPositionID names
// the downstream EntryNode's position whose position_num selects between
// Conditions and ReEntryConditions (position_num > 0 means re-entry mode);
// it may be empty if the node has no reEntryConditions to switch on.
func NewEntrySignalNode(id string, data types.SignalNodeData, targetPositionID string) (*EntrySignalNode, error) {
	cond, err := expr.ParseCondition(data.Conditions)
	if err != nil {
		return nil, fmt.Errorf("entrySignalNode %s: %w", id, err)
	}
	var reCond *expr.Condition
	if len(data.ReEntryConditions) > 0 {
		reCond, err = expr.ParseCondition(data.ReEntryConditions)
		if err != nil {
			return nil, fmt.Errorf("entrySignalNode %s reEntryConditions: %w", id, err)
		}
	}
	vars, err := ParseVariables(data.Variables)
	if err != nil {
		return nil, fmt.Errorf("entrySignalNode %s: %w", id, err)
	}
	return &EntrySignalNode{
		Base:              newBase(id, types.NodeTypeEntrySignal, data.Label),
		conditions:        cond,
		reEntryConditions: reCond,
		variables:         vars,
		targetPositionID:  targetPositionID,
	}, nil
}

func (n *EntrySignalNode) OnTick(ctx *TickContext) (Outcome, error) {
	active := n.conditions
	if n.reEntryConditions != nil && n.targetPositionID != "" {
		if pos := ctx.GPS.GetPosition(n.targetPositionID); pos != nil && pos.PositionNum > 0 {
			active = n.reEntryConditions
		}
	}

	diag, err := expr.Evaluate(active, ctx.Expr)
	if err != nil {
		return Outcome{}, &FatalError{Err: fmt.Errorf("entrySignalNode %s: %w", n.id, err)}
	}

	eval := map[string]interface{}{"satisfied": diag.Satisfied, "leaves": diag.Leaves}
	if !diag.Satisfied {
		return Outcome{Evaluation: eval}, nil
	}

	if len(n.variables) > 0 {
		values, err := EvaluateVariables(n.id, n.variables, ctx.Expr)
		if err != nil {
			return Outcome{}, err
		}
		for name, v := range values {
			ctx.GPS.SetNodeVariable(n.id, name, v)
		}
	}

	return Outcome{
		LogicCompleted:   true,
		ActivateChildren: true,
		Evaluation:       eval,
	}, nil
}
