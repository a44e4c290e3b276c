package graph

import (
	"fmt"

	"github.com/tradelayout/strategy-engine/internal/expr"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// ReEntrySignalNode adds retry bookkeeping on top of EntrySignalNode's
// condition evaluation. Before looking at its own conditions it enforces
// three implicit checks, in order: a max-entries bound against the
// downstream EntryNode's position_num, a same-position-still-open skip,
// and a downstream-EntryNode-still-active skip. Only when all three pass
// does it evaluate the user's conditions; on success it increments its own
// reEntryNum and resets its children's visited/order-tracking state so a
// fresh entry can flow within the same tick.
type ReEntrySignalNode struct {
	Base

	conditions       *expr.Condition
	variables        []Variable
	maxEntries       int
	targetPositionID string
	targetEntryNodeID string

	permanentlyDisabled bool
}

// NewReEntrySignalNode constructs a ReEntrySignalNode. targetPositionID and
// targetEntryNodeID identify the downstream EntryNode/position the three
// implicit checks are evaluated against.
func NewReEntrySignalNode(id string, data types.SignalNodeData, maxEntries int, targetPositionID, targetEntryNodeID string) (*ReEntrySignalNode, error) {
	cond, err := expr.ParseCondition(data.Conditions)
	if err != nil {
		return nil, fmt.Errorf("reEntrySignalNode %s: %w", id, err)
	}
	vars, err := ParseVariables(data.Variables)
	if err != nil {
		return nil, fmt.Errorf("reEntrySignalNode %s: %w", id, err)
	}
	return &ReEntrySignalNode{
		Base:              newBase(id, types.NodeTypeReEntrySignal, data.Label),
		conditions:        cond,
		variables:         vars,
		maxEntries:        maxEntries,
		targetPositionID:  targetPositionID,
		targetEntryNodeID: targetEntryNodeID,
	}, nil
}

func (n *ReEntrySignalNode) OnTick(ctx *TickContext) (Outcome, error) {
	if n.maxEntries == 0 {
		n.permanentlyDisabled = true
		return Outcome{LogicCompleted: true, Reason: "maxEntries=0, no re-entries allowed"}, nil
	}
	if n.permanentlyDisabled {
		return Outcome{LogicCompleted: true, Reason: "Max entries reached"}, nil
	}

	// Check 1: max entries.
	if pos := ctx.GPS.GetPosition(n.targetPositionID); pos != nil && pos.PositionNum >= n.maxEntries {
		n.permanentlyDisabled = true
		return Outcome{LogicCompleted: true, Reason: "Max entries reached"}, nil
	}

	// Check 2: open position.
	if pos := ctx.GPS.GetPosition(n.targetPositionID); pos != nil && pos.Status == "open" {
		return Outcome{Reason: "target position still open"}, nil
	}

	// Check 3: downstream EntryNode still active.
	if entryNode, ok := ctx.Graph.Node(n.targetEntryNodeID); ok && entryNode.Status() == StatusActive {
		return Outcome{Reason: "downstream entry node still active"}, nil
	}

	diag, err := expr.Evaluate(n.conditions, ctx.Expr)
	if err != nil {
		return Outcome{}, &FatalError{Err: fmt.Errorf("reEntrySignalNode %s: %w", n.id, err)}
	}
	eval := map[string]interface{}{"satisfied": diag.Satisfied, "leaves": diag.Leaves}
	if !diag.Satisfied {
		return Outcome{Evaluation: eval}, nil
	}

	n.reEntryNum++

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
		LogicCompleted:          true,
		ActivateChildren:        true,
		ResetChildrenForReEntry: true,
		Evaluation:              eval,
	}, nil
}
