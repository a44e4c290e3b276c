package graph

import (
	"fmt"

	"github.com/tradelayout/strategy-engine/internal/expr"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// ExitSignalNode mirrors EntrySignalNode: a one-shot condition evaluator
// whose satisfaction activates the downstream ExitNode. It carries no
// order-side logic of its own — the opposite-side order is constructed by
// ExitNode from the target position's recorded entry side.
type ExitSignalNode struct {
	Base

	conditions *expr.Condition
	variables  []Variable
}

// NewExitSignalNode constructs an ExitSignalNode from its parsed data.
func NewExitSignalNode(id string, data types.SignalNodeData) (*ExitSignalNode, error) {
	cond, err := expr.ParseCondition(data.Conditions)
	if err != nil {
		return nil, fmt.Errorf("exitSignalNode %s: %w", id, err)
	}
	vars, err := ParseVariables(data.Variables)
	if err != nil {
		return nil, fmt.Errorf("exitSignalNode %s: %w", id, err)
	}
	return &ExitSignalNode{
		Base:       newBase(id, types.NodeTypeExitSignal, data.Label),
		conditions: cond,
		variables:  vars,
	}, nil
}

func (n *ExitSignalNode) OnTick(ctx *TickContext) (Outcome, error) {
	diag, err := expr.Evaluate(n.conditions, ctx.Expr)
	if err != nil {
		return Outcome{}, &FatalError{Err: fmt.Errorf("exitSignalNode %s: %w", n.id, err)}
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

	return Outcome{LogicCompleted: true, ActivateChildren: true, Evaluation: eval}, nil
}
