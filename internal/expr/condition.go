package expr

import (
	"fmt"
)

// CompareOp is a leaf condition's comparison operator.
type CompareOp string

const (
	OpGT            CompareOp = ">"
	OpLT            CompareOp = "<"
	OpGTE           CompareOp = ">="
	OpLTE           CompareOp = "<="
	OpEQ            CompareOp = "=="
	OpNEQ           CompareOp = "!="
	OpCrossesAbove  CompareOp = "crosses_above"
	OpCrossesBelow  CompareOp = "crosses_below"
)

// Logical combines child conditions in a group.
type Logical string

const (
	LogicalAND Logical = "AND"
	LogicalOR  Logical = "OR"
)

// Condition is the recursive condition sum type: either a comparison leaf
// or a logical group of child conditions.
type Condition struct {
	// leaf
	IsLeaf bool
	LHS    *Expr
	Op     CompareOp
	RHS    *Expr

	// group
	Logical  Logical
	Children []*Condition
}

// LeafDiagnostic records one leaf's evaluated operands for the event stream.
type LeafDiagnostic struct {
	Preview   string
	LHS       Value
	RHS       Value
	Satisfied bool
}

// Diagnostic is the full evaluation trace for a Condition tree.
type Diagnostic struct {
	Satisfied bool
	Leaves    []LeafDiagnostic
}

// Evaluate walks the condition tree against ctx, returning whether it is
// satisfied and a diagnostic trace of every leaf comparison performed.
func Evaluate(c *Condition, ctx Context) (Diagnostic, error) {
	if c == nil {
		return Diagnostic{Satisfied: false}, nil
	}
	if c.IsLeaf {
		return evaluateLeaf(c, ctx)
	}
	return evaluateGroup(c, ctx)
}

func evaluateLeaf(c *Condition, ctx Context) (Diagnostic, error) {
	lhs, err := Eval(c.LHS, ctx)
	if err != nil {
		return Diagnostic{}, err
	}

	if c.Op == OpCrossesAbove || c.Op == OpCrossesBelow {
		return evaluateCross(c, ctx, lhs)
	}

	rhs, err := Eval(c.RHS, ctx)
	if err != nil {
		return Diagnostic{}, err
	}

	satisfied := false
	if !lhs.Null && !rhs.Null {
		satisfied, err = compare(lhs, rhs, c.Op)
		if err != nil {
			return Diagnostic{}, err
		}
	}

	leaf := LeafDiagnostic{
		Preview:   fmt.Sprintf("%s %s %s", Preview(c.LHS), c.Op, Preview(c.RHS)),
		LHS:       lhs,
		RHS:       rhs,
		Satisfied: satisfied,
	}
	return Diagnostic{Satisfied: satisfied, Leaves: []LeafDiagnostic{leaf}}, nil
}

// evaluateCross resolves crosses_above/crosses_below, which require both
// offset=0 and offset=-1 to be resolvable on both sides.
func evaluateCross(c *Condition, ctx Context, lhsNow Value) (Diagnostic, error) {
	rhsNow, err := Eval(c.RHS, ctx)
	if err != nil {
		return Diagnostic{}, err
	}
	lhsPrevExpr := shiftOffset(c.LHS, -1)
	rhsPrevExpr := shiftOffset(c.RHS, -1)
	lhsPrev, err := Eval(lhsPrevExpr, ctx)
	if err != nil {
		return Diagnostic{}, err
	}
	rhsPrev, err := Eval(rhsPrevExpr, ctx)
	if err != nil {
		return Diagnostic{}, err
	}

	satisfied := false
	if !lhsNow.Null && !rhsNow.Null && !lhsPrev.Null && !rhsPrev.Null {
		nowAbove := lhsNow.Decimal.GreaterThan(rhsNow.Decimal)
		prevAbove := lhsPrev.Decimal.GreaterThan(rhsPrev.Decimal)
		if c.Op == OpCrossesAbove {
			satisfied = nowAbove && !prevAbove
		} else {
			satisfied = !nowAbove && prevAbove
		}
	}

	leaf := LeafDiagnostic{
		Preview:   fmt.Sprintf("%s %s %s", Preview(c.LHS), c.Op, Preview(c.RHS)),
		LHS:       lhsNow,
		RHS:       rhsNow,
		Satisfied: satisfied,
	}
	return Diagnostic{Satisfied: satisfied, Leaves: []LeafDiagnostic{leaf}}, nil
}

// shiftOffset returns a copy of e with delta added to its Offset,
// for expressions that carry an offset (candle_field, indicator). Other
// expression kinds are returned unchanged since they have no offset to shift.
func shiftOffset(e *Expr, delta int) *Expr {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindCandleField, KindIndicator:
		shifted := *e
		shifted.Offset += delta
		return &shifted
	default:
		return e
	}
}

func compare(lhs, rhs Value, op CompareOp) (bool, error) {
	if lhs.IsStr || rhs.IsStr {
		switch op {
		case OpEQ:
			return lhs.String == rhs.String, nil
		case OpNEQ:
			return lhs.String != rhs.String, nil
		default:
			return false, fmt.Errorf("expr: operator %q not valid for string operands", op)
		}
	}
	switch op {
	case OpGT:
		return lhs.Decimal.GreaterThan(rhs.Decimal), nil
	case OpLT:
		return lhs.Decimal.LessThan(rhs.Decimal), nil
	case OpGTE:
		return lhs.Decimal.GreaterThanOrEqual(rhs.Decimal), nil
	case OpLTE:
		return lhs.Decimal.LessThanOrEqual(rhs.Decimal), nil
	case OpEQ:
		return lhs.Decimal.Equal(rhs.Decimal), nil
	case OpNEQ:
		return !lhs.Decimal.Equal(rhs.Decimal), nil
	default:
		return false, fmt.Errorf("expr: unknown compare op %q", op)
	}
}

func evaluateGroup(c *Condition, ctx Context) (Diagnostic, error) {
	var leaves []LeafDiagnostic
	satisfied := c.Logical == LogicalAND

	for _, child := range c.Children {
		childDiag, err := Evaluate(child, ctx)
		if err != nil {
			return Diagnostic{}, err
		}
		leaves = append(leaves, childDiag.Leaves...)
		switch c.Logical {
		case LogicalAND:
			satisfied = satisfied && childDiag.Satisfied
		case LogicalOR:
			satisfied = satisfied || childDiag.Satisfied
		}
	}
	if len(c.Children) == 0 {
		satisfied = false
	}
	return Diagnostic{Satisfied: satisfied, Leaves: leaves}, nil
}
