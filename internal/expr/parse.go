package expr

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// exprJSON is the wire shape of one Expr node within a strategy document.
type exprJSON struct {
	Type         string          `json:"type"`
	Value        json.RawMessage `json:"value,omitempty"`
	Symbol       string          `json:"symbol,omitempty"`
	Timeframe    int             `json:"timeframe,omitempty"`
	Field        string          `json:"field,omitempty"`
	Offset       int             `json:"offset,omitempty"`
	IndicatorKey string          `json:"indicatorKey,omitempty"`
	NodeID       string          `json:"nodeId,omitempty"`
	VariableName string          `json:"variableName,omitempty"`
	Op           string          `json:"op,omitempty"`
	Left         json.RawMessage `json:"left,omitempty"`
	Right        json.RawMessage `json:"right,omitempty"`
}

// ParseExpr decodes one Expr node from its JSON representation.
func ParseExpr(raw json.RawMessage) (*Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ej exprJSON
	if err := json.Unmarshal(raw, &ej); err != nil {
		return nil, fmt.Errorf("expr: parse: %w", err)
	}

	switch Kind(ej.Type) {
	case KindNumber:
		var f float64
		if err := json.Unmarshal(ej.Value, &f); err != nil {
			return nil, fmt.Errorf("expr: number literal: %w", err)
		}
		return &Expr{Kind: KindNumber, NumberLiteral: decimal.NewFromFloat(f)}, nil
	case KindString:
		var s string
		if err := json.Unmarshal(ej.Value, &s); err != nil {
			return nil, fmt.Errorf("expr: string literal: %w", err)
		}
		return &Expr{Kind: KindString, StringLiteral: s}, nil
	case KindLTP:
		return &Expr{Kind: KindLTP, Symbol: ej.Symbol}, nil
	case KindUnderlying:
		return &Expr{Kind: KindUnderlying}, nil
	case KindCandleField:
		return &Expr{
			Kind:      KindCandleField,
			Symbol:    ej.Symbol,
			Timeframe: ej.Timeframe,
			Field:     types.CandleField(ej.Field),
			Offset:    ej.Offset,
		}, nil
	case KindIndicator:
		return &Expr{
			Kind:         KindIndicator,
			Symbol:       ej.Symbol,
			Timeframe:    ej.Timeframe,
			IndicatorKey: ej.IndicatorKey,
			Offset:       ej.Offset,
		}, nil
	case KindNodeVariable:
		return &Expr{Kind: KindNodeVariable, NodeID: ej.NodeID, VariableName: ej.VariableName}, nil
	case KindBinaryOp:
		left, err := ParseExpr(ej.Left)
		if err != nil {
			return nil, err
		}
		right, err := ParseExpr(ej.Right)
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: KindBinaryOp, Left: left, Op: BinOp(ej.Op), Right: right}, nil
	default:
		return nil, fmt.Errorf("expr: unknown expression type %q", ej.Type)
	}
}

// conditionJSON is the wire shape of one Condition node.
type conditionJSON struct {
	Type     string            `json:"type"` // "leaf" | "group"
	LHS      json.RawMessage   `json:"lhs,omitempty"`
	Op       string            `json:"op,omitempty"`
	RHS      json.RawMessage   `json:"rhs,omitempty"`
	Logical  string            `json:"logical,omitempty"`
	Children []json.RawMessage `json:"children,omitempty"`
}

// ParseCondition decodes one Condition node (leaf or group) from JSON.
func ParseCondition(raw json.RawMessage) (*Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var cj conditionJSON
	if err := json.Unmarshal(raw, &cj); err != nil {
		return nil, fmt.Errorf("condition: parse: %w", err)
	}

	switch cj.Type {
	case "leaf":
		lhs, err := ParseExpr(cj.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ParseExpr(cj.RHS)
		if err != nil {
			return nil, err
		}
		return &Condition{IsLeaf: true, LHS: lhs, Op: CompareOp(cj.Op), RHS: rhs}, nil
	case "group":
		children := make([]*Condition, 0, len(cj.Children))
		for _, raw := range cj.Children {
			child, err := ParseCondition(raw)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		return &Condition{Logical: Logical(cj.Logical), Children: children}, nil
	default:
		return nil, fmt.Errorf("condition: unknown condition type %q", cj.Type)
	}
}
