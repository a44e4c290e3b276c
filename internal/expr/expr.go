// Package expr implements the recursive expression and condition trees
// that strategy graph nodes evaluate against live market state.
package expr

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// Kind discriminates the variant held by an Expr.
type Kind string

const (
	KindNumber       Kind = "number"
	KindString       Kind = "string"
	KindLTP          Kind = "ltp"
	KindCandleField  Kind = "candle_field"
	KindIndicator    Kind = "indicator"
	KindNodeVariable Kind = "node_variable"
	KindUnderlying   Kind = "underlying_ltp"
	KindBinaryOp     Kind = "binary_op"
)

// BinOp is one of the arithmetic operators an expr.binary_op may apply.
type BinOp string

const (
	OpAdd BinOp = "+"
	OpSub BinOp = "-"
	OpMul BinOp = "*"
	OpDiv BinOp = "/"
	OpMod BinOp = "%"
)

// Expr is the recursive expression sum type described by §4.4. Exactly
// one field cluster is populated depending on Kind.
type Expr struct {
	Kind Kind

	// number / string literal
	NumberLiteral decimal.Decimal
	StringLiteral string

	// ltp(symbol)
	Symbol string

	// candle_field(symbol, timeframe, field, offset)
	Timeframe int
	Field     types.CandleField
	Offset    int

	// indicator(symbol, timeframe, key, offset) — reuses Symbol/Timeframe/Offset
	IndicatorKey string

	// node_variable(node_id, name)
	NodeID       string
	VariableName string

	// binary_op(left, op, right)
	Left  *Expr
	Op    BinOp
	Right *Expr
}

// Value is the result of resolving an Expr: either a decimal, a string,
// or unresolved (Null=true) per the "any null operand is non-satisfying" rule.
type Value struct {
	Decimal decimal.Decimal
	String  string
	IsStr   bool
	Null    bool
}

func numberValue(d decimal.Decimal) Value { return Value{Decimal: d} }
func stringValue(s string) Value          { return Value{String: s, IsStr: true} }
func nullValue() Value                    { return Value{Null: true} }

// Context resolves the live market/indicator/variable state an Expr needs.
// Implementations are supplied per-session by the scheduler, backed by the
// LTP store, candle.Builder, indicator.Engine and gps.Store.
type Context interface {
	LTP(symbol string) (decimal.Decimal, bool)
	UnderlyingLTP() (decimal.Decimal, bool)
	CandleField(symbol string, timeframe int, field types.CandleField, offset int) (decimal.Decimal, bool)
	Indicator(symbol string, timeframe int, key string, offset int) (decimal.Decimal, bool)
	NodeVariable(nodeID, name string) (decimal.Decimal, bool)
}

// Eval resolves an Expr against ctx.
func Eval(e *Expr, ctx Context) (Value, error) {
	if e == nil {
		return nullValue(), nil
	}
	switch e.Kind {
	case KindNumber:
		return numberValue(e.NumberLiteral), nil
	case KindString:
		return stringValue(e.StringLiteral), nil
	case KindLTP:
		v, ok := ctx.LTP(e.Symbol)
		if !ok {
			return nullValue(), nil
		}
		return numberValue(v), nil
	case KindUnderlying:
		v, ok := ctx.UnderlyingLTP()
		if !ok {
			return nullValue(), nil
		}
		return numberValue(v), nil
	case KindCandleField:
		v, ok := ctx.CandleField(e.Symbol, e.Timeframe, e.Field, e.Offset)
		if !ok {
			return nullValue(), nil
		}
		return numberValue(v), nil
	case KindIndicator:
		v, ok := ctx.Indicator(e.Symbol, e.Timeframe, e.IndicatorKey, e.Offset)
		if !ok {
			return nullValue(), nil
		}
		return numberValue(v), nil
	case KindNodeVariable:
		v, ok := ctx.NodeVariable(e.NodeID, e.VariableName)
		if !ok {
			return nullValue(), nil
		}
		return numberValue(v), nil
	case KindBinaryOp:
		return evalBinaryOp(e, ctx)
	default:
		return Value{}, fmt.Errorf("expr: unknown kind %q", e.Kind)
	}
}

func evalBinaryOp(e *Expr, ctx Context) (Value, error) {
	left, err := Eval(e.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	right, err := Eval(e.Right, ctx)
	if err != nil {
		return Value{}, err
	}
	if left.Null || right.Null || left.IsStr || right.IsStr {
		return nullValue(), nil
	}
	switch e.Op {
	case OpAdd:
		return numberValue(left.Decimal.Add(right.Decimal)), nil
	case OpSub:
		return numberValue(left.Decimal.Sub(right.Decimal)), nil
	case OpMul:
		return numberValue(left.Decimal.Mul(right.Decimal)), nil
	case OpDiv:
		if right.Decimal.IsZero() {
			return nullValue(), nil
		}
		return numberValue(left.Decimal.Div(right.Decimal)), nil
	case OpMod:
		if right.Decimal.IsZero() {
			return nullValue(), nil
		}
		return numberValue(left.Decimal.Mod(right.Decimal)), nil
	default:
		return Value{}, fmt.Errorf("expr: unknown binary op %q", e.Op)
	}
}

// Preview renders a short textual form of the expression for diagnostics.
func Preview(e *Expr) string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindNumber:
		return e.NumberLiteral.String()
	case KindString:
		return fmt.Sprintf("%q", e.StringLiteral)
	case KindLTP:
		return fmt.Sprintf("ltp(%s)", e.Symbol)
	case KindUnderlying:
		return "underlying_ltp"
	case KindCandleField:
		return fmt.Sprintf("candle_field(%s,%dm,%s,%d)", e.Symbol, e.Timeframe, e.Field, e.Offset)
	case KindIndicator:
		return fmt.Sprintf("indicator(%s,%dm,%s,%d)", e.Symbol, e.Timeframe, e.IndicatorKey, e.Offset)
	case KindNodeVariable:
		return fmt.Sprintf("node_variable(%s,%s)", e.NodeID, e.VariableName)
	case KindBinaryOp:
		return fmt.Sprintf("(%s %s %s)", Preview(e.Left), e.Op, Preview(e.Right))
	default:
		return "<invalid>"
	}
}
