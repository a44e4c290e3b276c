package graph

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

func numberExprJSON(n int) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{"type": "number", "value": n})
	return raw
}

func nodeVarExprJSON(nodeID, name string) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{"type": "node_variable", "nodeId": nodeID, "variableName": name})
	return raw
}

func binaryExprJSON(op string, left, right json.RawMessage) json.RawMessage {
	raw, _ := json.Marshal(map[string]interface{}{"type": "binary_op", "op": op, "left": json.RawMessage(left), "right": json.RawMessage(right)})
	return raw
}

func TestEvaluateVariablesResolvesInDependencyOrder(t *testing.T) {
	defs := []types.VariableDef{
		{Name: "base", Expression: numberExprJSON(10)},
		{Name: "doubled", Expression: binaryExprJSON("*", nodeVarExprJSON("n", "base"), numberExprJSON(2))},
	}
	vars, err := ParseVariables(defs)
	if err != nil {
		t.Fatal(err)
	}
	values, err := EvaluateVariables("n", vars, &fakeExprContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !values["base"].Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected base=10, got %s", values["base"])
	}
	if !values["doubled"].Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected doubled=20 (depends on base), got %s", values["doubled"])
	}
}

func TestDetectCyclesCatchesSelfReference(t *testing.T) {
	defs := []types.VariableDef{
		{Name: "a", Expression: nodeVarExprJSON("n", "a")},
	}
	vars, err := ParseVariables(defs)
	if err != nil {
		t.Fatal(err)
	}
	_, err = EvaluateVariables("n", vars, &fakeExprContext{})
	if err == nil {
		t.Fatal("expected self-reference to be rejected")
	}
	if !strings.Contains(err.Error(), "references itself") {
		t.Fatalf("expected self-reference message, got %v", err)
	}
}

func TestDetectCyclesAggregatesMultipleProblems(t *testing.T) {
	defs := []types.VariableDef{
		{Name: "a", Expression: nodeVarExprJSON("n", "b")},
		{Name: "b", Expression: nodeVarExprJSON("n", "a")},
		{Name: "c", Expression: nodeVarExprJSON("n", "c")},
	}
	vars, err := ParseVariables(defs)
	if err != nil {
		t.Fatal(err)
	}
	_, err = EvaluateVariables("n", vars, &fakeExprContext{})
	if err == nil {
		t.Fatal("expected cycle errors")
	}
	errs := multierrErrors(err)
	if len(errs) < 2 {
		t.Fatalf("expected both the a<->b cycle and c's self-reference reported, got %d error(s): %v", len(errs), err)
	}
}

// multierrErrors unwraps a FatalError down to the multierr-combined error it
// wraps, for asserting how many distinct problems were aggregated.
func multierrErrors(err error) []error {
	if fe, ok := err.(*FatalError); ok {
		err = fe.Err
	}
	if inner := errors.Unwrap(err); inner != nil {
		err = inner
	}
	return multierr.Errors(err)
}
