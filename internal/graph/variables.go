package graph

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/tradelayout/strategy-engine/internal/expr"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// Variable is one node-scoped computed variable: an expression over other
// variables within the same node (and/or live market state).
type Variable struct {
	Name string
	Expr *expr.Expr
}

// ParseVariables decodes a node's VariableDef list into Variable trees.
func ParseVariables(defs []types.VariableDef) ([]Variable, error) {
	out := make([]Variable, 0, len(defs))
	for _, d := range defs {
		e, err := expr.ParseExpr(d.Expression)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", d.Name, err)
		}
		out = append(out, Variable{Name: d.Name, Expr: e})
	}
	return out, nil
}

// dependencyGraph maps each variable name to the same-node variable names
// its expression references. EvaluateVariables rebuilds it on every call.
func dependencyGraph(vars []Variable) map[string][]string {
	byName := make(map[string]bool, len(vars))
	for _, v := range vars {
		byName[v.Name] = true
	}
	deps := make(map[string][]string, len(vars))
	for _, v := range vars {
		var refs []string
		collectNodeVariableRefs(v.Expr, byName, &refs)
		deps[v.Name] = refs
	}
	return deps
}

func collectNodeVariableRefs(e *expr.Expr, known map[string]bool, out *[]string) {
	if e == nil {
		return
	}
	switch e.Kind {
	case expr.KindNodeVariable:
		if known[e.VariableName] {
			*out = append(*out, e.VariableName)
		}
	case expr.KindBinaryOp:
		collectNodeVariableRefs(e.Left, known, out)
		collectNodeVariableRefs(e.Right, known, out)
	}
}

// detectCycles runs a DFS-based cycle check over the variable dependency
// graph, per entry_signal_node.py's _detect_circular_dependency. Every
// self-reference or cycle found is collected (not just the first) and
// aggregated with multierr, so a strategy author sees every problem in one
// pass instead of fixing them one at a time.
func detectCycles(deps map[string][]string) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(deps))
	var allErrs error

	var visit func(name string, path []string)
	visit = func(name string, path []string) {
		color[name] = gray
		path = append(path, name)
		for _, dep := range deps[name] {
			if dep == name {
				allErrs = multierr.Append(allErrs, fmt.Errorf("variable %q references itself", name))
				continue
			}
			switch color[dep] {
			case white:
				visit(dep, path)
			case gray:
				allErrs = multierr.Append(allErrs, fmt.Errorf("circular variable dependency: %v -> %s", path, dep))
			}
		}
		color[name] = black
	}

	for name := range deps {
		if color[name] == white {
			visit(name, nil)
		}
	}
	return allErrs
}

// EvaluateVariables evaluates vars in dependency order against ctx, writing
// each result into a node-scoped map as it becomes available so later
// variables in the same pass can read earlier ones via node_variable(...).
// Cycles and self-references are hard errors, checked before evaluation.
func EvaluateVariables(nodeID string, vars []Variable, ctx expr.Context) (map[string]decimal.Decimal, error) {
	deps := dependencyGraph(vars)
	if err := detectCycles(deps); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("node %s: %w", nodeID, err)}
	}

	resolved := make(map[string]decimal.Decimal, len(vars))
	local := &localVarContext{Context: ctx, nodeID: nodeID, resolved: resolved}
	remaining := make(map[string]*Variable, len(vars))
	for i := range vars {
		remaining[vars[i].Name] = &vars[i]
	}

	for len(remaining) > 0 {
		progressed := false
		for name, v := range remaining {
			ready := true
			for _, dep := range deps[name] {
				if _, ok := resolved[dep]; !ok {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			val, err := expr.Eval(v.Expr, local)
			if err != nil {
				return nil, fmt.Errorf("node %s variable %q: %w", nodeID, name, err)
			}
			if !val.Null {
				resolved[name] = val.Decimal
			}
			delete(remaining, name)
			progressed = true
		}
		if !progressed {
			// Shouldn't happen: detectCycles above should have caught this.
			return nil, &FatalError{Err: fmt.Errorf("node %s: variable evaluation stalled, undetected cycle", nodeID)}
		}
	}
	return resolved, nil
}

// localVarContext layers the in-progress resolved map for nodeID over the
// session's real expr.Context, so a variable's expression can reference an
// earlier variable in the same evaluation pass before it has been written
// to GPS (which only happens once EvaluateVariables returns as a whole).
type localVarContext struct {
	expr.Context
	nodeID   string
	resolved map[string]decimal.Decimal
}

func (l *localVarContext) NodeVariable(nodeID, name string) (decimal.Decimal, bool) {
	if nodeID == l.nodeID {
		v, ok := l.resolved[name]
		if ok {
			return v, true
		}
		return decimal.Decimal{}, false
	}
	return l.Context.NodeVariable(nodeID, name)
}
