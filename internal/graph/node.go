// Package graph implements the strategy graph: the node state machine and
// recursive per-tick traversal described by §4.5, plus the node catalogue
// (StartNode through SquareOffNode) that drives GPS positions, order
// placement, and node-scoped Variables off live market state.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tradelayout/strategy-engine/internal/broker"
	"github.com/tradelayout/strategy-engine/internal/expr"
	"github.com/tradelayout/strategy-engine/internal/fno"
	"github.com/tradelayout/strategy-engine/internal/gps"
	"github.com/tradelayout/strategy-engine/pkg/types"
)

// Status is a node's place in the Inactive/Active/Pending state machine.
type Status string

const (
	StatusInactive Status = "Inactive"
	StatusActive   Status = "Active"
	StatusPending  Status = "Pending"
)

// Outcome is what a node's OnTick reports back to the traversal engine. The
// engine — not the node — owns deciding whether to deactivate the node and
// whether to activate its children, per the Dynamic Dispatch design note.
type Outcome struct {
	// LogicCompleted ends this node's turn: it is marked Inactive (unless
	// Pending) and, if ActivateChildren is set, children are activated.
	LogicCompleted bool
	// Pending keeps the node in Status=Pending, re-evaluated next tick
	// without re-running the "place new order" branch.
	Pending bool
	// ActivateChildren tells the engine to activate this node's children
	// with this node's fresh execution_id and current reEntryNum.
	ActivateChildren bool
	// ResetChildrenForReEntry additionally resets each child's visited
	// epoch and order tracking, used only by ReEntrySignalNode so a fresh
	// entry order can flow within the same tick.
	ResetChildrenForReEntry bool
	// Reason is a short human-readable note attached to the diagnostics event.
	Reason string
	// Evaluation carries node-specific diagnostic data (condition leaves,
	// order projection, etc.) recorded against this execution_id.
	Evaluation map[string]interface{}
	// ActivateNodeIDs directly activates nodes outside the normal children
	// list. Used only by StartNode to trigger its paired SquareOffNode,
	// since the square-off decision depends on endConditions that live on
	// StartNode, not on SquareOffNode's own (conditionless) data.
	ActivateNodeIDs []string
	// TerminateSession tells the engine to mark every node in the graph
	// Inactive once this outcome is applied. Set only by SquareOffNode.
	TerminateSession bool
}

// Base holds the execution state every node kind shares. Concrete node
// types embed Base and implement OnTick for their own logic; the shared
// visited/status/execution-id bookkeeping lives here rather than being
// duplicated per kind.
type Base struct {
	id     string
	kind   string
	name   string
	status Status

	lastVisitedEpoch  int
	reEntryNum        int
	executionID       string
	parentExecutionID string
}

func newBase(id, kind, name string) Base {
	return Base{id: id, kind: kind, name: name, status: StatusInactive}
}

func (b *Base) ID() string      { return b.id }
func (b *Base) Kind() string    { return b.kind }
func (b *Base) Name() string    { return b.name }
func (b *Base) Status() Status  { return b.status }
func (b *Base) ReEntryNum() int { return b.reEntryNum }

func (b *Base) markActive()   { b.status = StatusActive }
func (b *Base) markInactive() { b.status = StatusInactive }
func (b *Base) markPending()  { b.status = StatusPending }

// base exposes the shared execution-state fields to the traversal engine.
// It is unexported so only package graph can walk/mutate it; every node
// kind gets this for free via Base embedding.
func (b *Base) base() *Base { return b }

// StatusInfo is the supplemented introspection feature (§3) mirroring the
// original's get_status_info: a stable snapshot for diagnostics/debug UIs.
type StatusInfo struct {
	NodeID   string   `json:"nodeId"`
	NodeType string   `json:"nodeType"`
	Name     string   `json:"name"`
	Status   Status   `json:"status"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
}

// Node is the interface every node kind implements. The hot-loop entry is
// OnTick; everything about visited-flag bookkeeping and children activation
// is handled by the traversal engine, not by the node itself.
type Node interface {
	ID() string
	Kind() string
	Name() string
	Status() Status
	ReEntryNum() int
	OnTick(ctx *TickContext) (Outcome, error)

	base() *Base
}

// resettable is implemented by nodes that need custom reset behavior beyond
// the base status/visited fields (EntryNode clears its order tracking).
type resettable interface {
	resetForReEntry()
}

// TickContext is everything a node's OnTick needs to evaluate conditions,
// resolve symbols, place orders, and read/write GPS, for the current tick.
type TickContext struct {
	Context context.Context
	Now     time.Time
	Mode    string // "backtest" | "live"
	Logger  *zap.Logger

	GPS      *gps.Store
	Expr     expr.Context
	Gateway  broker.OrderGateway
	Resolver *fno.Resolver

	StrategySymbol string // resolved trading instrument, set by StartNode
	StrategyScale  decimal.Decimal

	Recorder Recorder

	// Graph gives a node read access to the rest of the graph: used by
	// ReEntrySignalNode's "downstream EntryNode still active" check and by
	// SquareOffNode to find EntryNode/ExitNode orders still in flight.
	Graph *Graph
}

// Recorder receives per-node-execution diagnostic snapshots. Implemented by
// internal/diagnostics; nil is a valid no-op recorder.
type Recorder interface {
	RecordEvaluation(executionID, nodeID, nodeType string, data map[string]interface{})
}

func generateExecutionID(nodeID string, now time.Time, seq int) string {
	return fmt.Sprintf("exec_%s_%d_%d", nodeID, now.UnixNano(), seq)
}

// FatalError marks an error as session-terminating per §4.5's failure
// semantics (condition/expression evaluator errors, ConcurrentOpenPosition).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// resolveDynamicSymbol resolves symbol through ctx.Resolver if it uses the
// dynamic F&O grammar, otherwise returns it unchanged.
func resolveDynamicSymbol(ctx *TickContext, symbol string) (string, error) {
	if !fno.IsDynamic(symbol) {
		return symbol, nil
	}
	return ctx.Resolver.Resolve(symbol, ctx.Now)
}

func sideFromPositionType(s string) types.Side {
	if s == "sell" || s == "SELL" {
		return types.SideSell
	}
	return types.SideBuy
}

func orderTypeFrom(s string) types.OrderType {
	switch s {
	case "LIMIT":
		return types.OrderTypeLimit
	case "SL_MARKET":
		return types.OrderTypeSLMarket
	case "SL_LIMIT":
		return types.OrderTypeSLLimit
	default:
		return types.OrderTypeMarket
	}
}

func productTypeFrom(s string) types.ProductType {
	switch s {
	case "NORMAL":
		return types.ProductNormal
	case "COVER":
		return types.ProductCover
	default:
		return types.ProductIntraday
	}
}
