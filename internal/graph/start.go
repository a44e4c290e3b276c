package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// StartNode is always Active from the beginning of the session. On its
// first evaluation it resolves the strategy's trading instrument (possibly
// a dynamic F&O symbol) and activates its children exactly once; on every
// evaluation thereafter (it never deactivates itself; only a square-off's
// session termination marks it Inactive) it re-checks the
// configured end conditions and, if one trips, activates the paired
// SquareOffNode directly.
type StartNode struct {
	Base

	config        types.TradingInstrumentConfig
	instrument    types.TradingInstrument
	endConditions *types.EndConditions

	squareOffNodeID string
	initialized     bool
	dayStart        time.Time
}

// NewStartNode constructs a StartNode from its parsed strategy JSON data.
// squareOffNodeID names the node to activate when an end condition trips;
// empty if the strategy has no SquareOffNode.
func NewStartNode(id string, data types.StartNodeData, squareOffNodeID string) *StartNode {
	return &StartNode{
		Base:            newBase(id, types.NodeTypeStart, data.Label),
		config:          data.TradingInstrumentConfig,
		instrument:      data.TradingInstrument,
		endConditions:   data.EndConditions,
		squareOffNodeID: squareOffNodeID,
	}
}

func (n *StartNode) OnTick(ctx *TickContext) (Outcome, error) {
	n.markActive() // StartNode never deactivates itself.

	if !n.initialized {
		n.dayStart = ctx.Now
		symbol, err := resolveDynamicSymbol(ctx, n.config.Symbol)
		if err != nil {
			return Outcome{}, &FatalError{Err: fmt.Errorf("startNode %s: resolve instrument: %w", n.id, err)}
		}
		ctx.StrategySymbol = symbol
		n.initialized = true

		return Outcome{
			ActivateChildren: true,
			Evaluation: map[string]interface{}{
				"resolved_symbol": symbol,
			},
		}, nil
	}

	triggered, reason := n.checkEndConditions(ctx)
	if triggered && n.squareOffNodeID != "" {
		return Outcome{
			ActivateNodeIDs: []string{n.squareOffNodeID},
			Reason:          reason,
			Evaluation:      map[string]interface{}{"end_condition_triggered": reason},
		}, nil
	}
	return Outcome{}, nil
}

func (n *StartNode) checkEndConditions(ctx *TickContext) (bool, string) {
	if n.endConditions == nil {
		return false, ""
	}
	if tb := n.endConditions.TimeBasedExit; tb != nil && tb.Enabled {
		if exitAfter(ctx.Now, tb.ExitTime) {
			return true, "time_based_exit"
		}
	}
	if pb := n.endConditions.PerformanceBasedExit; pb != nil && pb.Enabled {
		_, _, overall := ctx.GPS.OverallPNL()
		f, _ := overall.Float64()
		if pb.TargetProfit > 0 && f >= pb.TargetProfit {
			return true, "performance_target_profit"
		}
		if pb.MaxLoss > 0 && f <= -pb.MaxLoss {
			return true, "performance_max_loss"
		}
	}
	if ie := n.endConditions.ImmediateExit; ie != nil && ie.Enabled {
		return true, "immediate_exit"
	}
	return false, ""
}

// exitAfter reports whether now's wall-clock time-of-day is at or past
// "HH:MM" exitTime, per §8's "first tick past 15:20" scenario.
func exitAfter(now time.Time, exitTime string) bool {
	parts := strings.Split(exitTime, ":")
	if len(parts) != 2 {
		return false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	return !now.Before(target)
}
