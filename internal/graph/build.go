package graph

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradelayout/strategy-engine/pkg/types"
)

// BuildFromDef parses a strategy JSON document into a ready-to-traverse
// Graph. It wires every EdgeDef, auto-discovers the single squareOffNode so
// StartNode can trigger it on an end-condition without the square-off node
// needing any awareness of why, and auto-discovers each signal node's target
// position/EntryNode from the first downstream EntryNode reachable from it.
func BuildFromDef(def *types.GraphDef, strategyName string) (*Graph, decimal.Decimal, error) {
	g := NewGraph()

	var startID, squareOffID string
	entryPositionOwner := map[string]string{} // position VPI -> owning EntryNode ID
	strategyScale := decimal.NewFromInt(1)

	// First pass: figure out which node is start / square-off (StartNode needs
	// the square-off ID when it is constructed), and record which EntryNode
	// owns which position VPI. Signal nodes are bound to their target through
	// childEntryNode below; this map is not consulted for that.
	for _, nd := range def.Nodes {
		switch nd.Type {
		case types.NodeTypeStart:
			startID = nd.ID
		case types.NodeTypeSquareOff:
			squareOffID = nd.ID
		case types.NodeTypeEntry:
			var data types.EntryNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("entryNode %s: %w", nd.ID, err)
			}
			for _, pos := range data.Positions {
				entryPositionOwner[pos.VPI] = nd.ID
			}
		}
	}

	// childEntryNode finds the first EntryNode reachable by following edges
	// forward from nodeID, used to auto-bind a signal node to its target.
	childEntryNode := func(nodeID string) (entryID string, vpi string, maxEntries int) {
		visited := map[string]bool{}
		var walk func(id string) bool
		walk = func(id string) bool {
			if visited[id] {
				return false
			}
			visited[id] = true
			for _, e := range def.Edges {
				if e.Source != id {
					continue
				}
				for _, nd := range def.Nodes {
					if nd.ID != e.Target {
						continue
					}
					if nd.Type == types.NodeTypeEntry {
						var data types.EntryNodeData
						if json.Unmarshal(nd.Data, &data) == nil && len(data.Positions) > 0 {
							entryID = nd.ID
							vpi = data.Positions[0].VPI
							maxEntries = data.Positions[0].MaxEntries
						}
						return true
					}
					if walk(nd.ID) {
						return true
					}
				}
			}
			return false
		}
		walk(nodeID)
		return entryID, vpi, maxEntries
	}

	for _, nd := range def.Nodes {
		switch nd.Type {
		case types.NodeTypeStart:
			var data types.StartNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("startNode %s: %w", nd.ID, err)
			}
			if data.StrategyScale > 0 {
				strategyScale = decimal.NewFromFloat(data.StrategyScale)
			}
			g.AddNode(NewStartNode(nd.ID, data, squareOffID))

		case types.NodeTypeEntrySignal:
			var data types.SignalNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("entrySignalNode %s: %w", nd.ID, err)
			}
			_, vpi, _ := childEntryNode(nd.ID)
			node, err := NewEntrySignalNode(nd.ID, data, vpi)
			if err != nil {
				return nil, strategyScale, err
			}
			g.AddNode(node)

		case types.NodeTypeReEntrySignal:
			var data types.SignalNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("reEntrySignalNode %s: %w", nd.ID, err)
			}
			entryID, vpi, maxEntries := childEntryNode(nd.ID)
			node, err := NewReEntrySignalNode(nd.ID, data, maxEntries, vpi, entryID)
			if err != nil {
				return nil, strategyScale, err
			}
			g.AddNode(node)

		case types.NodeTypeEntry:
			var data types.EntryNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("entryNode %s: %w", nd.ID, err)
			}
			if len(data.Positions) == 0 {
				return nil, strategyScale, fmt.Errorf("entryNode %s: no positions defined", nd.ID)
			}
			g.AddNode(NewEntryNode(nd.ID, data.Label, data.Positions[0], strategyName))

		case types.NodeTypeExitSignal:
			var data types.SignalNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("exitSignalNode %s: %w", nd.ID, err)
			}
			node, err := NewExitSignalNode(nd.ID, data)
			if err != nil {
				return nil, strategyScale, err
			}
			g.AddNode(node)

		case types.NodeTypeExit:
			var data types.ExitNodeData
			if err := json.Unmarshal(nd.Data, &data); err != nil {
				return nil, strategyScale, fmt.Errorf("exitNode %s: %w", nd.ID, err)
			}
			cfg := data.OrderConfig()
			if cfg == nil {
				return nil, strategyScale, fmt.Errorf("exitNode %s: missing exit order config", nd.ID)
			}
			g.AddNode(NewExitNode(nd.ID, data.Label, *cfg))

		case types.NodeTypeSquareOff:
			var label struct {
				Label string `json:"label"`
			}
			_ = json.Unmarshal(nd.Data, &label)
			g.AddNode(NewSquareOffNode(nd.ID, label.Label))

		case types.NodeTypeStrategyOverview:
			// UI-only, carries no execution semantics.
			continue

		default:
			return nil, strategyScale, fmt.Errorf("unrecognized node type %q for node %s", nd.Type, nd.ID)
		}
	}

	if startID == "" {
		return nil, strategyScale, fmt.Errorf("graph has no startNode")
	}

	for _, e := range def.Edges {
		g.Connect(e.Source, e.Target)
	}

	// StartNode must be able to reach SquareOffNode through the normal
	// children traversal once activateSpecific flips it Active, or the
	// same-tick visit never happens. Guarantee reachability defensively.
	if squareOffID != "" && !edgeExists(def.Edges, startID, squareOffID) {
		g.Connect(startID, squareOffID)
	}

	g.SetStart(startID)
	if start, ok := g.Node(startID); ok {
		start.base().markActive()
	}
	return g, strategyScale, nil
}

func edgeExists(edges []types.EdgeDef, source, target string) bool {
	for _, e := range edges {
		if e.Source == source && e.Target == target {
			return true
		}
	}
	return false
}
