package graph

// Graph stores nodes by ID plus two adjacency maps, never owning pointers
// between nodes (per the Cyclic References design note), and drives the
// per-tick recursive traversal from StartNode.
type Graph struct {
	nodes    map[string]Node
	children map[string][]string
	parents  map[string][]string
	startID  string

	epoch         int
	executionSeq  int
}

// NewGraph constructs an empty graph. Use AddNode/Connect to build it, then
// SetStart to name the entry point before the first Traverse.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode registers a node by its ID.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID()] = n
}

// Connect records a directed edge parent -> child.
func (g *Graph) Connect(parentID, childID string) {
	g.children[parentID] = append(g.children[parentID], childID)
	g.parents[childID] = append(g.parents[childID], parentID)
}

// SetStart names the node the traversal begins from on every tick.
func (g *Graph) SetStart(id string) { g.startID = id }

// Node looks up a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns every node in the graph, for iteration (e.g. SquareOffNode
// looking for orders still in flight).
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// StatusInfo returns the supplemented introspection snapshot for one node.
func (g *Graph) StatusInfo(id string) (StatusInfo, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return StatusInfo{}, false
	}
	return StatusInfo{
		NodeID:   n.ID(),
		NodeType: n.Kind(),
		Name:     n.Name(),
		Status:   n.Status(),
		Parents:  append([]string(nil), g.parents[id]...),
		Children: append([]string(nil), g.children[id]...),
	}, true
}

// Traverse runs one recursive descent from StartNode for the current tick.
// Per §4.5: reset visited globally (an epoch bump), then descend; a node
// already visited this epoch returns immediately (cycle guard); children
// are always visited regardless of their parent's resulting status.
func (g *Graph) Traverse(ctx *TickContext) error {
	g.epoch++
	if g.startID == "" {
		return nil
	}
	ctx.Graph = g
	return g.descend(g.startID, "", ctx)
}

func (g *Graph) descend(id string, parentExecutionID string, ctx *TickContext) error {
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	b := node.base()
	if b.lastVisitedEpoch == g.epoch {
		return nil
	}
	b.lastVisitedEpoch = g.epoch

	if b.status == StatusActive {
		g.executionSeq++
		b.executionID = generateExecutionID(id, ctx.Now, g.executionSeq)
		b.parentExecutionID = parentExecutionID

		outcome, err := node.OnTick(ctx)
		if err != nil {
			return err
		}

		if ctx.Recorder != nil {
			ctx.Recorder.RecordEvaluation(b.executionID, id, node.Kind(), outcome.Evaluation)
		}

		switch {
		case outcome.Pending:
			b.markPending()
		case outcome.LogicCompleted:
			b.markInactive()
		default:
			// still active, not completed (e.g. StartNode's recurring
			// end-condition check): re-evaluated next tick.
		}
		if outcome.ActivateChildren {
			g.activateChildren(id, b.executionID, outcome.ResetChildrenForReEntry)
		}
		g.activateSpecific(outcome.ActivateNodeIDs, b.executionID)
		if outcome.TerminateSession {
			g.deactivateAll()
		}
	} else if b.status == StatusPending {
		g.executionSeq++
		b.executionID = generateExecutionID(id, ctx.Now, g.executionSeq)

		outcome, err := node.OnTick(ctx)
		if err != nil {
			return err
		}
		if ctx.Recorder != nil {
			ctx.Recorder.RecordEvaluation(b.executionID, id, node.Kind(), outcome.Evaluation)
		}
		if !outcome.Pending {
			if outcome.LogicCompleted {
				b.markInactive()
			}
			if outcome.ActivateChildren {
				g.activateChildren(id, b.executionID, outcome.ResetChildrenForReEntry)
			}
			g.activateSpecific(outcome.ActivateNodeIDs, b.executionID)
			if outcome.TerminateSession {
				g.deactivateAll()
			}
		}
	}

	// Children are visited regardless of this node's resulting status.
	for _, childID := range g.children[id] {
		if err := g.descend(childID, b.executionID, ctx); err != nil {
			return err
		}
	}
	return nil
}

// activateChildren sets every child of parentID to Active, propagates
// reEntryNum unchanged (only ReEntrySignalNode increments its own), and
// records parentExecutionID as the child's parent_execution_id. When
// resetForReEntry is set (ReEntrySignalNode only) it additionally resets
// each child's visited epoch and any reset-for-re-entry state so a fresh
// order can flow within the same tick.
func (g *Graph) activateChildren(parentID, parentExecutionID string, resetForReEntry bool) {
	parent := g.nodes[parentID]
	reEntryNum := parent.base().reEntryNum

	for _, childID := range g.children[parentID] {
		child, ok := g.nodes[childID]
		if !ok {
			continue
		}
		cb := child.base()
		cb.markActive()
		cb.reEntryNum = reEntryNum
		cb.parentExecutionID = parentExecutionID
		if resetForReEntry {
			cb.lastVisitedEpoch = 0
			if r, ok := child.(resettable); ok {
				r.resetForReEntry()
			}
		}
	}
}

// deactivateAll marks every node in the graph Inactive. Called once
// SquareOffNode's outcome carries TerminateSession, ending the session's
// strategy graph for the rest of the day.
func (g *Graph) deactivateAll() {
	for _, node := range g.nodes {
		node.base().markInactive()
	}
}

// activateSpecific directly activates nodes outside the normal children
// list (StartNode's paired SquareOffNode on an end-condition trigger).
func (g *Graph) activateSpecific(ids []string, parentExecutionID string) {
	for _, id := range ids {
		node, ok := g.nodes[id]
		if !ok {
			continue
		}
		cb := node.base()
		if cb.status == StatusActive {
			continue
		}
		cb.markActive()
		cb.parentExecutionID = parentExecutionID
		cb.lastVisitedEpoch = 0
	}
}
