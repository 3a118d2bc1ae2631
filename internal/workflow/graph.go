package workflow

// NextStep describes one outgoing edge from a node, pre-resolved into the
// form the successor planner persists alongside polling steps: target node,
// edge identity, branch classification, and delay in milliseconds.
type NextStep struct {
	NodeID          string `json:"nodeId"`
	EdgeID          string `json:"edgeId"`
	IsConditional   bool   `json:"isConditional,omitempty"`
	ConditionalType string `json:"conditionalType,omitempty"` // accepted | not_accepted
	DelayMs         int64  `json:"delayMs"`
}

// retained returns the non-placeholder nodes in document order.
func (w *Workflow) retained() []Node {
	out := make([]Node, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.Type != NodePlaceholder {
			out = append(out, n)
		}
	}
	return out
}

// retainedSet returns the ids of non-placeholder nodes.
func (w *Workflow) retainedSet() map[string]bool {
	set := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if n.Type != NodePlaceholder {
			set[n.ID] = true
		}
	}
	return set
}

// FindNode returns the non-placeholder node with the given id, or nil.
func (w *Workflow) FindNode(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id && w.Nodes[i].Type != NodePlaceholder {
			return &w.Nodes[i]
		}
	}
	return nil
}

// EntryNode resolves the node each lead's workflow begins at: the first
// retained node with zero incoming edges, falling back to the first retained
// node when every node has an incoming edge (cycles).
func (w *Workflow) EntryNode() *Node {
	nodes := w.retained()
	if len(nodes) == 0 {
		return nil
	}
	set := w.retainedSet()

	incoming := make(map[string]int, len(nodes))
	for _, e := range w.Edges {
		if set[e.Source] && set[e.Target] {
			incoming[e.Target]++
		}
	}

	for i := range nodes {
		if incoming[nodes[i].ID] == 0 {
			return &nodes[i]
		}
	}
	return &nodes[0]
}

// Outgoing resolves the outgoing edges of a node into NextStep values.
// Edges pointing at placeholder or unknown nodes are dropped. A missing,
// malformed, or unknown-unit delay resolves to 0ms.
func (w *Workflow) Outgoing(nodeID string) []NextStep {
	set := w.retainedSet()

	var out []NextStep
	for _, e := range w.Edges {
		if e.Source != nodeID || !set[e.Target] {
			continue
		}
		ns := NextStep{
			NodeID:  e.Target,
			EdgeID:  e.ID,
			DelayMs: DelayMillis(e.Data.DelayData),
		}
		if e.Data.IsConditionalPath {
			ns.IsConditional = true
			if e.Data.IsPositive {
				ns.ConditionalType = OutcomeAccepted
			} else {
				ns.ConditionalType = OutcomeNotAccepted
			}
		}
		out = append(out, ns)
	}
	return out
}

// AcceptedTimeout returns the polling window for a set of next steps: the
// delay on the accepted branch, or 0 when no accepted branch exists.
func AcceptedTimeout(steps []NextStep) int64 {
	for _, s := range steps {
		if s.ConditionalType == OutcomeAccepted {
			return s.DelayMs
		}
	}
	return 0
}

// PickBranch selects the next step whose conditional outcome matches.
// Returns nil when no branch matches, which terminates the lead cleanly.
func PickBranch(steps []NextStep, outcome string) *NextStep {
	for i := range steps {
		if steps[i].ConditionalType == outcome {
			return &steps[i]
		}
	}
	return nil
}
