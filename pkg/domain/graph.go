package domain

// Graph is the serializable snapshot of a workflow: `{ "nodes": [...], "edges": [...] }`.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Clone returns a deep copy of the graph.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = n.Clone()
	}
	for i, e := range g.Edges {
		out.Edges[i] = e.Clone()
	}
	return out
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// SourceNodes returns the nodes with zero incoming edges, in node order.
// A node with at least one incoming edge is never a source, even when unreachable.
func (g Graph) SourceNodes() []Node {
	targeted := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		targeted[e.Target] = true
	}
	var sources []Node
	for _, n := range g.Nodes {
		if !targeted[n.ID] {
			sources = append(sources, n)
		}
	}
	return sources
}

// OutgoingEdges returns the edges whose source is the given node, in edge order.
func (g Graph) OutgoingEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}
