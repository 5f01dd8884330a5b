package dsl

import "github.com/aretw0/weft/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	edges   []domain.Edge
	builder *Builder
}

// Label sets the display label.
func (n *NodeBuilder) Label(label string) *NodeBuilder {
	n.node.Data.Label = label
	return n
}

// At places the node on the canvas.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Set overrides one config value, keeping the catalog defaults for the rest.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	if n.node.Data.Config == nil {
		n.node.Data.Config = make(map[string]any)
	}
	n.node.Data.Config[key] = value
	return n
}

// To connects this node to each target. Repeated connections are ignored.
func (n *NodeBuilder) To(targets ...string) *NodeBuilder {
	for _, t := range targets {
		n.connect(domain.ConnectParams{Source: n.node.ID, Target: t})
	}
	return n
}

// ToHandle connects a specific source handle to a specific target handle.
func (n *NodeBuilder) ToHandle(sourceHandle, target, targetHandle string) *NodeBuilder {
	n.connect(domain.ConnectParams{
		Source:       n.node.ID,
		Target:       target,
		SourceHandle: &sourceHandle,
		TargetHandle: &targetHandle,
	})
	return n
}

func (n *NodeBuilder) connect(p domain.ConnectParams) {
	for _, e := range n.edges {
		if e.Connects(p) {
			return
		}
	}
	id := "e-" + p.Source + "-" + p.Target
	if p.SourceHandle != nil {
		id += "-" + *p.SourceHandle
	}
	if p.TargetHandle != nil {
		id += "-" + *p.TargetHandle
	}
	n.edges = append(n.edges, domain.Edge{
		ID:           id,
		Source:       p.Source,
		Target:       p.Target,
		SourceHandle: p.SourceHandle,
		TargetHandle: p.TargetHandle,
		Type:         domain.EdgeRenderType,
		Animated:     true,
	})
}

// Build returns the underlying domain.Node.
func (n *NodeBuilder) Build() domain.Node {
	return n.node.Clone()
}
