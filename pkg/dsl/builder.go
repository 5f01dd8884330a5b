package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
)

// Builder manages the graph construction.
type Builder struct {
	catalog *registry.Catalog
	order   []string
	nodes   map[string]*NodeBuilder
}

// Option configures the Builder.
type Option func(*Builder)

// WithCatalog replaces the catalog nodes are instantiated from.
func WithCatalog(c *registry.Catalog) Option {
	return func(b *Builder) {
		b.catalog = c
	}
}

// New creates a new graph builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		catalog: registry.DefaultCatalog(),
		nodes:   make(map[string]*NodeBuilder),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add creates a node of the given type.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id, nodeType string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	data := domain.NodeData{Label: id, Type: nodeType}
	if d, ok := b.catalog.Lookup(nodeType); ok {
		data = d
	}
	nb := &NodeBuilder{
		node: domain.Node{
			ID:   id,
			Type: domain.NodeRenderType,
			Data: data,
		},
		builder: b,
	}
	b.order = append(b.order, id)
	b.nodes[id] = nb
	return nb
}

// Build returns the graph with nodes in the order they were added.
// Edges pointing at nodes that were never added are reported together.
func (b *Builder) Build() (domain.Graph, error) {
	g := domain.Graph{
		Nodes: make([]domain.Node, 0, len(b.order)),
		Edges: []domain.Edge{},
	}
	var errs []error
	for _, id := range b.order {
		nb := b.nodes[id]
		g.Nodes = append(g.Nodes, nb.node.Clone())
		for _, e := range nb.edges {
			if _, ok := b.nodes[e.Target]; !ok {
				errs = append(errs, fmt.Errorf("edge %s: unknown target %q", e.ID, e.Target))
				continue
			}
			g.Edges = append(g.Edges, e.Clone())
		}
	}
	if len(errs) > 0 {
		return domain.Graph{}, fmt.Errorf("failed to build graph: %w", errors.Join(errs...))
	}
	return g, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() domain.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
