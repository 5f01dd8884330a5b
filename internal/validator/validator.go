package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
)

// Catalog reports whether a node type is known.
type Catalog interface {
	Lookup(nodeType string) (domain.NodeData, bool)
}

// Option configures ValidateGraph.
type Option func(*options)

type options struct {
	catalog  Catalog
	adapters *registry.Registry
}

// WithCatalog reports nodes whose type the catalog does not know.
// Such nodes still run as pass-through, so the check is opt-in.
func WithCatalog(c Catalog) Option {
	return func(o *options) {
		o.catalog = c
	}
}

// WithAdapters validates each node config against the adapter bound to its type.
func WithAdapters(r *registry.Registry) Option {
	return func(o *options) {
		o.adapters = r
	}
}

// ValidateGraph checks for duplicate ids, dangling edges and nodes no trigger
// can reach, crawling the graph from its source nodes.
func ValidateGraph(g domain.Graph, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var errors []string

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			errors = append(errors, fmt.Sprintf("Node with empty id (type '%s')", n.Data.Type))
			continue
		}
		if ids[n.ID] {
			errors = append(errors, fmt.Sprintf("Duplicate node id: '%s'", n.ID))
		}
		ids[n.ID] = true

		if o.catalog != nil {
			if _, ok := o.catalog.Lookup(n.Data.Type); !ok {
				errors = append(errors, fmt.Sprintf("Unknown node type '%s' on node '%s'", n.Data.Type, n.ID))
			}
		}
		if o.adapters != nil {
			if b, ok := o.adapters.Lookup(n.Data.Type); ok {
				if v, ok := b.Validator(); ok {
					if err := v.Validate(n.Data.Config); err != nil {
						errors = append(errors, fmt.Sprintf("Invalid config on node '%s': %v", n.ID, err))
					}
				}
			}
		}
	}

	seen := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		if !ids[e.Source] {
			errors = append(errors, fmt.Sprintf("Edge '%s' has missing source '%s'", e.ID, e.Source))
		}
		if !ids[e.Target] {
			errors = append(errors, fmt.Sprintf("Edge '%s' has missing target '%s'", e.ID, e.Target))
		}
		tuple := e.Source + "\x00" + e.Target + "\x00" + handle(e.SourceHandle) + "\x00" + handle(e.TargetHandle)
		if seen[tuple] {
			errors = append(errors, fmt.Sprintf("Duplicate edge '%s' from '%s' to '%s'", e.ID, e.Source, e.Target))
		}
		seen[tuple] = true
	}

	// Crawl from the sources. Anything left over sits on a cycle with no entry.
	visited := make(map[string]bool, len(g.Nodes))
	var queue []string
	for _, n := range g.SourceNodes() {
		queue = append(queue, n.ID)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, e := range g.OutgoingEdges(current) {
			if !visited[e.Target] {
				queue = append(queue, e.Target)
			}
		}
	}
	for _, n := range g.Nodes {
		if n.ID != "" && !visited[n.ID] {
			errors = append(errors, fmt.Sprintf("Node '%s' is unreachable from any source node", n.ID))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(errors), strings.Join(errors, "\n- "))
	}

	return nil
}

func handle(h *string) string {
	if h == nil {
		return "\x01"
	}
	return *h
}
