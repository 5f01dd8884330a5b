// Package graph implements the authoritative, mutable workflow graph together
// with the UI selection state. Every mutation of nodes and edges goes through Store.
package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/google/uuid"
)

// DuplicateOffset is added to both axes of a duplicated node's position.
const DuplicateOffset = 50

// Catalog resolves a node type to its default node data.
type Catalog interface {
	Lookup(nodeType string) (domain.NodeData, bool)
}

// Selection is the current UI selection. Empty strings mean nothing is selected.
type Selection struct {
	NodeID string `json:"selectedNode,omitempty"`
	EdgeID string `json:"selectedEdge,omitempty"`
}

// Store holds the node/edge collections and the selection state.
// Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	nodes     []domain.Node
	edges     []domain.Edge
	selection Selection

	catalog Catalog
	newID   func() string
	logger  *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithIDGenerator overrides the id generator (default: uuid.NewString).
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty graph backed by the given catalog.
func NewStore(catalog Catalog, opts ...Option) *Store {
	s := &Store{
		catalog: catalog,
		newID:   uuid.NewString,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddNode instantiates a node of the given type at pos and selects it.
// It returns false without mutating anything when the type is unknown.
func (s *Store) AddNode(nodeType string, pos domain.Position) (domain.Node, bool) {
	data, ok := s.catalog.Lookup(nodeType)
	if !ok {
		s.logger.Warn("add node skipped", "node_type", nodeType, "err", domain.ErrUnknownNodeType)
		return domain.Node{}, false
	}

	node := domain.Node{
		ID:       s.newID(),
		Type:     domain.NodeRenderType,
		Position: pos,
		Data:     data,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = append(s.nodes, node)
	s.selection.NodeID = node.ID
	return node.Clone(), true
}

// UpdateNodeData merges patch into the node's data. Config keys are merged, not replaced.
// Returns domain.ErrNodeNotFound, leaving the graph unchanged, if id is unknown.
func (s *Store) UpdateNodeData(id string, patch domain.NodeDataPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfNode(id)
	if i < 0 {
		return fmt.Errorf("update node %s: %w", id, domain.ErrNodeNotFound)
	}
	s.nodes[i].Data = patch.Apply(s.nodes[i].Data)
	s.logger.Debug("node updated", "node_id", id)
	return nil
}

// DuplicateNode clones a node with a fresh id, offset by DuplicateOffset, and selects the clone.
// It returns false if id is unknown.
func (s *Store) DuplicateNode(id string) (domain.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfNode(id)
	if i < 0 {
		return domain.Node{}, false
	}

	clone := s.nodes[i].Clone()
	clone.ID = s.newID()
	clone.Position = domain.Position{
		X: clone.Position.X + DuplicateOffset,
		Y: clone.Position.Y + DuplicateOffset,
	}
	s.nodes = append(s.nodes, clone)
	s.selection.NodeID = clone.ID
	return clone.Clone(), true
}

// DeleteNode removes the node and every edge referencing it.
// The selection is cleared if it pointed at a removed element.
func (s *Store) DeleteNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := s.nodes[:0]
	for _, n := range s.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	s.nodes = nodes

	edges := s.edges[:0]
	for _, e := range s.edges {
		if e.References(id) {
			if s.selection.EdgeID == e.ID {
				s.selection.EdgeID = ""
			}
			continue
		}
		edges = append(edges, e)
	}
	s.edges = edges

	if s.selection.NodeID == id {
		s.selection.NodeID = ""
	}
}

// AddEdge connects two nodes. It is a no-op returning false when an edge with the
// identical (source, target, sourceHandle, targetHandle) tuple already exists.
func (s *Store) AddEdge(params domain.ConnectParams) (domain.Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.edges {
		if e.Connects(params) {
			return domain.Edge{}, false
		}
	}

	edge := domain.Edge{
		ID:           s.newID(),
		Source:       params.Source,
		Target:       params.Target,
		SourceHandle: params.SourceHandle,
		TargetHandle: params.TargetHandle,
		Type:         domain.EdgeRenderType,
		Animated:     true,
	}.Clone()
	s.edges = append(s.edges, edge)
	return edge.Clone(), true
}

// DeleteEdge removes an edge and clears the edge selection if it was selected.
func (s *Store) DeleteEdge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := s.edges[:0]
	for _, e := range s.edges {
		if e.ID != id {
			edges = append(edges, e)
		}
	}
	s.edges = edges

	if s.selection.EdgeID == id {
		s.selection.EdgeID = ""
	}
}

// SetSelectedNode selects a node by id ("" clears the selection).
func (s *Store) SetSelectedNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.NodeID = id
}

// SetSelectedEdge selects an edge by id ("" clears the selection).
func (s *Store) SetSelectedEdge(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.EdgeID = id
}

// Selection returns the current selection.
func (s *Store) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// SelectedNode returns the selected node, if any.
func (s *Store) SelectedNode() (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selection.NodeID == "" {
		return domain.Node{}, false
	}
	i := s.indexOfNode(s.selection.NodeID)
	if i < 0 {
		return domain.Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// SetNodes replaces the node set wholesale.
func (s *Store) SetNodes(nodes []domain.Node) {
	g := domain.Graph{Nodes: nodes}.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = g.Nodes
}

// SetEdges replaces the edge set wholesale.
func (s *Store) SetEdges(edges []domain.Edge) {
	g := domain.Graph{Edges: edges}.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = g.Edges
}

// Replace swaps nodes and edges wholesale, as when loading a snapshot.
// The selection is cleared.
func (s *Store) Replace(g domain.Graph) {
	c := g.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = c.Nodes
	s.edges = c.Edges
	s.selection = Selection{}
}

// Graph returns a deep copy of the current graph.
func (s *Store) Graph() domain.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Graph{Nodes: s.nodes, Edges: s.edges}.Clone()
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (domain.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOfNode(id)
	if i < 0 {
		return domain.Node{}, false
	}
	return s.nodes[i].Clone(), true
}

func (s *Store) indexOfNode(id string) int {
	for i, n := range s.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
