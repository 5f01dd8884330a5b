package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/weft/pkg/domain"
)

// Store implements ports.SnapshotStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Graph
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Graph),
	}
}

// Save keeps a deep copy of the graph, so later edits by the caller never
// reach the stored snapshot.
func (s *Store) Save(ctx context.Context, key string, graph domain.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = graph.Clone()
	return nil
}

// Load returns a copy of the snapshot.
func (s *Store) Load(ctx context.Context, key string) (domain.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.data[key]
	if !ok {
		return domain.Graph{}, domain.ErrSnapshotNotFound
	}
	return g.Clone(), nil
}

// Delete removes the snapshot.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns the stored keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
