package ports

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
)

// SnapshotStore defines the interface for persisting graph snapshots.
// Run state is never persisted; only nodes and edges are.
type SnapshotStore interface {
	// Save persists the graph under the given key, replacing any previous snapshot.
	Save(ctx context.Context, key string, graph domain.Graph) error

	// Load retrieves the graph stored under the given key.
	// Returns domain.ErrSnapshotNotFound if the key does not exist.
	Load(ctx context.Context, key string) (domain.Graph, error)

	// Delete removes the snapshot stored under the given key.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys.
	List(ctx context.Context) ([]string, error)
}
