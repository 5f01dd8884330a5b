package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	key := "contract-test-" + time.Now().Format("20060102150405")

	handle := "out"
	graph := domain.Graph{
		Nodes: []domain.Node{
			{
				ID:       "t",
				Type:     domain.NodeRenderType,
				Position: domain.Position{X: 10, Y: 20},
				Data: domain.NodeData{
					Label:  "Receive Telegram",
					Type:   domain.TypeTelegramReceive,
					Icon:   "messageCircle",
					Config: map[string]any{"checkInterval": "10"},
				},
			},
			{
				ID:   "n",
				Type: domain.NodeRenderType,
				Data: domain.NodeData{Label: "Send Telegram", Type: domain.TypeTelegramSend, Config: map[string]any{"chatId": "1"}},
			},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "t", Target: "n", SourceHandle: &handle, Type: domain.EdgeRenderType, Animated: true},
		},
	}

	t.Run("Save and Load", func(t *testing.T) {
		err := store.Save(ctx, key, graph)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.ElementsMatch(t, graph.Nodes, loaded.Nodes)
		assert.ElementsMatch(t, graph.Edges, loaded.Edges)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, domain.Graph{Nodes: graph.Nodes[:1]}))

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Len(t, loaded.Nodes, 1)
		assert.Empty(t, loaded.Edges)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, graph))

		err := store.Delete(ctx, key)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		k1 := key + "-1"
		k2 := key + "-2"
		_ = store.Save(ctx, k1, graph)
		_ = store.Save(ctx, k2, graph)

		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
