package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/testutils"
	"github.com/aretw0/weft/pkg/domain"
)

func writeGraph(t *testing.T, g domain.Graph) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, weft.WriteGraph(f, g))
	return path
}

func TestRun_OnceFromFile(t *testing.T) {
	env := build(t, testConfig(config.BackendMemory), BuildOptions{})
	path := writeGraph(t, domain.Graph{
		Nodes: []domain.Node{
			testutils.Node("first", domain.TypeDelay, map[string]any{"delay": 0.0}),
			testutils.Node("second", domain.TypeDelay, map[string]any{"delay": 0.0}),
		},
		Edges: []domain.Edge{testutils.Edge("first", "second")},
	})

	var out bytes.Buffer
	err := Run(context.Background(), env, RunOptions{GraphPath: path, Once: true, Quiet: true, Output: &out})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "workflow started")
	assert.Regexp(t, `second\s+success`, out.String())
	assert.Contains(t, out.String(), "workflow stopped")
	assert.False(t, env.Workflow.IsRunning())
}

func TestRun_SaveThenRunSnapshot(t *testing.T) {
	cfg := testConfig(config.BackendFile)
	cfg.Storage.Path = t.TempDir()
	path := writeGraph(t, domain.Graph{
		Nodes: []domain.Node{testutils.Node("only", domain.TypeDelay, map[string]any{"delay": 0.0})},
	})

	env := build(t, cfg, BuildOptions{})
	require.NoError(t, Run(context.Background(), env, RunOptions{GraphPath: path, Save: true, Once: true, Quiet: true, Output: &bytes.Buffer{}}))

	again := build(t, cfg, BuildOptions{})
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), again, RunOptions{Once: true, Quiet: true, Output: &out}))
	assert.Regexp(t, `only\s+success`, out.String())
}

func TestRun_NoGraph(t *testing.T) {
	env := build(t, testConfig(config.BackendMemory), BuildOptions{})
	err := Run(context.Background(), env, RunOptions{Once: true, Quiet: true, Output: &bytes.Buffer{}})
	assert.ErrorIs(t, err, ErrNoGraph)
}

func TestRun_InvalidGraph(t *testing.T) {
	env := build(t, testConfig(config.BackendMemory), BuildOptions{})
	path := writeGraph(t, domain.Graph{
		Nodes: []domain.Node{testutils.Node("a", domain.TypeDelay, nil)},
		Edges: []domain.Edge{testutils.Edge("a", "ghost")},
	})

	err := Run(context.Background(), env, RunOptions{GraphPath: path, Once: true, Quiet: true, Output: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid graph")
	assert.False(t, env.Workflow.IsRunning(), "an invalid graph is never started")
}

func TestRun_StopsTriggersOnCancel(t *testing.T) {
	fb := testutils.NewFakeBackend(t)
	cfg := testConfig(config.BackendMemory)
	cfg.API.BaseURL = fb.URL()
	env := build(t, cfg, BuildOptions{})
	path := writeGraph(t, domain.Graph{
		Nodes: []domain.Node{testutils.Node("t", domain.TypeTelegramReceive, map[string]any{"checkInterval": "60"})},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, env, RunOptions{GraphPath: path, Quiet: true, Output: &bytes.Buffer{}})
	}()

	require.Eventually(t, func() bool {
		return fb.CallsTo("/telegram/start") == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	// The handshake may still be in flight at cancel; the orphaned trigger
	// is stopped as soon as it completes.
	require.Eventually(t, func() bool {
		return fb.CallsTo("/telegram/stop") == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, env.Workflow.IsRunning())
}
