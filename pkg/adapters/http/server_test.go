package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft"
	weftHTTP "github.com/aretw0/weft/pkg/adapters/http"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/observability"
)

func newServer(t *testing.T, wf *weft.Workflow, opts ...weftHTTP.Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(weftHTTP.NewHandler(wf, opts...))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = wf.Stop(context.Background()) })
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func TestServer_GraphEditing(t *testing.T) {
	wf := weft.New()
	srv := newServer(t, wf)

	resp, body := do(t, http.MethodPost, srv.URL+"/nodes", weftHTTP.AddNodeRequest{Type: domain.TypeTelegramReceive})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var trigger domain.Node
	require.NoError(t, json.Unmarshal(body, &trigger))
	assert.Equal(t, domain.NodeRenderType, trigger.Type)
	assert.Equal(t, "10", trigger.Data.Config["checkInterval"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/nodes", weftHTTP.AddNodeRequest{Type: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/nodes", weftHTTP.AddNodeRequest{Type: domain.TypeTelegramSend, Position: domain.Position{X: 300}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var send domain.Node
	require.NoError(t, json.Unmarshal(body, &send))

	resp, body = do(t, http.MethodPatch, srv.URL+"/nodes/"+send.ID, domain.NodeDataPatch{Config: map[string]any{"chatId": "42"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var patched domain.Node
	require.NoError(t, json.Unmarshal(body, &patched))
	assert.Equal(t, "42", patched.Data.Config["chatId"])
	assert.Contains(t, patched.Data.Config, "message", "config is merged, not replaced")

	resp, _ = do(t, http.MethodPatch, srv.URL+"/nodes/ghost", domain.NodeDataPatch{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn := domain.ConnectParams{Source: trigger.ID, Target: send.ID}
	resp, _ = do(t, http.MethodPost, srv.URL+"/edges", conn)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/edges", conn)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/nodes/"+send.ID+"/duplicate", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/nodes/"+trigger.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/nodes/"+trigger.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/graph", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var g domain.Graph
	require.NoError(t, json.Unmarshal(body, &g))
	assert.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Edges, "edges of a deleted node are removed")
}

func TestServer_Catalog(t *testing.T) {
	srv := newServer(t, weft.New())

	resp, body := do(t, http.MethodGet, srv.URL+"/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cats []map[string]any
	require.NoError(t, json.Unmarshal(body, &cats))
	require.Len(t, cats, 3)
	assert.Equal(t, "Triggers", cats[0]["category"])
}

func TestServer_StartStop(t *testing.T) {
	wf := weft.New()
	wf.Graph().Replace(domain.Graph{Nodes: []domain.Node{{ID: "a", Data: domain.NodeData{Type: "custom"}}}})
	srv := newServer(t, wf)

	resp, _ := do(t, http.MethodPost, srv.URL+"/workflow/start", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/workflow/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.Eventually(t, func() bool {
		return wf.Snapshot().Status("a") == domain.StatusSuccess
	}, time.Second, 5*time.Millisecond)

	resp, body := do(t, http.MethodGet, srv.URL+"/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.True(t, snap.IsRunning)
	assert.Equal(t, domain.StatusSuccess, snap.NodeExecutionState["a"])

	resp, body = do(t, http.MethodPost, srv.URL+"/workflow/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stopped domain.Snapshot
	require.NoError(t, json.Unmarshal(body, &stopped))
	assert.False(t, stopped.IsRunning)
	assert.Empty(t, stopped.NodeExecutionState)
	assert.Empty(t, stopped.NodeResults)
}

func TestServer_CheckUnknownNode(t *testing.T) {
	srv := newServer(t, weft.New())
	resp, _ := do(t, http.MethodPost, srv.URL+"/nodes/ghost/check", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CheckUnarmedTrigger(t *testing.T) {
	wf := weft.New()
	wf.Graph().Replace(domain.Graph{Nodes: []domain.Node{{ID: "t", Data: domain.NodeData{Type: domain.TypeTelegramReceive}}}})
	srv := newServer(t, wf)

	resp, body := do(t, http.MethodPost, srv.URL+"/nodes/t/check", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "trigger not armed")
}

func TestServer_SaveLoad(t *testing.T) {
	wf := weft.New()
	srv := newServer(t, wf)
	_, ok := wf.Graph().AddNode(domain.TypeDelay, domain.Position{})
	require.True(t, ok)

	resp, _ := do(t, http.MethodPost, srv.URL+"/workflow/save", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	wf.Graph().Replace(domain.Graph{})

	resp, body := do(t, http.MethodPost, srv.URL+"/workflow/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Loaded bool         `json:"loaded"`
		Graph  domain.Graph `json:"graph"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Loaded)
	assert.Len(t, out.Graph.Nodes, 1)
}

func TestServer_Validate(t *testing.T) {
	wf := weft.New()
	wf.Graph().Replace(domain.Graph{
		Nodes: []domain.Node{{ID: "a", Data: domain.NodeData{Type: domain.TypeDelay}}},
		Edges: []domain.Edge{{ID: "e", Source: "a", Target: "ghost"}},
	})
	srv := newServer(t, wf)

	resp, body := do(t, http.MethodGet, srv.URL+"/workflow/validate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "missing target")
}

func TestServer_Metrics(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	wf := weft.New(weft.WithLifecycleHooks(m.Hooks()))
	wf.Graph().Replace(domain.Graph{Nodes: []domain.Node{{ID: "a", Data: domain.NodeData{Type: "custom"}}}})
	srv := newServer(t, wf, weftHTTP.WithMetrics(m.Handler()))

	_, err = wf.Execute(context.Background(), "a", nil)
	require.NoError(t, err)

	resp, body := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `weft_node_status_total{node_type="custom",status="success"} 1`)
}

func TestServer_Events(t *testing.T) {
	wf := weft.New()
	wf.Graph().Replace(domain.Graph{Nodes: []domain.Node{{ID: "a", Data: domain.NodeData{Type: "custom"}}}})
	srv := newServer(t, wf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "data: ") || strings.HasPrefix(line, "event: ") {
				lines <- line
			}
		}
	}()

	next := func() string {
		select {
		case l, ok := <-lines:
			require.True(t, ok, "stream closed")
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	assert.Equal(t, "event: ping", next())
	assert.Equal(t, "data: connected", next())
	assert.Contains(t, next(), `"isRunning":false`)

	require.NoError(t, wf.Start(context.Background()))

	for {
		if l := next(); strings.Contains(l, `"a":"success"`) {
			break
		}
	}
}
