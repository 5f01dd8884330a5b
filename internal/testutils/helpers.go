package testutils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/weft/pkg/domain"
)

// FakeBackend is an in-process stand-in for the bot backend API.
// It records every call and serves whatever files the test sets.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	calls    []string
	files    []map[string]any
	failures map[string]string
	sent     []map[string]string
}

// NewFakeBackend starts the fake API and closes it when the test ends.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{failures: make(map[string]string)}

	r := chi.NewRouter()
	r.Use(fb.record)
	r.Route("/api", func(r chi.Router) {
		r.Post("/telegram/initialize", fb.ok(map[string]any{"status": map[string]any{"botInfo": map[string]any{"username": "weft_bot"}}}))
		r.Post("/telegram/start", fb.ok(map[string]any{"status": map[string]any{"active": true}}))
		r.Post("/telegram/stop", fb.ok(nil))
		r.Get("/telegram/files/recent", func(w http.ResponseWriter, req *http.Request) {
			fb.mu.Lock()
			files := append([]map[string]any(nil), fb.files...)
			fb.mu.Unlock()
			fb.ok(map[string]any{"files": files})(w, req)
		})
		r.Post("/proxy/telegram/send", func(w http.ResponseWriter, req *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
				return
			}
			fb.mu.Lock()
			fb.sent = append(fb.sent, body)
			fb.mu.Unlock()
			fb.ok(map[string]any{"messageId": 99})(w, req)
		})
		r.Get("/telegram/ardrive/files/{id}/cost", func(w http.ResponseWriter, req *http.Request) {
			fb.ok(map[string]any{"cost": "0.0001"})(w, req)
		})
		r.Post("/telegram/ardrive/files/{id}/upload", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			fb.ok(map[string]any{"data": map[string]any{"transactionId": "tx-" + id, "fileId": id}})(w, req)
		})
	})

	fb.Server = httptest.NewServer(r)
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the API root to hand to backend.New.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL + "/api"
}

// SetFiles replaces the files served by the recent files endpoint.
func (fb *FakeBackend) SetFiles(files ...map[string]any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.files = files
}

// FailOn makes the endpoint at path (relative to the API root) answer
// {"success": false, "error": msg}.
func (fb *FakeBackend) FailOn(path, msg string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failures["/api"+path] = msg
}

// Calls returns every request seen so far as "METHOD /path".
func (fb *FakeBackend) Calls() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.calls...)
}

// CallsTo counts the requests made to path (relative to the API root).
func (fb *FakeBackend) CallsTo(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	n := 0
	for _, c := range fb.calls {
		if strings.HasSuffix(c, " /api"+path) {
			n++
		}
	}
	return n
}

// Sent returns the bodies posted to the send endpoint.
func (fb *FakeBackend) Sent() []map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]map[string]string(nil), fb.sent...)
}

func (fb *FakeBackend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fb.mu.Lock()
		fb.calls = append(fb.calls, req.Method+" "+req.URL.Path)
		msg, failing := fb.failures[req.URL.Path]
		fb.mu.Unlock()
		if failing {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": msg})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (fb *FakeBackend) ok(extra map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]any{"success": true}
		for k, v := range extra {
			body[k] = v
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// File builds a file record the way the backend reports it.
func File(id, name string) map[string]any {
	return map[string]any{"id": id, "fileName": name, "type": "document"}
}

// Node builds a workflow node of the given type.
func Node(id, nodeType string, config map[string]any) domain.Node {
	return domain.Node{
		ID:   id,
		Type: domain.NodeRenderType,
		Data: domain.NodeData{Label: id, Type: nodeType, Config: config},
	}
}

// Edge builds a workflow edge between two nodes.
func Edge(source, target string) domain.Edge {
	return domain.Edge{
		ID:       "e-" + source + "-" + target,
		Source:   source,
		Target:   target,
		Type:     domain.EdgeRenderType,
		Animated: true,
	}
}
