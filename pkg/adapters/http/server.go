// Package http exposes a Workflow over a JSON API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
)

// Workflow is the subset of weft.Workflow served over HTTP.
type Workflow interface {
	Graph() *graph.Store
	Catalog() *registry.Catalog
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	CheckNow(ctx context.Context, nodeID string) error
	Snapshot() domain.Snapshot
	Watch(ctx context.Context) <-chan domain.Snapshot
	Save(ctx context.Context) error
	Load(ctx context.Context) (bool, error)
	Validate() error
}

var _ Workflow = (*weft.Workflow)(nil)

// Server serves the workflow routes.
type Server struct {
	workflow Workflow
	metrics  http.Handler
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts h at GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// AddNodeRequest is the body of POST /nodes.
type AddNodeRequest struct {
	Type     string          `json:"type"`
	Position domain.Position `json:"position"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates the HTTP handler for the workflow.
func NewHandler(wf Workflow, opts ...Option) http.Handler {
	s := &Server{workflow: wf, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Get("/graph", s.GetGraph)
	r.Put("/graph", s.PutGraph)
	r.Get("/catalog", s.GetCatalog)

	r.Route("/nodes", func(r chi.Router) {
		r.Post("/", s.AddNode)
		r.Patch("/{id}", s.UpdateNode)
		r.Delete("/{id}", s.DeleteNode)
		r.Post("/{id}/duplicate", s.DuplicateNode)
		r.Post("/{id}/check", s.CheckNode)
	})
	r.Route("/edges", func(r chi.Router) {
		r.Post("/", s.AddEdge)
		r.Delete("/{id}", s.DeleteEdge)
	})
	r.Get("/selection", s.GetSelection)
	r.Put("/selection", s.PutSelection)

	r.Route("/workflow", func(r chi.Router) {
		r.Post("/start", s.StartWorkflow)
		r.Post("/stop", s.StopWorkflow)
		r.Post("/save", s.SaveWorkflow)
		r.Post("/load", s.LoadWorkflow)
		r.Get("/validate", s.ValidateWorkflow)
	})
	r.Get("/state", s.GetState)
	r.Get("/events", s.SubscribeEvents)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "weft-http",
		"version": strings.TrimSpace(weft.Version),
	})
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.workflow.Graph().Graph())
}

// PutGraph handles PUT /graph, replacing nodes and edges wholesale.
func (s *Server) PutGraph(w http.ResponseWriter, r *http.Request) {
	var g domain.Graph
	if !s.decode(w, r, &g) {
		return
	}
	s.workflow.Graph().Replace(g)
	s.writeJSON(w, http.StatusOK, s.workflow.Graph().Graph())
}

// GetCatalog handles GET /catalog.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.workflow.Catalog().Categories())
}

// AddNode handles POST /nodes.
func (s *Server) AddNode(w http.ResponseWriter, r *http.Request) {
	var body AddNodeRequest
	if !s.decode(w, r, &body) {
		return
	}
	node, ok := s.workflow.Graph().AddNode(body.Type, body.Position)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", domain.ErrUnknownNodeType, body.Type))
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

// UpdateNode handles PATCH /nodes/{id}.
func (s *Server) UpdateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch domain.NodeDataPatch
	if !s.decode(w, r, &patch) {
		return
	}
	if err := s.workflow.Graph().UpdateNodeData(id, patch); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	node, _ := s.workflow.Graph().Node(id)
	s.writeJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{id}. Connected edges go with it.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.workflow.Graph().Node(id); !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound))
		return
	}
	s.workflow.Graph().DeleteNode(id)
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateNode handles POST /nodes/{id}/duplicate.
func (s *Server) DuplicateNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := s.workflow.Graph().DuplicateNode(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound))
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

// CheckNode handles POST /nodes/{id}/check, polling an armed trigger now.
func (s *Server) CheckNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.workflow.CheckNow(r.Context(), id); err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			status = http.StatusConflict
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// AddEdge handles POST /edges. An identical connection answers 409.
func (s *Server) AddEdge(w http.ResponseWriter, r *http.Request) {
	var params domain.ConnectParams
	if !s.decode(w, r, &params) {
		return
	}
	edge, ok := s.workflow.Graph().AddEdge(params)
	if !ok {
		s.writeError(w, http.StatusConflict, errors.New("edge already exists"))
		return
	}
	s.writeJSON(w, http.StatusCreated, edge)
}

// DeleteEdge handles DELETE /edges/{id}.
func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	s.workflow.Graph().DeleteEdge(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// GetSelection handles GET /selection.
func (s *Server) GetSelection(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.workflow.Graph().Selection())
}

// PutSelection handles PUT /selection.
func (s *Server) PutSelection(w http.ResponseWriter, r *http.Request) {
	var sel graph.Selection
	if !s.decode(w, r, &sel) {
		return
	}
	s.workflow.Graph().SetSelectedNode(sel.NodeID)
	s.workflow.Graph().SetSelectedEdge(sel.EdgeID)
	s.writeJSON(w, http.StatusOK, s.workflow.Graph().Selection())
}

// StartWorkflow handles POST /workflow/start.
func (s *Server) StartWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Start(r.Context()); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.workflow.Snapshot())
}

// StopWorkflow handles POST /workflow/stop.
func (s *Server) StopWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Stop(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.workflow.Snapshot())
}

// SaveWorkflow handles POST /workflow/save.
func (s *Server) SaveWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Save(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadWorkflow handles POST /workflow/load.
func (s *Server) LoadWorkflow(w http.ResponseWriter, r *http.Request) {
	loaded, err := s.workflow.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"loaded": loaded,
		"graph":  s.workflow.Graph().Graph(),
	})
}

// ValidateWorkflow handles GET /workflow/validate.
func (s *Server) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.workflow.Validate(); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.workflow.Snapshot())
}

// SubscribeEvents handles GET /events (SSE). The first event carries the full
// state; every later one only what changed.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	updates := s.workflow.Watch(ctx)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	prev := s.workflow.Snapshot()
	if !s.sendDiff(w, domain.Diff(nil, prev)) {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("SSE client disconnected")
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			diff := domain.Diff(&prev, snap)
			prev = snap
			if diff == nil {
				continue
			}
			if !s.sendDiff(w, diff) {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) sendDiff(w http.ResponseWriter, diff *domain.SnapshotDiff) bool {
	payload, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("SSE diff encode failed", "error", err)
		return false
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err == nil
}

// Serve runs handler on addr until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "address", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrEdgeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRunning), errors.Is(err, domain.ErrTriggerNotArmed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownNodeType), errors.Is(err, domain.ErrMissingConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
