package weft

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/internal/validator"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/registry"
)

// Version is the library version, overridden at build time with -ldflags.
var Version = "0.1.0-dev"

// SnapshotKey is the fixed key the workflow is saved under.
const SnapshotKey = "workflow"

// DefaultLockTTL bounds how long a save may hold the snapshot lock.
const DefaultLockTTL = 10 * time.Second

// Workflow is the high-level entry point for the library.
// It ties the editable graph, the execution engine and snapshot persistence
// together.
type Workflow struct {
	graph    *graph.Store
	catalog  *registry.Catalog
	adapters *registry.Registry
	engine   *runtime.Engine

	store   ports.SnapshotStore
	locker  ports.Locker
	lockTTL time.Duration

	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	graphOpts   []graph.Option
	runtimeOpts []runtime.Option
}

// Option defines a functional option for configuring the Workflow.
type Option func(*Workflow)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(w *Workflow) {
		w.hooks = w.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// WithStore sets where Save and Load keep the snapshot (default: in memory).
func WithStore(store ports.SnapshotStore) Option {
	return func(w *Workflow) {
		w.store = store
	}
}

// WithLocker guards Save with a lock on SnapshotKey, for stores shared by
// several processes.
func WithLocker(locker ports.Locker, ttl time.Duration) Option {
	return func(w *Workflow) {
		w.locker = locker
		if ttl > 0 {
			w.lockTTL = ttl
		}
	}
}

// WithAdapters sets the capability adapters bound to node types.
// Without it every node runs as pass-through.
func WithAdapters(reg *registry.Registry) Option {
	return func(w *Workflow) {
		w.adapters = reg
	}
}

// WithCatalog replaces the built-in node catalog.
func WithCatalog(c *registry.Catalog) Option {
	return func(w *Workflow) {
		w.catalog = c
	}
}

// WithIDGenerator overrides how new node and edge ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(w *Workflow) {
		w.graphOpts = append(w.graphOpts, graph.WithIDGenerator(fn))
	}
}

// WithBlipDelay sets how long a trigger shows success after an emission.
func WithBlipDelay(d time.Duration) Option {
	return func(w *Workflow) {
		w.runtimeOpts = append(w.runtimeOpts, runtime.WithBlipDelay(d))
	}
}

// WithClassifier overrides how downstream targets are dispatched.
func WithClassifier(c runtime.Classifier) Option {
	return func(w *Workflow) {
		w.runtimeOpts = append(w.runtimeOpts, runtime.WithClassifier(c))
	}
}

// New creates a Workflow with an empty graph.
func New(opts ...Option) *Workflow {
	w := &Workflow{
		lockTTL: DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = logging.NewNop()
	}
	if w.catalog == nil {
		w.catalog = registry.DefaultCatalog()
	}
	if w.adapters == nil {
		w.adapters = registry.NewRegistry()
	}
	if w.store == nil {
		w.store = memory.NewStore()
	}

	w.graph = graph.NewStore(w.catalog, append([]graph.Option{graph.WithLogger(w.logger)}, w.graphOpts...)...)

	runtimeOpts := []runtime.Option{
		runtime.WithLogger(w.logger),
		runtime.WithLifecycleHooks(w.hooks),
	}
	runtimeOpts = append(runtimeOpts, w.runtimeOpts...)
	w.engine = runtime.NewEngine(w.graph, w.adapters, runtimeOpts...)

	return w
}

// Graph returns the editable graph.
func (w *Workflow) Graph() *graph.Store {
	return w.graph
}

// Catalog returns the node catalog used to instantiate nodes.
func (w *Workflow) Catalog() *registry.Catalog {
	return w.catalog
}

// Adapters returns the adapter registry.
func (w *Workflow) Adapters() *registry.Registry {
	return w.adapters
}

// Start begins executing the graph from its source nodes.
func (w *Workflow) Start(ctx context.Context) error {
	return w.engine.Start(ctx)
}

// Stop tears down every armed trigger and resets the execution state.
func (w *Workflow) Stop(ctx context.Context) error {
	return w.engine.Stop(ctx)
}

// Execute runs one node with input and propagates its result.
func (w *Workflow) Execute(ctx context.Context, nodeID string, input any) (any, error) {
	return w.engine.Execute(ctx, nodeID, input)
}

// CheckNow asks an armed trigger to poll immediately.
func (w *Workflow) CheckNow(ctx context.Context, nodeID string) error {
	return w.engine.CheckNow(ctx, nodeID)
}

// Snapshot returns a copy of the execution state.
func (w *Workflow) Snapshot() domain.Snapshot {
	return w.engine.Snapshot()
}

// IsRunning reports whether a run is active.
func (w *Workflow) IsRunning() bool {
	return w.engine.IsRunning()
}

// Watch streams execution state snapshots until ctx is done.
func (w *Workflow) Watch(ctx context.Context) <-chan domain.Snapshot {
	return w.engine.Watch(ctx)
}

// Wait blocks until every background task has finished or ctx is done.
func (w *Workflow) Wait(ctx context.Context) error {
	return w.engine.Wait(ctx)
}

// Validate checks the current graph: structure, known types and adapter configs.
func (w *Workflow) Validate() error {
	return validator.ValidateGraph(w.graph.Graph(),
		validator.WithCatalog(w.catalog),
		validator.WithAdapters(w.adapters),
	)
}

// Save persists nodes and edges under SnapshotKey. Execution state is not saved.
func (w *Workflow) Save(ctx context.Context) error {
	if w.locker != nil {
		unlock, err := w.locker.Lock(ctx, SnapshotKey, w.lockTTL)
		if err != nil {
			return fmt.Errorf("save workflow: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release snapshot lock", "error", err)
			}
		}()
	}

	g := w.graph.Graph()
	if err := w.store.Save(ctx, SnapshotKey, g); err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	w.logger.Info("workflow saved", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return nil
}

// Load replaces nodes and edges with the saved snapshot. A missing snapshot
// leaves the graph untouched and reports loaded=false.
func (w *Workflow) Load(ctx context.Context) (loaded bool, err error) {
	g, err := w.store.Load(ctx, SnapshotKey)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		w.logger.Debug("no saved workflow")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load workflow: %w", err)
	}
	w.graph.Replace(g)
	w.logger.Info("workflow loaded", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return true, nil
}
