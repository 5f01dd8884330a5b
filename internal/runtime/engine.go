package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/registry"
)

// DefaultBlipDelay is how long a trigger shows success after an emission
// before it goes back to running.
const DefaultBlipDelay = 2 * time.Second

// GraphSource supplies the graph a run executes.
type GraphSource interface {
	Graph() domain.Graph
}

// Engine executes workflow graphs.
//
// It owns the run state: the global running flag plus per-node status,
// result and error message. Start fans out from the source nodes, Stop tears
// every armed trigger down and resets the state.
type Engine struct {
	source   GraphSource
	adapters *registry.Registry
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	classify Classifier
	blip     time.Duration

	lifecycle sync.Mutex // serialises Start and Stop
	mu        sync.RWMutex
	current   *run

	state *runState
	tasks *Supervisor

	watchMu  sync.Mutex
	watchers map[chan struct{}]struct{}

	blipMu sync.Mutex
	blips  map[string]*time.Timer
}

// run is one Start..Stop cycle.
type run struct {
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
	graph  domain.Graph
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithClassifier overrides how downstream targets are dispatched.
func WithClassifier(c Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classify = c
		}
	}
}

// WithBlipDelay overrides DefaultBlipDelay.
func WithBlipDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.blip = d
	}
}

// NewEngine creates an engine that executes graphs from source with the
// adapters bound in reg.
func NewEngine(source GraphSource, reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		adapters: reg,
		logger:   logging.NewNop(),
		classify: DefaultClassifier,
		blip:     DefaultBlipDelay,
		watchers: make(map[chan struct{}]struct{}),
		blips:    make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.adapters == nil {
		e.adapters = registry.NewRegistry()
	}
	e.state = newRunState(e.broadcast)
	e.tasks = newSupervisor(e.logger, e.hooks)
	return e
}

// Start begins a run: state is cleared, the running flag raised, and every
// source node is executed on its own task with no input.
// It returns domain.ErrAlreadyRunning while a run is active.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.state.isRunning() {
		return domain.ErrAlreadyRunning
	}

	g := e.source.Graph()
	gen, dropped := e.state.begin()
	// Triggers armed by Execute while idle are not part of the run.
	e.stopHandles(context.WithoutCancel(ctx), dropped)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{id: gen, ctx: runCtx, cancel: cancel, graph: g}

	e.mu.Lock()
	e.current = r
	e.mu.Unlock()

	sources := g.SourceNodes()
	e.logger.Info("workflow started", "run", r.id, "nodes", len(g.Nodes), "sources", len(sources))

	if err := ctx.Err(); err != nil {
		cancel()
		e.mu.Lock()
		e.current = nil
		e.mu.Unlock()
		e.state.setRunning(gen, false)
		return fmt.Errorf("start workflow: %w", err)
	}

	for _, src := range sources {
		e.tasks.Go(r.ctx, r.id, "source:"+src.ID, func(ctx context.Context) error {
			_, err := e.execute(ctx, r, src.ID, nil)
			return err
		})
	}
	return nil
}

// Stop ends the current run. Every armed trigger is stopped on its own; a
// failing stop is logged and does not keep the others from stopping. The
// state is then reset. Stop on an idle engine with nothing armed is a no-op.
func (e *Engine) Stop(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if !e.state.isRunning() && !e.state.hasHandles() {
		return nil
	}

	e.stopHandles(ctx, e.state.close())
	e.cancelBlips()

	e.mu.Lock()
	r := e.current
	e.current = nil
	e.mu.Unlock()
	if r != nil {
		r.cancel()
	}

	e.state.reset()
	e.logger.Info("workflow stopped")
	return nil
}

// stopHandles stops every handle on its own. Failures are logged only.
func (e *Engine) stopHandles(ctx context.Context, handles map[string]ports.Handle) {
	for id, h := range handles {
		if err := h.Stop(ctx); err != nil {
			e.logger.Error("failed to stop node", "node", id, "error", err)
			continue
		}
		e.logger.Debug("node stopped", "node", id)
	}
}

// Execute runs a single node with input and propagates its result downstream.
// While a run is active the node resolves against the run's graph; otherwise
// against the current graph.
func (e *Engine) Execute(ctx context.Context, nodeID string, input any) (any, error) {
	return e.execute(ctx, e.activeRun(), nodeID, input)
}

// CheckNow asks an armed trigger to run one detection cycle immediately.
func (e *Engine) CheckNow(ctx context.Context, nodeID string) error {
	res, ok := e.state.result(nodeID)
	if !ok {
		if _, known := e.activeRun().graph.Node(nodeID); !known {
			return fmt.Errorf("check %s: %w", nodeID, domain.ErrNodeNotFound)
		}
		return fmt.Errorf("check %s: %w", nodeID, domain.ErrTriggerNotArmed)
	}
	c, ok := res.(ports.Checker)
	if !ok {
		return fmt.Errorf("check %s: %w", nodeID, domain.ErrTriggerNotArmed)
	}
	return c.CheckNow(ctx)
}

// Snapshot returns a copy of the execution state.
func (e *Engine) Snapshot() domain.Snapshot {
	return e.state.snapshot()
}

// IsRunning reports the global run flag.
func (e *Engine) IsRunning() bool {
	return e.state.isRunning()
}

// Wait blocks until every background task has finished or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	return e.tasks.Wait(ctx)
}

// Outstanding returns the number of background tasks in flight.
func (e *Engine) Outstanding() int {
	return e.tasks.Outstanding()
}

// activeRun returns the current run, or an ad-hoc one bound to the idle
// generation when nothing is running.
func (e *Engine) activeRun() *run {
	e.mu.RLock()
	r := e.current
	e.mu.RUnlock()
	if r != nil {
		return r
	}
	return &run{
		id:     e.state.generation(),
		ctx:    context.Background(),
		cancel: func() {},
		graph:  e.source.Graph(),
	}
}

func (e *Engine) execute(ctx context.Context, r *run, nodeID string, input any) (any, error) {
	node, ok := r.graph.Node(nodeID)
	if !ok {
		e.logger.Error("node not found", "node", nodeID)
		return nil, fmt.Errorf("execute %s: %w", nodeID, domain.ErrNodeNotFound)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.setStatus(ctx, r, node, domain.StatusRunning, nil)

	binding, ok := e.adapters.Lookup(node.Data.Type)
	if !ok {
		e.logger.Debug("no adapter, passing input through", "node", node.ID, "type", node.Data.Type)
		e.state.setResult(r.id, node.ID, input)
		e.setStatus(ctx, r, node, domain.StatusSuccess, nil)
		return input, e.propagate(ctx, r, node, input)
	}

	cfg := domain.CloneConfig(node.Data.Config)
	if v, ok := binding.Validator(); ok {
		if err := v.Validate(cfg); err != nil {
			err = fmt.Errorf("node %s: %w", node.ID, err)
			e.setStatus(ctx, r, node, domain.StatusError, err)
			return nil, err
		}
	}

	if binding.Kind == registry.KindTrigger {
		return e.arm(ctx, r, node, binding.Trigger, cfg)
	}

	start := time.Now()
	e.adapterCall(ctx, r, node)
	result, err := binding.Action.Execute(ctx, cfg, input)
	e.adapterReturn(ctx, r, node, time.Since(start), err)
	if err != nil {
		e.logger.Error("node failed", "node", node.ID, "type", node.Data.Type, "error", err)
		e.setStatus(ctx, r, node, domain.StatusError, err)
		return nil, fmt.Errorf("execute %s: %w", node.ID, err)
	}

	e.state.setResult(r.id, node.ID, result)
	e.setStatus(ctx, r, node, domain.StatusSuccess, nil)
	return result, e.propagate(ctx, r, node, result)
}

func (e *Engine) setStatus(ctx context.Context, r *run, node domain.Node, st domain.Status, cause error) {
	var msg string
	if cause != nil {
		msg = cause.Error()
	}
	if !e.state.setStatus(r.id, node.ID, st, msg) {
		return
	}
	if e.hooks.OnNodeStatus != nil {
		e.hooks.OnNodeStatus(ctx, &domain.StatusEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeStatus, RunID: r.id},
			NodeID:    node.ID,
			NodeType:  node.Data.Type,
			Status:    st,
			Err:       msg,
		})
	}
}

func (e *Engine) adapterCall(ctx context.Context, r *run, node domain.Node) {
	if e.hooks.OnAdapterCall == nil {
		return
	}
	e.hooks.OnAdapterCall(ctx, &domain.AdapterEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventAdapterCall, RunID: r.id},
		NodeID:    node.ID,
		NodeType:  node.Data.Type,
	})
}

func (e *Engine) adapterReturn(ctx context.Context, r *run, node domain.Node, d time.Duration, err error) {
	if e.hooks.OnAdapterReturn == nil {
		return
	}
	e.hooks.OnAdapterReturn(ctx, &domain.AdapterEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventAdapterReturn, RunID: r.id},
		NodeID:    node.ID,
		NodeType:  node.Data.Type,
		Duration:  d,
		IsError:   err != nil && !errors.Is(err, context.Canceled),
	})
}
