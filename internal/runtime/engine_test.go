package runtime_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weft/internal/runtime"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/registry"
)

type staticGraph domain.Graph

func (g staticGraph) Graph() domain.Graph { return domain.Graph(g).Clone() }

func node(id, typ string, cfg map[string]any) domain.Node {
	return domain.Node{
		ID:   id,
		Type: domain.NodeRenderType,
		Data: domain.NodeData{Label: id, Type: typ, Config: cfg},
	}
}

func edge(source, target string) domain.Edge {
	return domain.Edge{ID: source + "->" + target, Source: source, Target: target, Type: domain.EdgeRenderType}
}

// recorder is an action that remembers every input it received.
type recorder struct {
	mu     sync.Mutex
	inputs []any
	result func(input any) (any, error)
}

func (r *recorder) Execute(_ context.Context, _ map[string]any, input any) (any, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, input)
	r.mu.Unlock()
	if r.result != nil {
		return r.result(input)
	}
	return input, nil
}

func (r *recorder) Inputs() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.inputs...)
}

type fakeHandle struct {
	stopErr error
	stops   atomic.Int32
	checks  atomic.Int32
}

func (h *fakeHandle) Stop(context.Context) error {
	h.stops.Add(1)
	return h.stopErr
}

func (h *fakeHandle) CheckNow(context.Context) error {
	h.checks.Add(1)
	return nil
}

func (h *fakeHandle) String() string { return "fake-handle" }

// fakeTrigger arms instantly and lets the test emit items by hand.
type fakeTrigger struct {
	mu     sync.Mutex
	emit   ports.EmitFunc
	handle *fakeHandle
	armErr error
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{handle: &fakeHandle{}}
}

func (f *fakeTrigger) Arm(_ context.Context, _ map[string]any, emit ports.EmitFunc) (ports.Handle, error) {
	if f.armErr != nil {
		return nil, f.armErr
	}
	f.mu.Lock()
	f.emit = emit
	f.mu.Unlock()
	return f.handle, nil
}

func (f *fakeTrigger) Emit(ctx context.Context, item any) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	emit(ctx, item)
}

func waitArmed(t *testing.T, e *runtime.Engine, nodeID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := e.Snapshot()
		_, ok := snap.NodeResults[nodeID]
		return ok && snap.Status(nodeID) == domain.StatusRunning
	}, time.Second, 5*time.Millisecond)
}

func waitIdle(t *testing.T, e *runtime.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Wait(ctx))
}

func TestEngine_SourceFanOutIsIsolated(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{
			node("ok", "good", nil),
			node("bad", "broken", nil),
			node("next", "good", nil),
		},
		Edges: []domain.Edge{edge("ok", "next")},
	}
	reg := registry.NewRegistry()
	good := &recorder{result: func(any) (any, error) { return "done", nil }}
	reg.RegisterAction("good", good)
	reg.RegisterAction("broken", ports.ActionFunc(func(context.Context, map[string]any, any) (any, error) {
		return nil, errors.New("boom")
	}))

	e := runtime.NewEngine(staticGraph(g), reg)
	require.NoError(t, e.Start(context.Background()))
	waitIdle(t, e)

	snap := e.Snapshot()
	assert.True(t, snap.IsRunning)
	assert.Equal(t, domain.StatusSuccess, snap.Status("ok"))
	assert.Equal(t, domain.StatusSuccess, snap.Status("next"))
	assert.Equal(t, domain.StatusError, snap.Status("bad"))
	assert.Equal(t, "boom", snap.NodeErrors["bad"])
	assert.Equal(t, "done", snap.NodeResults["next"])

	// Sources get no input; "next" gets the result of "ok".
	assert.ElementsMatch(t, []any{nil, "done"}, good.Inputs())
}

func TestEngine_StartTwice(t *testing.T) {
	e := runtime.NewEngine(staticGraph(domain.Graph{}), nil)
	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), domain.ErrAlreadyRunning)
	require.NoError(t, e.Stop(context.Background()))
	assert.NoError(t, e.Start(context.Background()))
}

func TestEngine_PassThroughUnknownType(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{
			node("p", "mystery", nil),
			node("a", "rec", nil),
			node("b", "rec", nil),
		},
		Edges: []domain.Edge{edge("p", "a"), edge("p", "b")},
	}
	rec := &recorder{}
	reg := registry.NewRegistry()
	reg.RegisterAction("rec", rec)
	e := runtime.NewEngine(staticGraph(g), reg)

	input := map[string]any{"id": "7"}
	out, err := e.Execute(context.Background(), "p", input)
	require.NoError(t, err)
	assert.Equal(t, input, out)

	snap := e.Snapshot()
	assert.Equal(t, domain.StatusSuccess, snap.Status("p"))
	assert.Equal(t, domain.StatusSuccess, snap.Status("a"))
	assert.Equal(t, domain.StatusSuccess, snap.Status("b"))
	assert.Equal(t, []any{input, input}, rec.Inputs())
}

func TestEngine_ExecuteUnknownNode(t *testing.T) {
	e := runtime.NewEngine(staticGraph(domain.Graph{}), nil)
	_, err := e.Execute(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.Empty(t, e.Snapshot().NodeExecutionState)
}

type strictAction struct {
	calls atomic.Int32
}

func (a *strictAction) Validate(cfg map[string]any) error {
	if s, _ := cfg["chatId"].(string); s == "" {
		return fmt.Errorf("chatId: %w", domain.ErrMissingConfig)
	}
	return nil
}

func (a *strictAction) Execute(context.Context, map[string]any, any) (any, error) {
	a.calls.Add(1)
	return "sent", nil
}

func TestEngine_MissingConfigSkipsDispatch(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{
		node("n", "strict", map[string]any{"chatId": ""}),
		node("m", "strict", map[string]any{"chatId": "123"}),
	}}
	action := &strictAction{}
	reg := registry.NewRegistry()
	reg.RegisterAction("strict", action)
	e := runtime.NewEngine(staticGraph(g), reg)

	_, err := e.Execute(context.Background(), "n", nil)
	assert.ErrorIs(t, err, domain.ErrMissingConfig)
	assert.Equal(t, domain.StatusError, e.Snapshot().Status("n"))
	assert.Contains(t, e.Snapshot().NodeErrors["n"], "chatId")
	assert.Equal(t, int32(0), action.calls.Load())

	out, err := e.Execute(context.Background(), "m", nil)
	require.NoError(t, err)
	assert.Equal(t, "sent", out)
	assert.Equal(t, int32(1), action.calls.Load())
}

func TestEngine_StopWhenIdle(t *testing.T) {
	e := runtime.NewEngine(staticGraph(domain.Graph{}), nil)
	before := e.Snapshot()
	require.NoError(t, e.Stop(context.Background()))
	assert.Equal(t, before, e.Snapshot())
	assert.False(t, e.IsRunning())
}

func TestEngine_NotifyBeforeBackground(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{
			node("t", "trigger", nil),
			node("n", domain.TypeTelegramSend, map[string]any{"message": "hi"}),
			node("u", domain.TypeArweaveUpload, nil),
		},
		Edges: []domain.Edge{edge("t", "u"), edge("t", "n")},
	}
	trig := newFakeTrigger()
	notify := &recorder{}

	var e *runtime.Engine
	release := make(chan struct{})
	uploadStarted := make(chan domain.Status, 1)
	upload := ports.ActionFunc(func(ctx context.Context, _ map[string]any, input any) (any, error) {
		uploadStarted <- e.Snapshot().Status("n")
		<-release
		return map[string]any{"uploaded": input}, nil
	})

	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	reg.RegisterAction(domain.TypeTelegramSend, notify)
	reg.RegisterAction(domain.TypeArweaveUpload, upload)
	e = runtime.NewEngine(staticGraph(g), reg, runtime.WithBlipDelay(time.Hour))

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	waitArmed(t, e, "t")
	waitIdle(t, e)
	assert.Equal(t, "fake-handle", e.Snapshot().NodeResults["t"])

	// Emit returns while the upload is still blocked.
	item := map[string]any{"id": "42"}
	trig.Emit(ctx, item)

	select {
	case st := <-uploadStarted:
		assert.Equal(t, domain.StatusSuccess, st, "notify must finish before background starts")
	case <-time.After(time.Second):
		t.Fatal("background target never started")
	}

	snap := e.Snapshot()
	assert.Equal(t, domain.StatusSuccess, snap.Status("t"))
	assert.Equal(t, domain.StatusSuccess, snap.Status("n"))
	assert.Equal(t, domain.StatusRunning, snap.Status("u"))
	assert.Equal(t, 1, e.Outstanding())

	require.Len(t, notify.Inputs(), 1)
	in := notify.Inputs()[0].(map[string]any)
	assert.Equal(t, "42", in["id"])
	assert.Equal(t, "before", in["messageContext"])
	assert.Equal(t, "parallel before", in["originalMessage"])

	close(release)
	waitIdle(t, e)
	assert.Equal(t, domain.StatusSuccess, e.Snapshot().Status("u"))
	assert.Equal(t, map[string]any{"uploaded": item}, e.Snapshot().NodeResults["u"])
}

func TestEngine_TriggerBlipRevertsToRunning(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{node("t", "trigger", nil), node("x", "rec", nil)},
		Edges: []domain.Edge{edge("t", "x")},
	}
	trig := newFakeTrigger()
	rec := &recorder{}
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	reg.RegisterAction("rec", rec)
	e := runtime.NewEngine(staticGraph(g), reg, runtime.WithBlipDelay(30*time.Millisecond))

	require.NoError(t, e.Start(context.Background()))
	waitArmed(t, e, "t")

	trig.Emit(context.Background(), "file-1")
	assert.Equal(t, domain.StatusSuccess, e.Snapshot().Status("t"))
	assert.Equal(t, []any{"file-1"}, rec.Inputs())

	assert.Eventually(t, func() bool {
		return e.Snapshot().Status("t") == domain.StatusRunning
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "fake-handle", e.Snapshot().NodeResults["t"])
}

func TestEngine_BlipIsDroppedAfterStop(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("t", "trigger", nil)}}
	trig := newFakeTrigger()
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	e := runtime.NewEngine(staticGraph(g), reg, runtime.WithBlipDelay(20*time.Millisecond))

	require.NoError(t, e.Start(context.Background()))
	waitArmed(t, e, "t")
	trig.Emit(context.Background(), "x")
	require.NoError(t, e.Stop(context.Background()))

	time.Sleep(60 * time.Millisecond)
	snap := e.Snapshot()
	assert.False(t, snap.IsRunning)
	assert.Empty(t, snap.NodeExecutionState)
	assert.Equal(t, int32(1), trig.handle.stops.Load())
}

func TestEngine_StopIsolatesFailures(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{
		node("t1", "failing", nil),
		node("t2", "ok", nil),
		node("a", "slow", nil),
	}}
	failing := newFakeTrigger()
	failing.handle.stopErr = errors.New("stop refused")
	ok := newFakeTrigger()

	release := make(chan struct{})
	reg := registry.NewRegistry()
	reg.RegisterTrigger("failing", failing)
	reg.RegisterTrigger("ok", ok)
	reg.RegisterAction("slow", ports.ActionFunc(func(ctx context.Context, _ map[string]any, _ any) (any, error) {
		<-release
		return "late", nil
	}))
	e := runtime.NewEngine(staticGraph(g), reg)

	require.NoError(t, e.Start(context.Background()))
	waitArmed(t, e, "t1")
	waitArmed(t, e, "t2")

	require.NoError(t, e.Stop(context.Background()))
	assert.Equal(t, int32(1), failing.handle.stops.Load())
	assert.Equal(t, int32(1), ok.handle.stops.Load())

	snap := e.Snapshot()
	assert.False(t, snap.IsRunning)
	assert.Empty(t, snap.NodeExecutionState)
	assert.Empty(t, snap.NodeResults)

	// A straggler from the stopped run must not write into the fresh state.
	close(release)
	waitIdle(t, e)
	assert.Empty(t, e.Snapshot().NodeExecutionState)
}

func TestEngine_TriggerArmFailure(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("t", "trigger", nil)}}
	trig := newFakeTrigger()
	trig.armErr = errors.New("initialize: bot offline")
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	e := runtime.NewEngine(staticGraph(g), reg)

	_, err := e.Execute(context.Background(), "t", nil)
	require.Error(t, err)
	snap := e.Snapshot()
	assert.Equal(t, domain.StatusError, snap.Status("t"))
	assert.Equal(t, "initialize: bot offline", snap.NodeErrors["t"])
}

func TestEngine_CheckNow(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("t", "trigger", nil), node("a", "act", nil)}}
	trig := newFakeTrigger()
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	reg.RegisterAction("act", &recorder{})
	e := runtime.NewEngine(staticGraph(g), reg)
	ctx := context.Background()

	assert.ErrorIs(t, e.CheckNow(ctx, "ghost"), domain.ErrNodeNotFound)
	assert.ErrorIs(t, e.CheckNow(ctx, "t"), domain.ErrTriggerNotArmed)

	require.NoError(t, e.Start(ctx))
	waitArmed(t, e, "t")
	waitIdle(t, e)

	require.NoError(t, e.CheckNow(ctx, "t"))
	assert.Equal(t, int32(1), trig.handle.checks.Load())
	assert.ErrorIs(t, e.CheckNow(ctx, "a"), domain.ErrTriggerNotArmed)
}

// multiTrigger hands out a fresh handle on every Arm. With a gate set, Arm
// blocks until the gate is closed.
type multiTrigger struct {
	mu      sync.Mutex
	handles []*fakeHandle
	gate    chan struct{}
}

func (m *multiTrigger) Arm(ctx context.Context, _ map[string]any, _ ports.EmitFunc) (ports.Handle, error) {
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	h := &fakeHandle{}
	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()
	return h, nil
}

func (m *multiTrigger) handle(t *testing.T, i int) *fakeHandle {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Greater(t, len(m.handles), i, "trigger armed %d times", len(m.handles))
	return m.handles[i]
}

func TestEngine_StartStopsTriggerArmedWhileIdle(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("t", "trigger", nil)}}
	trig := &multiTrigger{}
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	e := runtime.NewEngine(staticGraph(g), reg)
	ctx := context.Background()

	_, err := e.Execute(ctx, "t", nil)
	require.NoError(t, err)
	idle := trig.handle(t, 0)

	require.NoError(t, e.Start(ctx))
	assert.Equal(t, int32(1), idle.stops.Load(), "the idle handle is stopped when the run begins")

	waitArmed(t, e, "t")
	running := trig.handle(t, 1)
	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, int32(1), idle.stops.Load())
	assert.Equal(t, int32(1), running.stops.Load())
}

func TestEngine_RearmStopsPreviousHandle(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{node("a", "mystery", nil), node("t", "trigger", nil)},
		Edges: []domain.Edge{edge("a", "t")},
	}
	trig := &multiTrigger{}
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	e := runtime.NewEngine(staticGraph(g), reg)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	waitArmed(t, e, "t")
	waitIdle(t, e)
	first := trig.handle(t, 0)

	_, err := e.Execute(ctx, "a", nil)
	require.NoError(t, err)
	second := trig.handle(t, 1)
	assert.Equal(t, int32(1), first.stops.Load(), "the replaced handle is stopped")
	assert.Equal(t, int32(0), second.stops.Load())

	require.NoError(t, e.Stop(ctx))
	assert.Equal(t, int32(1), first.stops.Load())
	assert.Equal(t, int32(1), second.stops.Load())
}

func TestEngine_CheckNowDuringHandshake(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("t", "trigger", nil)}}
	trig := &multiTrigger{gate: make(chan struct{})}
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	e := runtime.NewEngine(staticGraph(g), reg)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	defer e.Stop(ctx)
	require.Eventually(t, func() bool {
		return e.Snapshot().Status("t") == domain.StatusRunning
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, e.CheckNow(ctx, "t"), domain.ErrTriggerNotArmed)

	close(trig.gate)
	waitArmed(t, e, "t")
	require.NoError(t, e.CheckNow(ctx, "t"))
	assert.Equal(t, int32(1), trig.handle(t, 0).checks.Load())
}

func TestEngine_BlipRestartsOnEachEmission(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("t", "trigger", nil)}}
	trig := newFakeTrigger()
	reg := registry.NewRegistry()
	reg.RegisterTrigger("trigger", trig)
	e := runtime.NewEngine(staticGraph(g), reg, runtime.WithBlipDelay(400*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	defer e.Stop(ctx)
	waitArmed(t, e, "t")

	trig.Emit(ctx, "file-1")
	time.Sleep(250 * time.Millisecond)
	trig.Emit(ctx, "file-2")
	time.Sleep(250 * time.Millisecond)

	// The first emission's window is over, the second one's is not.
	assert.Equal(t, domain.StatusSuccess, e.Snapshot().Status("t"))
	assert.Eventually(t, func() bool {
		return e.Snapshot().Status("t") == domain.StatusRunning
	}, time.Second, 5*time.Millisecond)
}

func TestEngine_SequentialTargetsRunAfterNotify(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{
			node("s", "src", nil),
			node("plain", "log", nil),
			node("n", domain.TypeTelegramSend, nil),
		},
		Edges: []domain.Edge{edge("s", "plain"), edge("s", "n")},
	}
	var mu sync.Mutex
	var order []string
	track := func(name string) ports.Action {
		return ports.ActionFunc(func(context.Context, map[string]any, any) (any, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		})
	}
	reg := registry.NewRegistry()
	reg.RegisterAction("src", track("s"))
	reg.RegisterAction("log", track("plain"))
	reg.RegisterAction(domain.TypeTelegramSend, track("n"))
	e := runtime.NewEngine(staticGraph(g), reg)

	_, err := e.Execute(context.Background(), "s", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s", "n", "plain"}, order)
}

func TestEngine_CustomClassifier(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{node("s", "src", nil), node("bg", "slow", nil)},
		Edges: []domain.Edge{edge("s", "bg")},
	}
	release := make(chan struct{})
	reg := registry.NewRegistry()
	reg.RegisterAction("src", &recorder{})
	reg.RegisterAction("slow", ports.ActionFunc(func(context.Context, map[string]any, any) (any, error) {
		<-release
		return nil, nil
	}))
	e := runtime.NewEngine(staticGraph(g), reg, runtime.WithClassifier(func(n domain.Node) runtime.Class {
		if n.Data.Type == "slow" {
			return runtime.ClassBackground
		}
		return runtime.ClassSequential
	}))

	_, err := e.Execute(context.Background(), "s", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Outstanding())
	close(release)
	waitIdle(t, e)
	assert.Equal(t, domain.StatusSuccess, e.Snapshot().Status("bg"))
}

func TestEngine_LifecycleHooks(t *testing.T) {
	g := domain.Graph{
		Nodes: []domain.Node{node("a", "act", nil), node("b", "act", nil)},
		Edges: []domain.Edge{edge("a", "b")},
	}
	reg := registry.NewRegistry()
	reg.RegisterAction("act", &recorder{})

	var mu sync.Mutex
	var statuses []string
	var calls, returns int
	hooks := domain.LifecycleHooks{
		OnNodeStatus: func(_ context.Context, ev *domain.StatusEvent) {
			mu.Lock()
			defer mu.Unlock()
			statuses = append(statuses, ev.NodeID+":"+string(ev.Status))
		},
		OnAdapterCall: func(context.Context, *domain.AdapterEvent) {
			mu.Lock()
			defer mu.Unlock()
			calls++
		},
		OnAdapterReturn: func(context.Context, *domain.AdapterEvent) {
			mu.Lock()
			defer mu.Unlock()
			returns++
		},
	}
	e := runtime.NewEngine(staticGraph(g), reg, runtime.WithLifecycleHooks(hooks))

	_, err := e.Execute(context.Background(), "a", "in")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:running", "a:success", "b:running", "b:success"}, statuses)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, returns)
}

func TestEngine_Watch(t *testing.T) {
	g := domain.Graph{Nodes: []domain.Node{node("a", "act", nil)}}
	reg := registry.NewRegistry()
	reg.RegisterAction("act", &recorder{})
	e := runtime.NewEngine(staticGraph(g), reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := e.Watch(ctx)

	require.NoError(t, e.Start(ctx))
	require.Eventually(t, func() bool {
		select {
		case snap := <-updates:
			return snap.IsRunning && snap.Status("a") == domain.StatusSuccess
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, time.Second, 5*time.Millisecond)
}
