package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	latest    *poller.Item
	latestErr error
	initErr   error
	startErr  error
	calls     int
	shutdowns int
}

func (f *fakeSource) Init(ctx context.Context) error  { return f.initErr }
func (f *fakeSource) Start(ctx context.Context) error { return f.startErr }

func (f *fakeSource) Latest(ctx context.Context) (poller.Item, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.latestErr != nil {
		return poller.Item{}, false, f.latestErr
	}
	if f.latest == nil {
		return poller.Item{}, false, nil
	}
	return *f.latest, true, nil
}

func (f *fakeSource) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

func (f *fakeSource) set(item *poller.Item, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = item
	f.latestErr = err
}

type recorder struct {
	mu    sync.Mutex
	items []any
}

func (r *recorder) emit(ctx context.Context, item any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func TestPoller_SameLatestIDIsNotReEmitted(t *testing.T) {
	src := &fakeSource{}
	src.set(&poller.Item{ID: "42", Payload: map[string]any{"id": "42"}}, nil)
	rec := &recorder{}

	p := poller.New(src, time.Hour)
	require.NoError(t, p.Arm(context.Background(), rec.emit))
	defer p.Stop(context.Background())

	require.NoError(t, p.CheckNow(context.Background()))
	require.NoError(t, p.CheckNow(context.Background()))

	assert.Equal(t, 1, rec.len(), "second poll with the same latest id must not emit")
	last, ok := p.LastSeen()
	assert.True(t, ok)
	assert.Equal(t, "42", last)

	src.set(&poller.Item{ID: "43", Payload: "next"}, nil)
	require.NoError(t, p.CheckNow(context.Background()))
	assert.Equal(t, 2, rec.len())
}

func TestPoller_WithLastSeenSkipsCurrentItem(t *testing.T) {
	src := &fakeSource{}
	src.set(&poller.Item{ID: "7"}, nil)
	rec := &recorder{}

	p := poller.New(src, time.Hour, poller.WithLastSeen("7"))
	require.NoError(t, p.Arm(context.Background(), rec.emit))
	defer p.Stop(context.Background())

	require.NoError(t, p.CheckNow(context.Background()))
	assert.Equal(t, 0, rec.len())
}

func TestPoller_ConcurrentChecksEmitOnce(t *testing.T) {
	src := &fakeSource{}
	src.set(&poller.Item{ID: "1"}, nil)
	var emitted atomic.Int32

	p := poller.New(src, time.Hour)
	require.NoError(t, p.Arm(context.Background(), func(ctx context.Context, item any) {
		emitted.Add(1)
	}))
	defer p.Stop(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.CheckNow(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), emitted.Load())
}

func TestPoller_HandshakeFailure(t *testing.T) {
	initErr := errors.New("bot token rejected")
	src := &fakeSource{initErr: initErr}
	p := poller.New(src, time.Hour)
	err := p.Arm(context.Background(), func(context.Context, any) {})
	assert.ErrorIs(t, err, initErr)
	assert.Equal(t, 0, src.shutdowns, "nothing to release when init fails")

	startErr := errors.New("already running elsewhere")
	src = &fakeSource{startErr: startErr}
	p = poller.New(src, time.Hour)
	err = p.Arm(context.Background(), func(context.Context, any) {})
	assert.ErrorIs(t, err, startErr)
	assert.Equal(t, 1, src.shutdowns, "a failed start still releases the initialised session")
	assert.Equal(t, 0, src.calls)
}

func TestPoller_TickErrorsAreTolerated(t *testing.T) {
	src := &fakeSource{}
	src.set(nil, errors.New("502 bad gateway"))
	rec := &recorder{}

	p := poller.New(src, 10*time.Millisecond)
	require.NoError(t, p.Arm(context.Background(), rec.emit))
	defer p.Stop(context.Background())

	time.Sleep(35 * time.Millisecond)
	src.set(&poller.Item{ID: "9"}, nil)

	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPoller_StopHaltsTicksAndShutsDown(t *testing.T) {
	src := &fakeSource{}
	rec := &recorder{}

	p := poller.New(src, 5*time.Millisecond)
	require.NoError(t, p.Arm(context.Background(), rec.emit))

	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()), "stop must be idempotent")

	src.set(&poller.Item{ID: "late"}, nil)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, rec.len(), "no emission after stop")
	assert.Equal(t, 1, src.shutdowns, "shutdown handshake issued exactly once")
	assert.ErrorIs(t, p.CheckNow(context.Background()), poller.ErrStopped)
}

func TestPoller_SkippedItemIsRememberedNotEmitted(t *testing.T) {
	src := &fakeSource{}
	src.set(&poller.Item{ID: "7", Skip: true}, nil)
	rec := &recorder{}

	p := poller.New(src, time.Hour)
	require.NoError(t, p.Arm(context.Background(), rec.emit))
	defer p.Stop(context.Background())

	require.NoError(t, p.CheckNow(context.Background()))
	assert.Equal(t, 0, rec.len())
	id, seen := p.LastSeen()
	assert.True(t, seen)
	assert.Equal(t, "7", id)

	src.set(&poller.Item{ID: "8"}, nil)
	require.NoError(t, p.CheckNow(context.Background()))
	assert.Equal(t, 1, rec.len())
}
