// Package poller implements the long-running handle behind polling triggers.
//
// A Poller owns the last-seen identifier of one trigger node. Each detection
// cycle asks its Source for the newest item and emits it only when its
// identifier differs from the remembered one. The read/compare/update
// sequence is a critical section, so a timer tick and a manual CheckNow can
// never emit the same item twice.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/ports"
)

// DefaultInterval is used when a non-positive interval is configured.
const DefaultInterval = 10 * time.Second

// ErrStopped is returned by CheckNow once the poller has been stopped.
var ErrStopped = errors.New("poller stopped")

// Item is a detected item. ID is compared against the last seen identifier.
type Item struct {
	ID      string
	Payload any
	// Skip marks an item that is remembered as seen but never emitted.
	Skip bool
}

// Source is the external capability polled by a Poller.
type Source interface {
	// Init is the first phase of the startup handshake.
	Init(ctx context.Context) error
	// Start is the second phase of the startup handshake.
	Start(ctx context.Context) error
	// Latest returns the newest item. ok is false when the source is empty.
	Latest(ctx context.Context) (item Item, ok bool, err error)
	// Shutdown is the teardown handshake issued by Stop.
	Shutdown(ctx context.Context) error
}

// Poller implements ports.Handle and ports.Checker.
type Poller struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex // guards lastSeen and seen; serialises detection cycles
	lastSeen string
	seen     bool

	lifeMu  sync.Mutex
	emit    ports.EmitFunc
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

var (
	_ ports.Handle  = (*Poller)(nil)
	_ ports.Checker = (*Poller)(nil)
)

// Option configures a Poller.
type Option func(*Poller)

// WithLogger configures the poller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithLastSeen seeds the remembered identifier, so the current newest item is not emitted.
func WithLastSeen(id string) Option {
	return func(p *Poller) {
		p.lastSeen = id
		p.seen = true
	}
}

// New creates a poller over source, ticking every interval.
func New(source Source, interval time.Duration, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		source:   source,
		interval: interval,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Arm runs the init/start handshake and, on success, starts the polling loop.
// A handshake failure aborts startup; the loop is not started. When only the
// start phase fails, the shutdown handshake is still sent.
func (p *Poller) Arm(ctx context.Context, emit ports.EmitFunc) error {
	if err := p.source.Init(ctx); err != nil {
		return fmt.Errorf("init handshake: %w", err)
	}
	if err := p.source.Start(ctx); err != nil {
		// Init went through, so the backend holds a session to release.
		if serr := p.source.Shutdown(context.WithoutCancel(ctx)); serr != nil {
			p.logger.Warn("shutdown after failed start", "err", serr)
		}
		return fmt.Errorf("start handshake: %w", err)
	}

	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.emit = emit
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(p.ctx, p.done)

	p.logger.Debug("polling started", "interval", p.interval)
	return nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.check(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Transient: keep polling on the next tick.
				p.logger.Warn("poll failed", "err", err)
			}
		}
	}
}

// CheckNow runs one detection cycle immediately.
func (p *Poller) CheckNow(ctx context.Context) error {
	p.lifeMu.Lock()
	stopped := p.stopped
	p.lifeMu.Unlock()
	if stopped {
		return ErrStopped
	}
	return p.check(ctx)
}

// check performs one detection cycle and emits at most one item.
func (p *Poller) check(ctx context.Context) error {
	item, ok, err := p.detect(ctx)
	if err != nil || !ok {
		return err
	}

	p.lifeMu.Lock()
	emit := p.emit
	p.lifeMu.Unlock()

	p.logger.Info("new item detected", "item_id", item.ID)
	if emit != nil {
		emit(ctx, item.Payload)
	}
	return nil
}

// detect is the read/compare/update critical section.
func (p *Poller) detect(ctx context.Context) (Item, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok, err := p.source.Latest(ctx)
	if err != nil {
		return Item{}, false, err
	}
	if !ok {
		return Item{}, false, nil
	}
	if p.seen && item.ID == p.lastSeen {
		return Item{}, false, nil
	}
	p.lastSeen = item.ID
	p.seen = true
	if item.Skip {
		p.logger.Debug("newest item filtered out", "item_id", item.ID)
		return Item{}, false, nil
	}
	return item, true, nil
}

// LastSeen returns the remembered identifier.
func (p *Poller) LastSeen() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen, p.seen
}

// Stop cancels the timer, waits for an in-flight tick to return and issues the
// shutdown handshake. It is safe to call more than once.
func (p *Poller) Stop(ctx context.Context) error {
	p.lifeMu.Lock()
	if p.stopped {
		p.lifeMu.Unlock()
		return nil
	}
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.emit = nil
	p.lifeMu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := p.source.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown handshake: %w", err)
	}
	p.logger.Debug("polling stopped")
	return nil
}

// String describes the handle in projections and logs.
func (p *Poller) String() string {
	return fmt.Sprintf("poller(every %s)", p.interval)
}
