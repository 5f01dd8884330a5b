package runtime

import (
	"context"

	"github.com/aretw0/weft/pkg/domain"
)

// Watch streams snapshots of the execution state until ctx is done.
// Bursts of changes are coalesced; a slow reader only sees the latest state.
func (e *Engine) Watch(ctx context.Context) <-chan domain.Snapshot {
	signal := make(chan struct{}, 1)
	out := make(chan domain.Snapshot)

	e.watchMu.Lock()
	e.watchers[signal] = struct{}{}
	e.watchMu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			e.watchMu.Lock()
			delete(e.watchers, signal)
			e.watchMu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
			select {
			case out <- e.Snapshot():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (e *Engine) broadcast() {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	for ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
