package runtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/weft/pkg/domain"
)

// Supervisor owns every task the engine spawns without awaiting it:
// the per-source fan-out of Start and background dispatches.
type Supervisor struct {
	mu          sync.Mutex
	outstanding int
	idle        chan struct{} // closed while no task is in flight
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
}

func newSupervisor(logger *slog.Logger, hooks domain.LifecycleHooks) *Supervisor {
	idle := make(chan struct{})
	close(idle)
	return &Supervisor{logger: logger, hooks: hooks, idle: idle}
}

// Go runs fn on its own goroutine. The outcome is logged, never returned.
func (s *Supervisor) Go(ctx context.Context, runID uint64, name string, fn func(context.Context) error) {
	s.mu.Lock()
	if s.outstanding == 0 {
		s.idle = make(chan struct{})
	}
	s.outstanding++
	n := s.outstanding
	s.mu.Unlock()

	if s.hooks.OnTaskSpawn != nil {
		s.hooks.OnTaskSpawn(ctx, &domain.TaskEvent{
			EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventTaskSpawn, RunID: runID},
			Name:        name,
			Outstanding: n,
		})
	}

	go func() {
		err := fn(ctx)

		s.mu.Lock()
		s.outstanding--
		n := s.outstanding
		if n == 0 {
			close(s.idle)
		}
		s.mu.Unlock()

		switch {
		case err == nil:
			s.logger.Debug("task finished", "task", name, "run", runID)
		case errors.Is(err, context.Canceled):
			s.logger.Debug("task cancelled", "task", name, "run", runID)
		default:
			s.logger.Error("task failed", "task", name, "run", runID, "error", err)
		}

		if s.hooks.OnTaskDone != nil {
			s.hooks.OnTaskDone(ctx, &domain.TaskEvent{
				EventBase:   domain.EventBase{Timestamp: time.Now(), Type: domain.EventTaskDone, RunID: runID},
				Name:        name,
				Outstanding: n,
				IsError:     err != nil,
			})
		}
	}()
}

// Outstanding returns the number of tasks still in flight.
func (s *Supervisor) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding
}

// Wait blocks until every spawned task has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
