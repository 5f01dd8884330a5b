package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/ports"
)

// arm starts a long-running trigger. The node stays running while armed and
// its handle is kept as the node result so Stop can reach it.
func (e *Engine) arm(ctx context.Context, r *run, node domain.Node, trigger ports.Trigger, cfg map[string]any) (any, error) {
	start := time.Now()
	e.adapterCall(ctx, r, node)
	handle, err := trigger.Arm(r.ctx, cfg, func(ctx context.Context, item any) {
		e.emitted(ctx, r, node, item)
	})
	e.adapterReturn(ctx, r, node, time.Since(start), err)
	if err != nil {
		e.logger.Error("trigger failed to arm", "node", node.ID, "type", node.Data.Type, "error", err)
		e.setStatus(ctx, r, node, domain.StatusError, err)
		return nil, fmt.Errorf("arm %s: %w", node.ID, err)
	}

	prev, ok := e.state.swapResult(r.id, node.ID, handle)
	if !ok {
		// The run ended while the handshake was in flight.
		if err := handle.Stop(context.WithoutCancel(ctx)); err != nil {
			e.logger.Error("failed to stop orphaned trigger", "node", node.ID, "error", err)
		}
		return nil, context.Canceled
	}
	if prev != nil && prev != handle {
		e.logger.Debug("trigger re-armed, stopping previous handle", "node", node.ID)
		if err := prev.Stop(context.WithoutCancel(ctx)); err != nil {
			e.logger.Error("failed to stop replaced trigger", "node", node.ID, "error", err)
		}
	}
	e.logger.Info("trigger armed", "node", node.ID, "type", node.Data.Type)
	return handle, nil
}

// emitted handles one item detected by an armed trigger: the node blips to
// success, the item is propagated, and after the blip delay the node goes
// back to running if the same run is still active.
func (e *Engine) emitted(ctx context.Context, r *run, node domain.Node, item any) {
	if !e.state.accepting(r.id) {
		return
	}
	e.logger.Info("trigger emitted", "node", node.ID)
	e.setStatus(ctx, r, node, domain.StatusSuccess, nil)

	if err := e.propagate(ctx, r, node, item); err != nil {
		e.logger.Error("propagation failed", "node", node.ID, "error", err)
	}

	e.scheduleBlip(r, node)
}

// scheduleBlip (re)starts the node's single blip timer, so the revert to
// running always counts from the latest emission.
func (e *Engine) scheduleBlip(r *run, node domain.Node) {
	e.blipMu.Lock()
	defer e.blipMu.Unlock()
	if t, ok := e.blips[node.ID]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(e.blip, func() {
		e.blipMu.Lock()
		if e.blips[node.ID] == timer {
			delete(e.blips, node.ID)
		}
		e.blipMu.Unlock()

		if e.state.setStatusIf(r.id, node.ID, domain.StatusSuccess, domain.StatusRunning) && e.hooks.OnNodeStatus != nil {
			e.hooks.OnNodeStatus(r.ctx, &domain.StatusEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventNodeStatus, RunID: r.id},
				NodeID:    node.ID,
				NodeType:  node.Data.Type,
				Status:    domain.StatusRunning,
			})
		}
	})
	e.blips[node.ID] = timer
}

// cancelBlips drops every pending blip timer.
func (e *Engine) cancelBlips() {
	e.blipMu.Lock()
	defer e.blipMu.Unlock()
	for id, t := range e.blips {
		t.Stop()
		delete(e.blips, id)
	}
}
