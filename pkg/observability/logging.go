package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/weft/pkg/domain"
)

// LoggingHooks writes one structured line per engine event.
// Status transitions log at info, adapter and task events at debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeStatus: func(ctx context.Context, e *domain.StatusEvent) {
			attrs := []any{"run", e.RunID, "node_id", e.NodeID, "type", e.NodeType, "status", e.Status}
			if e.Err != "" {
				attrs = append(attrs, "error", e.Err)
			}
			logger.InfoContext(ctx, "node_status", attrs...)
		},
		OnAdapterCall: func(ctx context.Context, e *domain.AdapterEvent) {
			logger.DebugContext(ctx, "adapter_call", "run", e.RunID, "node_id", e.NodeID, "type", e.NodeType)
		},
		OnAdapterReturn: func(ctx context.Context, e *domain.AdapterEvent) {
			logger.DebugContext(ctx, "adapter_return",
				"run", e.RunID,
				"node_id", e.NodeID,
				"type", e.NodeType,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnTaskSpawn: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "task_spawn", "run", e.RunID, "task", e.Name, "outstanding", e.Outstanding)
		},
		OnTaskDone: func(ctx context.Context, e *domain.TaskEvent) {
			logger.DebugContext(ctx, "task_done", "run", e.RunID, "task", e.Name, "outstanding", e.Outstanding, "is_error", e.IsError)
		},
	}
}
