package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeStatus    EventType = "node_status"
	EventAdapterCall   EventType = "adapter_call"
	EventAdapterReturn EventType = "adapter_return"
	EventTaskSpawn     EventType = "task_spawn"
	EventTaskDone      EventType = "task_done"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     uint64    `json:"run_id"`
}

// StatusEvent represents a node status transition.
type StatusEvent struct {
	EventBase
	NodeID   string `json:"node_id"`
	NodeType string `json:"node_type"`
	Status   Status `json:"status"`
	Err      string `json:"err,omitempty"`
}

// AdapterEvent represents a capability adapter invocation.
type AdapterEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	NodeType string        `json:"node_type"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// TaskEvent represents a supervised background task.
type TaskEvent struct {
	EventBase
	Name        string `json:"name"`
	Outstanding int    `json:"outstanding"`
	IsError     bool   `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks are invoked synchronously from the goroutine that caused the event.
type LifecycleHooks struct {
	OnNodeStatus    func(context.Context, *StatusEvent)
	OnAdapterCall   func(context.Context, *AdapterEvent)
	OnAdapterReturn func(context.Context, *AdapterEvent)
	OnTaskSpawn     func(context.Context, *TaskEvent)
	OnTaskDone      func(context.Context, *TaskEvent)
}

// Merge combines two hook sets; both callbacks run when both are set.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeStatus:    chain(h.OnNodeStatus, other.OnNodeStatus),
		OnAdapterCall:   chain(h.OnAdapterCall, other.OnAdapterCall),
		OnAdapterReturn: chain(h.OnAdapterReturn, other.OnAdapterReturn),
		OnTaskSpawn:     chain(h.OnTaskSpawn, other.OnTaskSpawn),
		OnTaskDone:      chain(h.OnTaskDone, other.OnTaskDone),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
