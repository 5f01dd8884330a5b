package ports

import (
	"context"
)

// Action is a one-shot capability adapter.
// It receives the node config and the upstream value and returns a plain result.
// Implementations must not retry internally.
type Action interface {
	Execute(ctx context.Context, config map[string]any, input any) (any, error)
}

// ActionFunc adapts an ordinary function to the Action interface.
type ActionFunc func(ctx context.Context, config map[string]any, input any) (any, error)

// Execute calls f(ctx, config, input).
func (f ActionFunc) Execute(ctx context.Context, config map[string]any, input any) (any, error) {
	return f(ctx, config, input)
}

// EmitFunc receives each new item detected by a Trigger.
// It returns once the synchronous part of propagation is done.
type EmitFunc func(ctx context.Context, item any)

// Trigger is a long-running capability adapter (a listener).
// Arm performs the startup handshake and returns a Handle that keeps emitting
// items through emit until it is stopped. A handshake failure is returned as an error.
type Trigger interface {
	Arm(ctx context.Context, config map[string]any, emit EmitFunc) (Handle, error)
}

// Handle is the long-running result of a Trigger.
type Handle interface {
	// Stop cancels the listener and awaits its cleanup.
	Stop(ctx context.Context) error
}

// Checker is implemented by handles that support a manual detection cycle.
type Checker interface {
	CheckNow(ctx context.Context) error
}

// ConfigValidator is implemented by adapters that require config fields before dispatch.
// A validation failure is a configuration error: dispatch is skipped.
type ConfigValidator interface {
	Validate(config map[string]any) error
}
