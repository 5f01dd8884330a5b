// Package delay provides the logic node that holds a value for a while
// before passing it downstream.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the config of a delay node.
type Config struct {
	// Delay is the wait in seconds. Fractions are allowed.
	Delay float64 `mapstructure:"delay"`
}

// Delay waits and passes its input through unchanged.
type Delay struct {
	unit time.Duration
}

// Option configures Delay.
type Option func(*Delay)

// WithUnit changes the unit the configured delay is measured in.
func WithUnit(unit time.Duration) Option {
	return func(d *Delay) {
		d.unit = unit
	}
}

// New creates the delay action.
func New(opts ...Option) *Delay {
	d := &Delay{unit: time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Validate rejects negative or non-numeric delays.
func (d *Delay) Validate(config map[string]any) error {
	_, err := decode(config)
	return err
}

// Execute waits for the configured delay or until ctx is done.
func (d *Delay) Execute(ctx context.Context, config map[string]any, input any) (any, error) {
	cfg, err := decode(config)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(time.Duration(cfg.Delay * float64(d.unit)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return input, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func decode(config map[string]any) (Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(config); err != nil {
		return cfg, fmt.Errorf("invalid delay config: %w", err)
	}
	if cfg.Delay < 0 {
		return cfg, fmt.Errorf("delay must not be negative, got %v", cfg.Delay)
	}
	return cfg, nil
}
