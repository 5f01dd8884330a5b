// Package arweave provides the action that stores a received file on
// Arweave through the backend's ArDrive integration.
package arweave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/backend"
)

// ErrNoFile is returned when the upstream value does not describe a file.
var ErrNoFile = errors.New("no valid file data provided to upload")

// Config is the config of an arweave-upload node.
type Config struct {
	Tags      string `mapstructure:"tags"`
	Permanent bool   `mapstructure:"permanent"`
}

// Upload is the action behind arweave-upload nodes.
type Upload struct {
	client *backend.Client
	logger *slog.Logger
}

// Option configures Upload.
type Option func(*Upload)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Upload) {
		u.logger = logger
	}
}

// New creates the upload action.
func New(client *backend.Client, opts ...Option) *Upload {
	u := &Upload{client: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Validate decodes the node config.
func (u *Upload) Validate(config map[string]any) error {
	_, err := decodeConfig(config)
	return err
}

// Execute asks for the upload cost, then uploads the file whose id is carried
// by input. The result is the upload data plus the original file record.
func (u *Upload) Execute(ctx context.Context, config map[string]any, input any) (any, error) {
	if _, err := decodeConfig(config); err != nil {
		return nil, err
	}
	file, ok := input.(map[string]any)
	if !ok || backend.FileID(file) == "" {
		return nil, fmt.Errorf("%w: received %v", ErrNoFile, input)
	}
	id := backend.FileID(file)

	cost, err := u.client.UploadCost(ctx, id)
	if err != nil {
		return nil, err
	}
	u.logger.Info("upload cost", "file_id", id, "cost", cost.Fields["cost"])

	env, err := u.client.UploadFile(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any)
	if data, ok := env.Fields["data"].(map[string]any); ok {
		for k, v := range data {
			out[k] = v
		}
	}
	out["originalFile"] = file
	u.logger.Info("file uploaded", "file_id", id, "transaction_id", out["transactionId"])
	return out, nil
}

func decodeConfig(config map[string]any) (Config, error) {
	cfg := Config{Permanent: true}
	clean := make(map[string]any, len(config))
	for k, v := range config {
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		clean[k] = v
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(clean); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
