// Package telegram provides the Telegram node adapters: a polling trigger
// for files received by the bot and an action that sends a chat message.
package telegram

import (
	"context"
	"log/slog"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/backend"
	"github.com/aretw0/weft/pkg/poller"
	"github.com/aretw0/weft/pkg/ports"
)

const bytesPerMB = 1 << 20

// Receive is the trigger behind telegram-receive nodes.
type Receive struct {
	client *backend.Client
	logger *slog.Logger
}

// Send is the action behind telegram nodes.
type Send struct {
	client *backend.Client
	logger *slog.Logger
}

// Option configures the adapters.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func apply(opts []Option) options {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewReceive creates the receive trigger.
func NewReceive(client *backend.Client, opts ...Option) *Receive {
	o := apply(opts)
	return &Receive{client: client, logger: o.logger}
}

// NewSend creates the send action.
func NewSend(client *backend.Client, opts ...Option) *Send {
	o := apply(opts)
	return &Send{client: client, logger: o.logger}
}

// Validate checks the receive config before arming.
func (r *Receive) Validate(config map[string]any) error {
	_, err := decodeReceive(config)
	return err
}

// Arm runs the initialize/start handshake and polls the recent files
// endpoint every checkInterval seconds. Only the newest file is emitted.
func (r *Receive) Arm(ctx context.Context, config map[string]any, emit ports.EmitFunc) (ports.Handle, error) {
	cfg, err := decodeReceive(config)
	if err != nil {
		return nil, err
	}
	src := &recentFiles{client: r.client, cfg: cfg, logger: r.logger}
	p := poller.New(src, cfg.Interval(), poller.WithLogger(r.logger.With("adapter", "telegram-receive")))
	if err := p.Arm(ctx, emit); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks that chatId and message are set.
func (s *Send) Validate(config map[string]any) error {
	_, err := decodeSend(config)
	return err
}

// Execute sends the configured message. The upstream value is echoed back
// as inputData.
func (s *Send) Execute(ctx context.Context, config map[string]any, input any) (any, error) {
	cfg, err := decodeSend(config)
	if err != nil {
		return nil, err
	}
	msg, err := SanitizeMessage(cfg.Message)
	if err != nil {
		return nil, err
	}
	env, err := s.client.SendMessage(ctx, cfg.ChatID, msg)
	if err != nil {
		return nil, err
	}
	s.logger.Info("message sent", "chat_id", cfg.ChatID)
	return map[string]any{
		"success":   true,
		"sentTo":    cfg.ChatID,
		"message":   msg,
		"response":  env.Map(),
		"inputData": input,
	}, nil
}

// recentFiles adapts the backend to poller.Source.
type recentFiles struct {
	client *backend.Client
	cfg    ReceiveConfig
	logger *slog.Logger
}

func (s *recentFiles) Init(ctx context.Context) error {
	_, err := s.client.Initialize(ctx)
	return err
}

func (s *recentFiles) Start(ctx context.Context) error {
	_, err := s.client.StartBot(ctx)
	return err
}

func (s *recentFiles) Shutdown(ctx context.Context) error {
	_, err := s.client.StopBot(ctx)
	return err
}

func (s *recentFiles) Latest(ctx context.Context) (poller.Item, bool, error) {
	files, err := s.client.RecentFiles(ctx)
	if err != nil {
		return poller.Item{}, false, err
	}
	// Only the newest file counts. A filtered newest file is still marked seen,
	// so an older matching file is never emitted in its place.
	for _, f := range files {
		id := backend.FileID(f)
		if id == "" {
			continue
		}
		return poller.Item{ID: id, Payload: f, Skip: !s.accepts(f)}, true, nil
	}
	return poller.Item{}, false, nil
}

// accepts applies the messageTypes and maxFileSizeInMB filters to fields the
// backend reports; a missing field never filters a file out.
func (s *recentFiles) accepts(file map[string]any) bool {
	if backend.FileID(file) == "" {
		return false
	}
	if s.cfg.MessageTypes != "" && s.cfg.MessageTypes != "all" {
		if t, ok := file["type"].(string); ok && t != s.cfg.MessageTypes {
			s.logger.Debug("skipping file", "file_id", backend.FileID(file), "type", t)
			return false
		}
	}
	if s.cfg.MaxFileSizeInMB > 0 {
		if size, ok := file["fileSize"].(float64); ok && size > float64(s.cfg.MaxFileSizeInMB*bytesPerMB) {
			s.logger.Debug("skipping file", "file_id", backend.FileID(file), "size", size)
			return false
		}
	}
	return true
}
