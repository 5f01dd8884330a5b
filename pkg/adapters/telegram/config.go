package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/weft/pkg/domain"
)

// ReceiveConfig is the config of a telegram-receive node.
// Numeric fields accept numbers or numeric strings.
type ReceiveConfig struct {
	CheckInterval   int    `mapstructure:"checkInterval"`
	MessageTypes    string `mapstructure:"messageTypes"`
	MaxFileSizeInMB int    `mapstructure:"maxFileSizeInMB"`
}

// Interval returns the polling interval.
func (c ReceiveConfig) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// SendConfig is the config of a telegram (send) node.
type SendConfig struct {
	ChatID  string `mapstructure:"chatId"`
	Message string `mapstructure:"message"`
}

func decode(config map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func decodeReceive(config map[string]any) (ReceiveConfig, error) {
	cfg := ReceiveConfig{CheckInterval: 10, MessageTypes: "all", MaxFileSizeInMB: 50}
	// Empty strings mean "use the default", as the catalog seeds them.
	clean := make(map[string]any, len(config))
	for k, v := range config {
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		clean[k] = v
	}
	if err := decode(clean, &cfg); err != nil {
		return cfg, err
	}
	if cfg.CheckInterval <= 0 {
		return cfg, fmt.Errorf("checkInterval must be positive, got %d", cfg.CheckInterval)
	}
	return cfg, nil
}

func decodeSend(config map[string]any) (SendConfig, error) {
	var cfg SendConfig
	if err := decode(config, &cfg); err != nil {
		return cfg, err
	}
	switch {
	case strings.TrimSpace(cfg.ChatID) == "":
		return cfg, fmt.Errorf("no chat ID provided: %w", domain.ErrMissingConfig)
	case strings.TrimSpace(cfg.Message) == "":
		return cfg, fmt.Errorf("no message content provided: %w", domain.ErrMissingConfig)
	}
	return cfg, nil
}
