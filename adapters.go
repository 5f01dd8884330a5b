package weft

import (
	"log/slog"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/arweave"
	"github.com/aretw0/weft/pkg/adapters/backend"
	"github.com/aretw0/weft/pkg/adapters/delay"
	"github.com/aretw0/weft/pkg/adapters/telegram"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
)

// DefaultAdapters binds every catalog type to its adapter over the given
// backend client.
func DefaultAdapters(client *backend.Client, logger *slog.Logger) *registry.Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	reg := registry.NewRegistry()
	reg.RegisterTrigger(domain.TypeTelegramReceive, telegram.NewReceive(client, telegram.WithLogger(logger)))
	reg.RegisterAction(domain.TypeTelegramSend, telegram.NewSend(client, telegram.WithLogger(logger)))
	reg.RegisterAction(domain.TypeArweaveUpload, arweave.New(client, arweave.WithLogger(logger)))
	reg.RegisterAction(domain.TypeDelay, delay.New())
	return reg
}
