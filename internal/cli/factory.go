// Package cli wires configuration, storage and adapters into a Workflow for
// the weft commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/adapters/backend"
	"github.com/aretw0/weft/pkg/adapters/file"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/adapters/postgres"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/persistence/middleware"
	"github.com/aretw0/weft/pkg/ports"
)

// lockPrefix namespaces the save locks taken on the redis backend.
const lockPrefix = "weft:"

// BuildOptions tunes Build.
type BuildOptions struct {
	// Debug forces debug logging and logs every engine event.
	Debug bool
	// LogOutput receives log lines. Defaults to Stderr.
	LogOutput io.Writer
}

// Environment is a ready-to-use Workflow plus the resources it holds.
type Environment struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Workflow *weft.Workflow

	closers []func() error
}

// Close releases the storage connections in reverse order of creation.
func (e *Environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Build creates the Workflow described by cfg.
func Build(ctx context.Context, cfg config.Config, opts BuildOptions) (*Environment, error) {
	logger, err := createLogger(cfg.Log, opts)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}

	client, err := backend.New(cfg.API.BaseURL,
		backend.WithTimeout(cfg.API.Timeout.Std()),
		backend.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing backend client: %w", err)
	}

	env := &Environment{Config: cfg, Logger: logger, Metrics: metrics}

	store, locker, err := env.openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Join(err, env.Close())
	}

	store, err = secureStore(store, cfg.Storage)
	if err != nil {
		return nil, errors.Join(err, env.Close())
	}

	hooks := metrics.Hooks()
	if opts.Debug {
		hooks = hooks.Merge(observability.LoggingHooks(logger))
	}

	wfOpts := []weft.Option{
		weft.WithLogger(logger),
		weft.WithStore(store),
		weft.WithAdapters(weft.DefaultAdapters(client, logger)),
		weft.WithLifecycleHooks(hooks),
	}
	if d := cfg.Engine.BlipDelay.Std(); d > 0 {
		wfOpts = append(wfOpts, weft.WithBlipDelay(d))
	}
	if locker != nil {
		wfOpts = append(wfOpts, weft.WithLocker(locker, weft.DefaultLockTTL))
	}

	env.Workflow = weft.New(wfOpts...)
	logger.Debug("workflow ready", "backend", cfg.Storage.Backend, "api", client.BaseURL())
	return env, nil
}

// openStore selects the snapshot store. Only the redis backend is shared
// between processes, so it is the only one that gets a Locker.
func (e *Environment) openStore(ctx context.Context, cfg config.StorageConfig) (ports.SnapshotStore, ports.Locker, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil
	case config.BackendFile, "":
		return file.New(cfg.Path), nil, nil
	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithTTL(cfg.Redis.TTL.Std()))
		e.closers = append(e.closers, store.Close)
		return store, redis.NewLocker(store.Client(), lockPrefix), nil
	case config.BackendPostgres:
		store, pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		e.closers = append(e.closers, func() error {
			pool.Close()
			return nil
		})
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// secureStore wraps store with the redaction and encryption middlewares the
// storage section asks for. Redaction runs first so masked values are sealed too.
func secureStore(store ports.SnapshotStore, cfg config.StorageConfig) (ports.SnapshotStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.Encryption.Enabled() {
		key, fallback, err := cfg.Encryption.Decode()
		if err != nil {
			return nil, err
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}

// createLogger configures the application logger from the log section.
// Logs go to Stderr so Stdout stays free for status output and MCP stdio.
func createLogger(cfg config.LogConfig, opts BuildOptions) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		level = slog.LevelDebug
	}
	w := opts.LogOutput
	if w == nil {
		w = os.Stderr
	}
	return logging.NewWithFormat(w, level, logging.Format(strings.ToLower(cfg.Format))), nil
}
