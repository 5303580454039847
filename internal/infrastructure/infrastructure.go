// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, tracing, database, storage, queue
// broker, warehouse) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/pkg/broker"
	"github.com/JaimeStill/assay/pkg/database"
	"github.com/JaimeStill/assay/pkg/lifecycle"
	"github.com/JaimeStill/assay/pkg/storage"
	"github.com/JaimeStill/assay/pkg/tracing"
	"github.com/JaimeStill/assay/pkg/warehouse"
)

// Infrastructure holds the core systems required by all domain modules.
// Broker is nil when the queue runs on the in-memory backend.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Broker    broker.System
	Warehouse warehouse.System

	tracing tracing.Shutdown
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := NewLogger(&cfg.Logging, os.Stderr)

	shutdown, err := tracing.Init(context.Background(), &cfg.Tracing, cfg.Version, cfg.Env(), logger)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	wh, err := warehouse.New(&cfg.Warehouse, logger)
	if err != nil {
		return nil, fmt.Errorf("warehouse init failed: %w", err)
	}

	var b broker.System
	if cfg.Queue.Backend == jobs.BackendRedis {
		b = broker.New(&cfg.Redis, logger)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Broker:    b,
		Warehouse: wh,
		tracing:   shutdown,
	}, nil
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// QueueBackend returns the job store selected by the queue section.
func (i *Infrastructure) QueueBackend(cfg *jobs.Config) jobs.Backend {
	if i.Broker == nil {
		i.Logger.Warn("queue running in memory, jobs are not shared between processes")
		return jobs.NewMemoryBackend()
	}
	return jobs.NewRedisBackend(i.Broker.Client(), cfg.KeyPrefix)
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	tracing.Register(i.Lifecycle, i.tracing, i.Logger)

	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	if err := i.Warehouse.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("warehouse start failed: %w", err)
	}
	if i.Broker != nil {
		if err := i.Broker.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("broker start failed: %w", err)
		}
	}
	return nil
}
