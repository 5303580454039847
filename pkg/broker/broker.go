// Package broker owns the Redis client backing the job queue.
package broker

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JaimeStill/assay/pkg/lifecycle"
)

// System manages the Redis client and lifecycle coordination.
type System interface {
	// Client returns the shared Redis client.
	Client() goredis.UniversalClient
	// Ping verifies the server is reachable.
	Ping(ctx context.Context) error
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type broker struct {
	client goredis.UniversalClient
	logger *slog.Logger
	cfg    *Config
}

// New creates the Redis client. Connections are established lazily.
func New(cfg *Config, logger *slog.Logger) System {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeoutDuration(),
		ReadTimeout:  cfg.ReadTimeoutDuration(),
		WriteTimeout: cfg.WriteTimeoutDuration(),
	})

	return &broker{
		client: client,
		logger: logger.With("system", "broker"),
		cfg:    cfg,
	}
}

func (b *broker) Client() goredis.UniversalClient {
	return b.client
}

func (b *broker) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.DialTimeoutDuration())
	defer cancel()

	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (b *broker) Start(lc *lifecycle.Coordinator) error {
	b.logger.Info("starting broker", "addr", b.cfg.Addr, "db", b.cfg.DB)

	lc.OnStartup(func() {
		if err := b.Ping(lc.Context()); err != nil {
			b.logger.Error("broker ping failed", "error", err)
			return
		}
		b.logger.Info("broker connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := b.client.Close(); err != nil {
			b.logger.Error("broker close failed", "error", err)
			return
		}
		b.logger.Info("broker connection closed")
	})

	return nil
}
