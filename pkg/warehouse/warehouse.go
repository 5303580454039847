// Package warehouse owns the ClickHouse connection used for the analytical
// event log.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/JaimeStill/assay/pkg/lifecycle"
)

// System manages the ClickHouse connection and lifecycle coordination.
type System interface {
	// Conn returns the native ClickHouse connection.
	Conn() driver.Conn
	// Ping verifies the server is reachable.
	Ping(ctx context.Context) error
	// Start registers startup and shutdown hooks with the lifecycle coordinator.
	Start(lc *lifecycle.Coordinator) error
}

type warehouse struct {
	conn   driver.Conn
	cfg    *Config
	logger *slog.Logger
}

// New opens a pooled native connection. The first dial happens on Start or
// first use.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	opts := &clickhouse.Options{
		Addr: cfg.Addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     cfg.DialTimeoutDuration(),
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetimeDuration(),
	}
	if cfg.Compress {
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	return &warehouse{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("system", "warehouse"),
	}, nil
}

func (w *warehouse) Conn() driver.Conn {
	return w.conn
}

func (w *warehouse) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.DialTimeoutDuration())
	defer cancel()

	if err := w.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

func (w *warehouse) Start(lc *lifecycle.Coordinator) error {
	w.logger.Info("starting warehouse", "addrs", w.cfg.Addrs, "database", w.cfg.Database)

	lc.OnStartup(func() {
		if err := w.Ping(lc.Context()); err != nil {
			w.logger.Error("warehouse ping failed", "error", err)
			return
		}
		w.logger.Info("warehouse connection established")
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := w.conn.Close(); err != nil {
			w.logger.Error("warehouse close failed", "error", err)
			return
		}
		w.logger.Info("warehouse connection closed")
	})

	return nil
}
