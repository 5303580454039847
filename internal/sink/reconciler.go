package sink

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/pkg/lifecycle"
)

// Reconciler replays analytical projections that failed or were never
// confirmed by their writer.
type Reconciler struct {
	analyses Analyses
	proj     projector
	cfg      *Config
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(store Analyses, evs Events, srcs Sources, cfg *Config, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		analyses: store,
		proj:     projector{events: evs, sources: srcs},
		cfg:      cfg,
		logger:   logger.With("system", "reconciler"),
	}
}

// Run performs one replay pass.
func (r *Reconciler) Run(ctx context.Context) (analyses.ReplayResult, error) {
	backoff := r.cfg.ReconcileRetry()

	q := analyses.ReplayQuery{
		Grace:       r.cfg.ReconcileGraceDuration(),
		MaxAttempts: r.cfg.ReconcileMaxAttempts,
		Limit:       r.cfg.ReconcileBatch,
		Backoff: func(n int) time.Duration {
			return backoff.Delay(n - 1)
		},
	}

	return r.analyses.Replay(ctx, q, r.proj.append)
}

// Start runs Run on the configured interval until shutdown.
func (r *Reconciler) Start(lc *lifecycle.Coordinator) {
	interval := r.cfg.ReconcileIntervalDuration()
	r.logger.Info("starting reconciler", "interval", interval)

	lc.Go(func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("reconciler stopped")
				return
			case <-ticker.C:
				if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
					r.logger.Error("reconcile pass failed", "error", err)
				}
			}
		}
	})
}
