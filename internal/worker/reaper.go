package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/pkg/lifecycle"
)

// Reaper fails running jobs whose lease lapsed and queued jobs that waited
// past the maximum queue age. Both go through the sink, so a late verdict
// from the original worker cannot overwrite the recorded failure.
type Reaper struct {
	queue    jobs.System
	commit   Committer
	interval time.Duration
	logger   *slog.Logger
}

// ReapResult counts the jobs failed by one pass.
type ReapResult struct {
	Lost    int `json:"worker_lost"`
	Expired int `json:"expired"`
}

// NewReaper creates a Reaper.
func NewReaper(queue jobs.System, commit Committer, cfg *Config, logger *slog.Logger) *Reaper {
	return &Reaper{
		queue:    queue,
		commit:   commit,
		interval: cfg.ReapIntervalDuration(),
		logger:   logger.With("system", "reaper"),
	}
}

// Run performs one reaper pass.
func (r *Reaper) Run(ctx context.Context) (ReapResult, error) {
	var res ReapResult

	lost, err := r.queue.Expired(ctx)
	if err != nil {
		return res, fmt.Errorf("list expired leases: %w", err)
	}
	for _, id := range lost {
		if r.fail(ctx, id, jobs.Failed(jobs.ReasonWorkerLost, "lease expired before the job finished")) {
			res.Lost++
		}
	}

	stale, err := r.queue.Stale(ctx)
	if err != nil {
		return res, fmt.Errorf("list stale jobs: %w", err)
	}
	for _, id := range stale {
		if r.fail(ctx, id, jobs.Failed(jobs.ReasonExpired, "job exceeded the maximum queue age")) {
			res.Expired++
		}
	}

	if res.Lost+res.Expired > 0 {
		r.logger.Warn("reaped jobs", "worker_lost", res.Lost, "expired", res.Expired)
	}
	return res, nil
}

func (r *Reaper) fail(ctx context.Context, taskID string, o jobs.Outcome) bool {
	job, err := r.queue.Status(ctx, taskID)
	if err != nil {
		r.logger.Error("reap lookup failed", "task_id", taskID, "error", err)
		return false
	}
	if job.Status.Terminal() {
		return false
	}

	if _, err := r.commit.Commit(ctx, job, o); err != nil {
		r.logger.Error("reap commit failed", "task_id", taskID, "error", err)
		return false
	}
	return true
}

// Start runs Run on the configured interval until shutdown.
func (r *Reaper) Start(lc *lifecycle.Coordinator) {
	r.logger.Info("starting reaper", "interval", r.interval)

	lc.Go(func(ctx context.Context) {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Run(ctx); err != nil && ctx.Err() == nil {
					r.logger.Error("reap pass failed", "error", err)
				}
			}
		}
	})
}
