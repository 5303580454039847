package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/assay/internal/criteria"
)

type dispatcher struct {
	backend Backend
	archive Archive
	cfg     *Config
	logger  *slog.Logger
}

// New creates a dispatcher over backend. archive may be nil.
func New(backend Backend, archive Archive, cfg *Config, logger *slog.Logger) System {
	return &dispatcher{
		backend: backend,
		archive: archive,
		cfg:     cfg,
		logger:  logger.With("system", "jobs"),
	}
}

func (d *dispatcher) Handler() *Handler {
	return NewHandler(d, d.logger, d.cfg.MaxWaitDuration())
}

func (d *dispatcher) Enqueue(ctx context.Context, sourceHash string, c criteria.Criterion) (string, bool, error) {
	job := Job{
		ID: uuid.NewString(),
		Spec: Spec{
			SourceHash:       sourceHash,
			CriterionID:      c.ID,
			CriterionVersion: c.Version,
			CriterionText:    c.Text,
			Threshold:        c.Threshold,
		},
		Status:     StatusQueued,
		EnqueuedAt: time.Now().UTC(),
	}

	id, created, err := d.backend.Claim(ctx, job)
	if err != nil {
		return "", false, fmt.Errorf("enqueue %s/%s: %w", sourceHash, c.ID, err)
	}

	if created {
		d.logger.Info("job enqueued", "task_id", id, "source_hash", sourceHash, "criterion_id", c.ID, "criterion_version", c.Version)
	} else {
		d.logger.Debug("job already in flight", "task_id", id, "source_hash", sourceHash, "criterion_id", c.ID)
	}
	return id, created, nil
}

func (d *dispatcher) Status(ctx context.Context, taskID string) (Job, error) {
	job, err := d.backend.Get(ctx, taskID)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, ErrNotFound) || d.archive == nil {
		return Job{}, err
	}

	job, err = d.archive.Job(ctx, taskID)
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

func (d *dispatcher) WaitFor(ctx context.Context, taskID string, timeout time.Duration) (Job, error) {
	if limit := d.cfg.MaxWaitDuration(); timeout <= 0 || timeout > limit {
		timeout = limit
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(d.cfg.PollIntervalDuration())
	defer ticker.Stop()

	for {
		job, err := d.Status(ctx, taskID)
		if err != nil {
			return Job{}, err
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-deadline.C:
			return job, ErrWaitTimeout
		case <-ticker.C:
		}
	}
}

func (d *dispatcher) Info(ctx context.Context) (QueueInfo, error) {
	queued, running, err := d.backend.Counts(ctx)
	if err != nil {
		return QueueInfo{}, err
	}
	workers, err := d.backend.Workers(ctx)
	if err != nil {
		return QueueInfo{}, err
	}
	return QueueInfo{Queued: queued, Running: running, Workers: workers}, nil
}

func (d *dispatcher) Next(ctx context.Context, workerID string, wait time.Duration) (Job, bool, error) {
	return d.backend.Next(ctx, workerID, d.cfg.LeaseTimeoutDuration(), wait)
}

func (d *dispatcher) Extend(ctx context.Context, taskID string) (bool, error) {
	return d.backend.Extend(ctx, taskID, d.cfg.LeaseTimeoutDuration())
}

func (d *dispatcher) Finish(ctx context.Context, taskID string, o Outcome) (Job, bool, error) {
	if err := validateOutcome(o); err != nil {
		return Job{}, false, err
	}

	job, applied, err := d.backend.Finish(ctx, taskID, o, d.cfg.ResultTTLDuration())
	if err != nil {
		return Job{}, false, err
	}

	if !applied {
		d.logger.Warn("job already terminal", "task_id", taskID, "status", job.Status, "attempted", o.Status)
		return job, false, nil
	}

	attrs := []any{"task_id", taskID, "status", o.Status, "criterion_id", job.CriterionID}
	if o.Failure != nil {
		attrs = append(attrs, "reason", o.Failure.Reason)
	}
	d.logger.Info("job "+string(o.Status), attrs...)
	return job, true, nil
}

func (d *dispatcher) Expired(ctx context.Context) ([]string, error) {
	return d.backend.Expired(ctx, time.Now(), d.cfg.ReapBatch)
}

func (d *dispatcher) Stale(ctx context.Context) ([]string, error) {
	return d.backend.Stale(ctx, time.Now().Add(-d.cfg.MaxQueueAgeDuration()), d.cfg.ReapBatch)
}

func (d *dispatcher) Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error {
	return d.backend.Heartbeat(ctx, workerID, ttl)
}

func validateOutcome(o Outcome) error {
	switch {
	case o.Status == StatusFinished && o.Verdict != nil && o.Failure == nil:
		return nil
	case o.Status == StatusFailed && o.Failure != nil && o.Verdict == nil:
		return nil
	}
	return ErrInvalidState
}
