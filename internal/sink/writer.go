package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/pkg/repository"
	"github.com/JaimeStill/assay/pkg/retry"
)

// Writer performs the ordered dual write for one terminal outcome.
type Writer struct {
	analyses Analyses
	queue    Queue
	proj     projector
	cfg      *Config
	logger   *slog.Logger
}

// NewWriter creates a Writer.
func NewWriter(
	store Analyses,
	queue Queue,
	evs Events,
	srcs Sources,
	cfg *Config,
	logger *slog.Logger,
) *Writer {
	return &Writer{
		analyses: store,
		queue:    queue,
		proj:     projector{events: evs, sources: srcs},
		cfg:      cfg,
		logger:   logger.With("system", "sink"),
	}
}

type recorded struct {
	analysis *analyses.Analysis
	inserted bool
}

// Commit records o for j and finishes the job. The returned outcome is the
// authoritative one: a concurrent writer's committed row wins, and a commit
// that cannot be persisted becomes a persistence failure carrying the verdict.
// An error is returned only when the queue could not be finished.
func (w *Writer) Commit(ctx context.Context, j jobs.Job, o jobs.Outcome) (jobs.Outcome, error) {
	ctx, span := tracer.Start(ctx, "sink.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("assay.task_id", j.ID),
		attribute.String("assay.status", string(o.Status)),
	)

	opts := retry.Options{
		Config:    w.cfg.CommitRetry(),
		Retryable: repository.Transient,
		Logger:    w.logger,
		Name:      "record analysis",
	}

	rec, err := retry.Do(ctx, opts, func(ctx context.Context, _ int) (recorded, error) {
		a, inserted, err := w.analyses.Record(ctx, j, o)
		return recorded{analysis: a, inserted: inserted}, err
	})

	authoritative := o
	switch {
	case err != nil:
		span.RecordError(err)
		authoritative = persistenceFailure(o, err)
		w.logger.Error(
			"analysis commit failed",
			"task_id", j.ID,
			"status", o.Status,
			"error", err,
		)
	case !rec.inserted:
		authoritative = rec.analysis.Outcome()
		w.logger.Info(
			"analysis already committed",
			"task_id", j.ID,
			"status", authoritative.Status,
		)
	}

	if _, _, err := w.queue.Finish(ctx, j.ID, authoritative); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return authoritative, fmt.Errorf("finish job %s: %w", j.ID, err)
	}

	if rec.inserted && rec.analysis.Status == jobs.StatusFinished {
		w.publish(ctx, *rec.analysis)
	}

	return authoritative, nil
}

// publish appends the event for a freshly inserted analysis and records the
// projection state.
func (w *Writer) publish(ctx context.Context, a analyses.Analysis) {
	u := analyses.EventUpdate{State: analyses.EventRecorded}

	if err := w.proj.append(ctx, a); err != nil {
		msg := err.Error()
		next := time.Now().Add(w.cfg.ReconcileRetry().Delay(0))
		u = analyses.EventUpdate{State: analyses.EventFailed, NextAt: &next, Error: &msg}

		w.logger.Error(
			"analytics append failed",
			"task_id", a.TaskID,
			"source_hash", a.SourceHash,
			"error", err,
		)
	}

	if err := w.analyses.MarkEvent(ctx, a.TaskID, u); err != nil {
		w.logger.Error(
			"analytics state update failed",
			"task_id", a.TaskID,
			"event_state", u.State,
			"error", err,
		)
	}
}

func persistenceFailure(o jobs.Outcome, err error) jobs.Outcome {
	if o.Verdict == nil {
		return o
	}

	f := jobs.Failed(jobs.ReasonPersistence, err.Error())
	f.Failure.Verdict = o.Verdict
	return f
}
