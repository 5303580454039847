// Package worker runs the pool that evaluates queued jobs. Each job loads the
// archived source text, asks the model for a verdict, and hands the outcome
// to the sink. Every failure becomes a failed outcome on that job only.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/llm"
	"github.com/JaimeStill/assay/internal/verdict"
	"github.com/JaimeStill/assay/pkg/lifecycle"
)

var tracer = otel.Tracer("github.com/JaimeStill/assay/internal/worker")

// Texts loads archived source text.
type Texts interface {
	Text(ctx context.Context, sourceHash string) (string, error)
}

// Committer persists a terminal outcome and finishes the job.
type Committer interface {
	Commit(ctx context.Context, j jobs.Job, o jobs.Outcome) (jobs.Outcome, error)
}

// Pool is a fixed-size set of workers draining the job queue.
type Pool struct {
	queue  jobs.System
	texts  Texts
	llm    llm.Client
	commit Committer
	cfg    *Config
	logger *slog.Logger
}

// New creates a Pool.
func New(
	queue jobs.System,
	texts Texts,
	client llm.Client,
	commit Committer,
	cfg *Config,
	logger *slog.Logger,
) *Pool {
	return &Pool{
		queue:  queue,
		texts:  texts,
		llm:    client,
		commit: commit,
		cfg:    cfg,
		logger: logger.With("system", "worker"),
	}
}

// Start launches the workers and the heartbeat loop on the coordinator.
func (p *Pool) Start(lc *lifecycle.Coordinator) error {
	p.logger.Info(
		"starting worker pool",
		"id", p.cfg.ID,
		"concurrency", p.cfg.Concurrency,
		"model", p.llm.ModelName(),
	)

	for i := range p.cfg.Concurrency {
		id := p.cfg.ID + "-" + strconv.Itoa(i)
		lc.Go(func(ctx context.Context) {
			p.loop(ctx, id)
		})
	}

	lc.Go(p.heartbeat)
	return nil
}

func (p *Pool) loop(ctx context.Context, workerID string) {
	logger := p.logger.With("worker_id", workerID)
	logger.Debug("worker started")

	for ctx.Err() == nil {
		if _, err := p.RunOnce(ctx, workerID); err != nil && ctx.Err() == nil {
			logger.Error("worker iteration failed", "error", err)
			sleep(ctx, p.cfg.PollWaitDuration())
		}
	}

	logger.Debug("worker stopped")
}

func (p *Pool) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.HeartbeatIntervalDuration())
	defer ticker.Stop()

	beat := func() {
		if err := p.queue.Heartbeat(ctx, p.cfg.ID, p.cfg.HeartbeatTTLDuration()); err != nil && ctx.Err() == nil {
			p.logger.Warn("heartbeat failed", "error", err)
		}
	}

	beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat()
		}
	}
}

// RunOnce claims at most one job and processes it. It reports whether a job
// was claimed.
func (p *Pool) RunOnce(ctx context.Context, workerID string) (bool, error) {
	job, ok, err := p.queue.Next(ctx, workerID, p.cfg.PollWaitDuration())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if !ok {
		return false, nil
	}

	p.Process(ctx, job)
	return true, nil
}

// Process evaluates a claimed job and commits its outcome. When ctx ends
// before the model answers, nothing is committed and the lease lapses to
// the reaper.
func (p *Pool) Process(ctx context.Context, job jobs.Job) {
	ctx, span := tracer.Start(ctx, "worker.process", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("assay.task_id", job.ID),
		attribute.String("assay.source_hash", job.SourceHash),
		attribute.String("assay.criterion_id", job.CriterionID),
	)

	logger := p.logger.With("task_id", job.ID, "criterion_id", job.CriterionID)
	logger.Info("job started", "source_hash", job.SourceHash, "attempt", job.Attempts)

	stop := p.extendLease(ctx, job.ID, logger)
	o := p.evaluate(ctx, job, logger)
	stop()

	if ctx.Err() != nil {
		logger.Warn("job abandoned on shutdown")
		return
	}

	span.SetAttributes(attribute.String("assay.status", string(o.Status)))

	final, err := p.commit.Commit(context.WithoutCancel(ctx), job, o)
	if err != nil {
		span.RecordError(err)
		logger.Error("job commit failed", "error", err)
		return
	}

	logger.Info("job completed", "status", final.Status)
}

func (p *Pool) evaluate(ctx context.Context, job jobs.Job, logger *slog.Logger) (o jobs.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			o = jobs.Failed(jobs.ReasonPanic, fmt.Sprint(r))
		}
	}()

	text, err := p.texts.Text(ctx, job.SourceHash)
	if err != nil {
		logger.Error("source text unavailable", "source_hash", job.SourceHash, "error", err)
		return jobs.Failed(jobs.ReasonSourceUnavailable, err.Error())
	}

	completion, err := p.llm.Evaluate(ctx, text, job.CriterionText)
	if err != nil {
		var rejected *llm.ResponseError
		if errors.As(err, &rejected) {
			logger.Warn("model rejected request", "status_code", rejected.StatusCode, "error", err)
			return jobs.Failed(jobs.ReasonRejected, err.Error())
		}
		logger.Warn("model unreachable", "error", err)
		return jobs.Failed(jobs.ReasonTransport, err.Error())
	}

	v, err := verdict.Parse(completion.Output)
	if err != nil {
		logger.Warn("verdict parse failed", "error", err)
		return jobs.Failed(jobs.ReasonParse, err.Error()).WithRaw(completion.Output)
	}

	v.ModelName = completion.Model
	if v.ModelName == "" {
		v.ModelName = p.llm.ModelName()
	}
	v.LatencyMS = completion.Latency.Milliseconds()

	if v.ApplyThreshold(job.Threshold) {
		logger.Info(
			"match demoted below threshold",
			"confidence", v.Confidence,
			"threshold", *job.Threshold,
		)
	}

	return jobs.Finished(v)
}

// extendLease renews the job lease until the returned stop func is called.
func (p *Pool) extendLease(ctx context.Context, taskID string, logger *slog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.cfg.ExtendIntervalDuration())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := p.queue.Extend(ctx, taskID)
				switch {
				case err != nil && ctx.Err() == nil:
					logger.Warn("lease extension failed", "error", err)
				case err == nil && !ok:
					logger.Warn("lease lost")
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
