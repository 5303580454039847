package analyses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/pkg/pagination"
	"github.com/JaimeStill/assay/pkg/query"
	"github.com/JaimeStill/assay/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an analyses repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "analyses"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Record(ctx context.Context, j jobs.Job, o jobs.Outcome) (*Analysis, bool, error) {
	if !o.Status.Terminal() {
		return nil, false, ErrNotTerminal
	}

	q := `
		INSERT INTO analyses(
			task_id, source_hash, criterion_id, criterion_version, criterion_text, threshold,
			status, is_match, confidence, summary, model_name, latency_ms,
			failure_reason, failure_message, raw_output, attempts, enqueued_at, started_at,
			event_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (task_id) DO NOTHING
		RETURNING ` + columns

	a, inserted, err := repository.QueryOptional(ctx, r.db, q, insertArgs(j, o), scanAnalysis)
	if err != nil {
		return nil, false, fmt.Errorf("record analysis: %w", err)
	}

	if inserted {
		r.logger.Info(
			"analysis recorded",
			"task_id", a.TaskID,
			"source_hash", a.SourceHash,
			"criterion_id", a.CriterionID,
			"status", a.Status,
		)
		return &a, true, nil
	}

	existing, err := r.Find(ctx, j.ID)
	if err != nil {
		return nil, false, fmt.Errorf("load recorded analysis: %w", err)
	}

	r.logger.Debug("analysis already recorded", "task_id", j.ID)
	return existing, false, nil
}

func (r *repo) Find(ctx context.Context, taskID string) (*Analysis, error) {
	q, args, err := query.NewBuilder(projection).BuildSingle("TaskID", taskID)
	if err != nil {
		return nil, err
	}

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrNotFound)
	}
	return &a, nil
}

func (r *repo) Latest(ctx context.Context, sourceHash string) ([]Analysis, error) {
	q := `
		SELECT DISTINCT ON (criterion_id, criterion_version) ` + columns + `
		FROM analyses
		WHERE source_hash = $1
		ORDER BY criterion_id, criterion_version, completed_at DESC`

	items, err := repository.QueryMany(ctx, r.db, q, []any{sourceHash}, scanAnalysis)
	if err != nil {
		return nil, fmt.Errorf("query latest analyses: %w", err)
	}
	return items, nil
}

func (r *repo) ListBySource(
	ctx context.Context,
	sourceHash string,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Analysis], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("SourceHash", &sourceHash).
		WhereSearch(page.Search, "CriterionID", "Summary")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs, err := qb.BuildCount()
	if err != nil {
		return nil, fmt.Errorf("build analyses count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	pageSQL, pageArgs, err := qb.BuildPage(page.Page, page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("build analyses page: %w", err)
	}
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAnalysis)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) MarkEvent(ctx context.Context, taskID string, u EventUpdate) error {
	return markEvent(ctx, r.db, taskID, u)
}

func markEvent(ctx context.Context, db repository.Executor, taskID string, u EventUpdate) error {
	q := `
		UPDATE analyses SET
			event_state = $2,
			event_attempts = event_attempts + 1,
			event_next_attempt_at = $3,
			event_error = $4
		WHERE task_id = $1 AND event_state IS NOT NULL`

	if err := repository.ExecExpectOne(ctx, db, q, taskID, string(u.State), u.NextAt, u.Error); err != nil {
		return repository.MapError(err, ErrNotFound, ErrNotFound)
	}
	return nil
}

func (r *repo) Replay(
	ctx context.Context,
	rq ReplayQuery,
	project func(context.Context, Analysis) error,
) (ReplayResult, error) {
	q := `
		SELECT ` + columns + `
		FROM analyses
		WHERE status = 'finished'
			AND event_attempts < $1
			AND (
				(event_state = 'failed' AND (event_next_attempt_at IS NULL OR event_next_attempt_at <= now()))
				OR (event_state = 'pending' AND completed_at <= now() - make_interval(secs => $2))
			)
		ORDER BY completed_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED`

	args := []any{rq.MaxAttempts, rq.Grace.Seconds(), rq.Limit}

	result, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (ReplayResult, error) {
		var res ReplayResult

		pending, err := repository.QueryMany(ctx, tx, q, args, scanAnalysis)
		if err != nil {
			return res, err
		}

		for _, a := range pending {
			u := EventUpdate{State: EventRecorded}

			if perr := project(ctx, a); perr != nil {
				msg := perr.Error()
				u = EventUpdate{State: EventFailed, Error: &msg}

				if a.EventAttempts+1 >= rq.MaxAttempts {
					res.GaveUp++
					r.logger.Warn(
						"analytics projection abandoned",
						"task_id", a.TaskID,
						"attempts", a.EventAttempts+1,
						"error", perr,
					)
				} else {
					next := time.Now().Add(rq.backoff(a.EventAttempts + 1))
					u.NextAt = &next
					res.Failed++
				}
			} else {
				res.Recorded++
			}

			if err := markEvent(ctx, tx, a.TaskID, u); err != nil {
				return res, err
			}
		}

		return res, nil
	})
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay analytics events: %w", err)
	}

	if result.Recorded+result.Failed+result.GaveUp > 0 {
		r.logger.Info(
			"analytics replay complete",
			"recorded", result.Recorded,
			"failed", result.Failed,
			"gave_up", result.GaveUp,
		)
	}
	return result, nil
}

func (rq ReplayQuery) backoff(n int) time.Duration {
	if rq.Backoff == nil {
		return 0
	}
	return rq.Backoff(n)
}

func (r *repo) Job(ctx context.Context, taskID string) (jobs.Job, error) {
	a, err := r.Find(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return jobs.Job{}, jobs.ErrNotFound
		}
		return jobs.Job{}, err
	}
	return a.Job(), nil
}
