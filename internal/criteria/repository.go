package criteria

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/assay/pkg/pagination"
	"github.com/JaimeStill/assay/pkg/query"
	"github.com/JaimeStill/assay/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a criterion repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "criteria"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Active(ctx context.Context) (Snapshot, error) {
	q := "SELECT " + columns + " FROM criteria WHERE is_active ORDER BY id"

	active, err := repository.QueryMany(ctx, r.db, q, nil, scanCriterion)
	if err != nil {
		r.logger.Error("registry read failed", "error", err)
		return Snapshot{}, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}

	return Snapshot{Criteria: active, TakenAt: time.Now().UTC()}, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Criterion], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "ID", "Text")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs, err := qb.BuildCount()
	if err != nil {
		return nil, fmt.Errorf("build criteria count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count criteria: %w", err)
	}

	pageSQL, pageArgs, err := qb.BuildPage(page.Page, page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("build criteria page: %w", err)
	}
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanCriterion)
	if err != nil {
		return nil, fmt.Errorf("query criteria: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id string) (*Criterion, error) {
	q, args, err := query.NewBuilder(projection).BuildSingle("ID", id)
	if err != nil {
		return nil, err
	}

	c, err := repository.QueryOne(ctx, r.db, q, args, scanCriterion)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrNotFound)
	}
	return &c, nil
}

func (r *repo) Sync(ctx context.Context, seeds []Seed, prune bool) (*SyncResult, error) {
	result, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (SyncResult, error) {
		existing, err := repository.QueryMany(
			ctx, tx,
			"SELECT "+columns+" FROM criteria ORDER BY id FOR UPDATE",
			nil, scanCriterion,
		)
		if err != nil {
			return SyncResult{}, fmt.Errorf("lock criteria: %w", err)
		}

		plan := Diff(existing, seeds, prune)

		for _, ch := range plan.Changes {
			if err := applyChange(ctx, tx, ch); err != nil {
				return SyncResult{}, fmt.Errorf("sync %s: %w", ch.Seed.ID, err)
			}
		}

		for _, id := range plan.Deactivate {
			if err := repository.ExecExpectOne(
				ctx, tx,
				"UPDATE criteria SET is_active = false, updated_at = now() WHERE id = $1",
				id,
			); err != nil {
				return SyncResult{}, fmt.Errorf("deactivate %s: %w", id, err)
			}
		}

		return plan.Result, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"criteria synced",
		"created", len(result.Created),
		"updated", len(result.Updated),
		"unchanged", len(result.Unchanged),
		"deactivated", len(result.Deactivated),
	)
	return &result, nil
}

func applyChange(ctx context.Context, tx *sql.Tx, ch Change) error {
	s := ch.Seed
	if ch.Create {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO criteria(id, criterion_text, version, is_active, threshold)
			VALUES ($1, $2, 1, $3, $4)`,
			s.ID, s.Text, s.IsActive(), s.Threshold,
		)
		return err
	}

	bump := 0
	if ch.BumpVersion {
		bump = 1
	}

	return repository.ExecExpectOne(ctx, tx, `
		UPDATE criteria
		SET criterion_text = $1, threshold = $2, is_active = $3,
			version = version + $4, updated_at = now()
		WHERE id = $5`,
		s.Text, s.Threshold, s.IsActive(), bump, s.ID,
	)
}
