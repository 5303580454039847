package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/assay/internal/fingerprint"
	"github.com/JaimeStill/assay/pkg/pagination"
	"github.com/JaimeStill/assay/pkg/query"
	"github.com/JaimeStill/assay/pkg/repository"
	"github.com/JaimeStill/assay/pkg/storage"
)

const textContentType = "text/plain; charset=utf-8"

type repo struct {
	db         *sql.DB
	storage    storage.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a source repository implementing the System interface.
func New(
	db *sql.DB,
	store storage.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		storage:    store,
		logger:     logger.With("system", "sources"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Upsert(ctx context.Context, cmd UpsertCommand) (*Source, bool, error) {
	fp := cmd.Fingerprint
	if fp.Empty() {
		return nil, false, ErrEmptyText
	}

	if err := r.archive(ctx, fp); err != nil {
		return nil, false, err
	}

	q := `
		INSERT INTO sources(id, source_hash, source_url, source_date, force_recheck, text_preview)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_hash) DO UPDATE SET
			source_url = COALESCE(EXCLUDED.source_url, sources.source_url),
			source_date = COALESCE(EXCLUDED.source_date, sources.source_date),
			force_recheck = EXCLUDED.force_recheck,
			updated_at = now()
		RETURNING ` + returning + `, (xmax = 0) AS inserted`

	args := []any{
		uuid.New(),
		fp.Hash,
		cmd.SourceURL,
		cmd.SourceDate,
		cmd.ForceRecheck,
		fp.Preview(fingerprint.PreviewBytes),
	}

	u, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (upserted, error) {
		return repository.QueryOne(ctx, tx, q, args, scanUpserted)
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert source: %w", err)
	}

	if u.inserted {
		r.logger.Info("source created", "source_hash", u.SourceHash, "id", u.ID)
	} else {
		r.logger.Info("source resubmitted", "source_hash", u.SourceHash, "force_recheck", u.ForceRecheck)
	}

	src := u.Source
	return &src, u.inserted, nil
}

// archive uploads the normalized text unless a blob for the hash exists.
// Keys are content addressed, so an existing blob already holds the text.
func (r *repo) archive(ctx context.Context, fp fingerprint.Fingerprint) error {
	key := StorageKey(fp.Hash)

	exists, err := r.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check source archive: %w", err)
	}
	if exists {
		return nil
	}

	if err := r.storage.Upload(ctx, key, strings.NewReader(fp.Normalized), textContentType); err != nil {
		return fmt.Errorf("archive source text: %w", err)
	}

	r.logger.Debug("source text archived", "key", key, "bytes", len(fp.Normalized))
	return nil
}

func (r *repo) Text(ctx context.Context, sourceHash string) (string, error) {
	rc, err := r.storage.Download(ctx, StorageKey(sourceHash))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrTextUnavailable, sourceHash)
		}
		return "", fmt.Errorf("download source text: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read source text: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrTextUnavailable, sourceHash)
	}
	return string(data), nil
}

func (r *repo) Find(ctx context.Context, sourceHash string) (*Source, error) {
	q, args, err := query.NewBuilder(projection).BuildSingle("SourceHash", sourceHash)
	if err != nil {
		return nil, err
	}

	src, err := repository.QueryOne(ctx, r.db, q, args, scanSource)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrNotFound)
	}
	return &src, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Source], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "SourceURL", "TextPreview")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs, err := qb.BuildCount()
	if err != nil {
		return nil, fmt.Errorf("build sources count: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count sources: %w", err)
	}

	pageSQL, pageArgs, err := qb.BuildPage(page.Page, page.PageSize)
	if err != nil {
		return nil, fmt.Errorf("build sources page: %w", err)
	}
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSource)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}
