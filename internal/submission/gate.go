package submission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/fingerprint"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/sources"
)

var tracer = otel.Tracer("github.com/JaimeStill/assay/internal/submission")

// Sources records submitted text.
type Sources interface {
	Upsert(ctx context.Context, cmd sources.UpsertCommand) (*sources.Source, bool, error)
}

// Registry provides the active criteria snapshot.
type Registry interface {
	Active(ctx context.Context) (criteria.Snapshot, error)
}

// Analyses looks up prior terminal analyses.
type Analyses interface {
	Latest(ctx context.Context, sourceHash string) ([]analyses.Analysis, error)
}

// Queue dispatches analysis jobs.
type Queue interface {
	Enqueue(ctx context.Context, sourceHash string, c criteria.Criterion) (string, bool, error)
	Status(ctx context.Context, taskID string) (jobs.Job, error)
}

// Fetcher downloads page text for URL-only submissions.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Gate deduplicates submissions and fans out jobs.
type Gate struct {
	sources  Sources
	registry Registry
	analyses Analyses
	queue    Queue
	fetcher  Fetcher
	validate *validator.Validate
	cfg      *Config
	logger   *slog.Logger
}

// New creates a Gate. fetcher may be nil, which disables URL-only
// submissions.
func New(
	srcs Sources,
	registry Registry,
	store Analyses,
	queue Queue,
	fetcher Fetcher,
	cfg *Config,
	logger *slog.Logger,
) *Gate {
	return &Gate{
		sources:  srcs,
		registry: registry,
		analyses: store,
		queue:    queue,
		fetcher:  fetcher,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
		logger:   logger.With("system", "submission"),
	}
}

// Handler returns the HTTP handler for the gate.
func (g *Gate) Handler() *Handler {
	return NewHandler(g, g.logger, g.cfg.MaxTextBytes())
}

// Submit fingerprints the request text and returns one assignment per active
// criterion. The registry is read before any write, so an unavailable
// registry leaves no trace.
func (g *Gate) Submit(ctx context.Context, req Request) (*Handle, error) {
	ctx, span := tracer.Start(ctx, "submission.submit")
	defer span.End()

	text, err := g.text(ctx, req)
	if err != nil {
		return nil, err
	}

	fp := fingerprint.Compute(text)
	if fp.Empty() {
		return nil, ErrEmptyText
	}
	span.SetAttributes(
		attribute.String("assay.source_hash", fp.Hash),
		attribute.Bool("assay.force_recheck", req.ForceRecheck),
	)

	snap, err := g.registry.Active(ctx)
	if err != nil {
		return nil, err
	}

	src, inserted, err := g.sources.Upsert(ctx, sources.UpsertCommand{
		Fingerprint:  fp,
		SourceURL:    req.SourceURL,
		SourceDate:   req.SourceDate,
		ForceRecheck: req.ForceRecheck,
	})
	if err != nil {
		return nil, err
	}

	handle := &Handle{
		SourceHash:   src.SourceHash,
		Created:      inserted,
		ForceRecheck: req.ForceRecheck,
	}

	if snap.Empty() {
		g.logger.Warn("no active criteria", "source_hash", src.SourceHash)
		handle.Assignments = []Assignment{}
		return handle, nil
	}

	var prior map[string]analyses.Analysis
	switch {
	case req.ForceRecheck:
		g.logger.Info(
			"forced recheck",
			"source_hash", src.SourceHash,
			"criteria", len(snap.Criteria),
		)
	case !inserted:
		prior, err = g.latest(ctx, src.SourceHash)
		if err != nil {
			return nil, err
		}
	}

	handle.Assignments, err = g.assign(ctx, src.SourceHash, snap, prior)
	if err != nil {
		return nil, err
	}

	g.logger.Info(
		"submission accepted",
		"source_hash", src.SourceHash,
		"created", inserted,
		"force_recheck", req.ForceRecheck,
		"assignments", len(handle.Assignments),
		"reused", countReused(handle.Assignments),
	)
	return handle, nil
}

func (g *Gate) text(ctx context.Context, req Request) (string, error) {
	if err := g.validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	text := req.Text
	if strings.TrimSpace(text) == "" && req.SourceURL != nil {
		if g.fetcher == nil {
			return "", fmt.Errorf("%w: text is required", ErrInvalidRequest)
		}

		fetchCtx, cancel := context.WithTimeout(ctx, g.cfg.FetchTimeoutDuration())
		defer cancel()

		fetched, err := g.fetcher.Fetch(fetchCtx, *req.SourceURL)
		if err != nil {
			return "", err
		}
		g.logger.Info("source text fetched", "url", *req.SourceURL, "bytes", len(fetched))
		text = fetched
	}

	if limit := g.cfg.MaxTextBytes(); int64(len(text)) > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrTextTooLarge, len(text), limit)
	}
	return text, nil
}

// latest indexes reusable analyses by criterion id and version. Failures
// caused by outages are left out so the pair is evaluated again.
func (g *Gate) latest(ctx context.Context, sourceHash string) (map[string]analyses.Analysis, error) {
	items, err := g.analyses.Latest(ctx, sourceHash)
	if err != nil {
		return nil, fmt.Errorf("load prior analyses: %w", err)
	}

	prior := make(map[string]analyses.Analysis, len(items))
	for _, a := range items {
		if a.Reusable() {
			prior[versionKey(a.CriterionID, a.CriterionVersion)] = a
		}
	}
	return prior, nil
}

func (g *Gate) assign(
	ctx context.Context,
	sourceHash string,
	snap criteria.Snapshot,
	prior map[string]analyses.Analysis,
) ([]Assignment, error) {
	out := make([]Assignment, len(snap.Criteria))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.FanOut)

	for i, c := range snap.Criteria {
		if a, ok := prior[versionKey(c.ID, c.Version)]; ok {
			out[i] = reused(a)
			continue
		}

		eg.Go(func() error {
			a, err := g.dispatch(egCtx, sourceHash, c)
			if err != nil {
				return err
			}
			out[i] = a
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gate) dispatch(ctx context.Context, sourceHash string, c criteria.Criterion) (Assignment, error) {
	id, created, err := g.queue.Enqueue(ctx, sourceHash, c)
	if err != nil {
		return Assignment{}, err
	}

	a := Assignment{
		CriterionID:      c.ID,
		CriterionVersion: c.Version,
		TaskID:           id,
		Status:           jobs.StatusQueued,
	}
	if created {
		return a, nil
	}

	job, err := g.queue.Status(ctx, id)
	if err != nil {
		g.logger.Warn("in-flight job status unavailable", "task_id", id, "error", err)
		return a, nil
	}
	a.Status = job.Status
	a.CriterionVersion = job.CriterionVersion
	a.Result = job.Result
	a.Error = job.Error
	return a, nil
}

func reused(a analyses.Analysis) Assignment {
	o := a.Outcome()
	return Assignment{
		CriterionID:      a.CriterionID,
		CriterionVersion: a.CriterionVersion,
		TaskID:           a.TaskID,
		Status:           a.Status,
		Reused:           true,
		Result:           o.Verdict,
		Error:            o.Failure,
	}
}

func versionKey(id string, version int) string {
	return fmt.Sprintf("%s@%d", id, version)
}

func countReused(as []Assignment) int {
	n := 0
	for _, a := range as {
		if a.Reused {
			n++
		}
	}
	return n
}
