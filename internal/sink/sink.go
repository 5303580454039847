// Package sink commits terminal job outcomes to the transactional store and
// projects verdicts to the analytical event log.
//
// The analyses row is the commit point. The queue is finished with whatever
// outcome that row holds, and only the writer that inserted the row appends
// the event. Projection failures leave the job finished and are backfilled by
// the Reconciler.
package sink

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/sources"
)

var tracer = otel.Tracer("github.com/JaimeStill/assay/internal/sink")

// Analyses is the transactional store the sink writes through.
type Analyses interface {
	Record(ctx context.Context, j jobs.Job, o jobs.Outcome) (*analyses.Analysis, bool, error)
	MarkEvent(ctx context.Context, taskID string, u analyses.EventUpdate) error
	Replay(ctx context.Context, q analyses.ReplayQuery, project func(context.Context, analyses.Analysis) error) (analyses.ReplayResult, error)
}

// Queue receives the authoritative terminal outcome.
type Queue interface {
	Finish(ctx context.Context, taskID string, o jobs.Outcome) (jobs.Job, bool, error)
}

// Events is the analytical log.
type Events interface {
	Append(ctx context.Context, events ...events.Event) error
}

// Sources resolves source metadata for projected events.
type Sources interface {
	Find(ctx context.Context, sourceHash string) (*sources.Source, error)
}

type projector struct {
	events  Events
	sources Sources
}

func (p projector) append(ctx context.Context, a analyses.Analysis) error {
	src, err := p.sources.Find(ctx, a.SourceHash)
	if err != nil {
		return fmt.Errorf("load source %s: %w", a.SourceHash, err)
	}

	ev, err := Project(a, src)
	if err != nil {
		return err
	}
	return p.events.Append(ctx, ev)
}

// Project maps a finished analysis and its source to an analytical event.
func Project(a analyses.Analysis, src *sources.Source) (events.Event, error) {
	v, ok := a.Verdict()
	if !ok {
		return events.Event{}, fmt.Errorf("%w: %s", analyses.ErrNoVerdict, a.TaskID)
	}

	var match uint8
	if v.IsMatch {
		match = 1
	}

	return events.Event{
		EventID:          a.TaskID,
		SourceHash:       a.SourceHash,
		SourceURL:        src.SourceURL,
		SourceDate:       src.SourceDate,
		IngestTS:         src.IngestTS,
		CriterionID:      a.CriterionID,
		CriterionVersion: uint32(a.CriterionVersion),
		CriterionText:    a.CriterionText,
		IsMatch:          match,
		Confidence:       v.Confidence,
		Summary:          v.Summary,
		ModelName:        v.ModelName,
		LatencyMS:        v.LatencyMS,
		CreatedAt:        a.CompletedAt,
	}, nil
}
