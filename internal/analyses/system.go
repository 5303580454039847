package analyses

import (
	"context"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/pkg/pagination"
)

// System defines the public contract for the analyses store.
type System interface {
	Handler() *Handler

	// Record inserts the terminal outcome for a job once. When a row for the
	// task already exists it is returned unchanged with inserted false.
	Record(ctx context.Context, j jobs.Job, o jobs.Outcome) (a *Analysis, inserted bool, err error)

	Find(ctx context.Context, taskID string) (*Analysis, error)

	// Latest returns the newest analysis per criterion version for a source.
	Latest(ctx context.Context, sourceHash string) ([]Analysis, error)

	ListBySource(
		ctx context.Context,
		sourceHash string,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Analysis], error)

	// MarkEvent stores the result of a projection attempt.
	MarkEvent(ctx context.Context, taskID string, u EventUpdate) error

	// Replay locks finished analyses whose projection is overdue and calls
	// project for each. Rows locked by a concurrent replay are skipped.
	Replay(ctx context.Context, q ReplayQuery, project func(context.Context, Analysis) error) (ReplayResult, error)

	// Job serves the dispatcher's archive lookup.
	Job(ctx context.Context, taskID string) (jobs.Job, error)
}
