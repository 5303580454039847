package events

import "context"

// System defines the public contract for the analytical event log.
type System interface {
	Handler() *Handler

	// EnsureTable creates the events table when it does not exist.
	EnsureTable(ctx context.Context) error

	// Append writes events in one batch.
	Append(ctx context.Context, events ...Event) error

	// Stats aggregates events per criterion over the last days.
	Stats(ctx context.Context, days int) ([]CriterionStats, error)

	// Daily aggregates events per ingest day over the last days.
	Daily(ctx context.Context, days int) ([]DailyStats, error)

	Recent(ctx context.Context, limit int) ([]Event, error)

	BySource(ctx context.Context, sourceHash string) ([]Event, error)
}
