package criteria

import (
	"context"

	"github.com/JaimeStill/assay/pkg/pagination"
)

// System defines the public contract for the criterion registry.
type System interface {
	Handler() *Handler

	// Active returns a consistent snapshot of active criteria ordered by id.
	// Any storage failure is reported as ErrRegistryUnavailable.
	Active(ctx context.Context) (Snapshot, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Criterion], error)

	Find(ctx context.Context, id string) (*Criterion, error)

	// Sync applies seed entries: new ids are created, changed text or
	// threshold bumps the version, and with prune set, ids missing from the
	// seed are deactivated.
	Sync(ctx context.Context, seeds []Seed, prune bool) (*SyncResult, error)
}
