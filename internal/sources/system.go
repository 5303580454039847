package sources

import (
	"context"

	"github.com/JaimeStill/assay/pkg/pagination"
)

// System defines the public contract for source operations.
type System interface {
	Handler() *Handler

	// Upsert archives the normalized text and inserts or refreshes the row for
	// its fingerprint. inserted reports whether the row is new.
	Upsert(ctx context.Context, cmd UpsertCommand) (src *Source, inserted bool, err error)

	Find(ctx context.Context, sourceHash string) (*Source, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Source], error)

	// Text loads the archived normalized text. A missing blob is
	// ErrTextUnavailable.
	Text(ctx context.Context, sourceHash string) (string, error)
}
