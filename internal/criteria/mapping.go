package criteria

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/assay/pkg/query"
	"github.com/JaimeStill/assay/pkg/repository"
)

const columns = "id, criterion_text, version, is_active, threshold, created_at, updated_at"

var projection = query.
	NewProjectionMap("public", "criteria", "c").
	Project("id", "ID").
	Project("criterion_text", "Text").
	Project("version", "Version").
	Project("is_active", "IsActive").
	Project("threshold", "Threshold").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field: "ID",
}

// Filters contains optional filtering criteria for criterion queries.
type Filters struct {
	Active *bool `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.WhereEquals("IsActive", f.Active)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters
	if a := values.Get("active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.Active = &v
		}
	}
	return f
}

func scanCriterion(s repository.Scanner) (Criterion, error) {
	var c Criterion
	err := s.Scan(
		&c.ID,
		&c.Text,
		&c.Version,
		&c.IsActive,
		&c.Threshold,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
