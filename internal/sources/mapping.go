package sources

import (
	"net/url"
	"strconv"
	"time"

	"github.com/JaimeStill/assay/pkg/query"
	"github.com/JaimeStill/assay/pkg/repository"
)

const returning = "id, source_hash, source_url, source_date, ingest_ts, force_recheck, text_preview, created_at, updated_at"

var projection = query.
	NewProjectionMap("public", "sources", "s").
	Project("id", "ID").
	Project("source_hash", "SourceHash").
	Project("source_url", "SourceURL").
	Project("source_date", "SourceDate").
	Project("ingest_ts", "IngestTS").
	Project("force_recheck", "ForceRecheck").
	Project("text_preview", "TextPreview").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "IngestTS",
	Descending: true,
}

// Filters contains optional filtering criteria for source queries.
// URL uses case-insensitive contains matching; From and To bound SourceDate
// as a half-open range.
type Filters struct {
	URL          *string    `json:"url,omitempty"`
	From         *time.Time `json:"from,omitempty"`
	To           *time.Time `json:"to,omitempty"`
	ForceRecheck *bool      `json:"force_recheck,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("SourceURL", f.URL).
		WhereBetween("SourceDate", f.From, f.To).
		WhereEquals("ForceRecheck", f.ForceRecheck)
}

// FiltersFromQuery extracts filter values from URL query parameters. Dates
// accept RFC 3339 or YYYY-MM-DD.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if u := values.Get("url"); u != "" {
		f.URL = &u
	}
	if t, ok := parseDate(values.Get("from")); ok {
		f.From = &t
	}
	if t, ok := parseDate(values.Get("to")); ok {
		f.To = &t
	}
	if fr := values.Get("force_recheck"); fr != "" {
		if v, err := strconv.ParseBool(fr); err == nil {
			f.ForceRecheck = &v
		}
	}

	return f
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func scanSource(s repository.Scanner) (Source, error) {
	var src Source
	err := s.Scan(
		&src.ID,
		&src.SourceHash,
		&src.SourceURL,
		&src.SourceDate,
		&src.IngestTS,
		&src.ForceRecheck,
		&src.TextPreview,
		&src.CreatedAt,
		&src.UpdatedAt,
	)
	return src, err
}

type upserted struct {
	Source
	inserted bool
}

func scanUpserted(s repository.Scanner) (upserted, error) {
	var u upserted
	err := s.Scan(
		&u.ID,
		&u.SourceHash,
		&u.SourceURL,
		&u.SourceDate,
		&u.IngestTS,
		&u.ForceRecheck,
		&u.TextPreview,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.inserted,
	)
	return u, err
}
