package query_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/assay/pkg/query"
)

func testProjection() *query.ProjectionMap {
	return query.NewProjectionMap("public", "sources", "s").
		Project("source_hash", "SourceHash").
		Project("source_url", "SourceURL").
		Project("ingest_ts", "IngestTS")
}

func ptr(s string) *string { return &s }

func TestProjectionMap(t *testing.T) {
	p := testProjection()

	if got := p.Table(); got != "public.sources" {
		t.Errorf("Table() = %q", got)
	}
	if got := p.From(); got != "public.sources s" {
		t.Errorf("From() = %q", got)
	}
	if got := p.Columns(); got != "s.source_hash, s.source_url, s.ingest_ts" {
		t.Errorf("Columns() = %q", got)
	}
	if got := p.Column("SourceURL"); got != "s.source_url" {
		t.Errorf("Column(SourceURL) = %q", got)
	}
	if got := p.Column("unknown"); got != "unknown" {
		t.Errorf("unmapped column should pass through, got %q", got)
	}
}

func TestParseSortFields(t *testing.T) {
	tests := []struct {
		input string
		want  []query.SortField
	}{
		{"", nil},
		{"SourceURL", []query.SortField{{Field: "SourceURL"}}},
		{"-IngestTS,SourceURL", []query.SortField{
			{Field: "IngestTS", Descending: true},
			{Field: "SourceURL"},
		}},
		{" , -IngestTS ", []query.SortField{{Field: "IngestTS", Descending: true}}},
	}

	for _, tt := range tests {
		got := query.ParseSortFields(tt.input)
		if len(got) != len(tt.want) {
			t.Fatalf("ParseSortFields(%q) = %v, want %v", tt.input, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseSortFields(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestBuilderBuildPage(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "IngestTS", Descending: true})
	sql, args, err := b.BuildPage(2, 10)
	if err != nil {
		t.Fatalf("BuildPage: %v", err)
	}

	want := "SELECT s.source_hash, s.source_url, s.ingest_ts FROM public.sources s ORDER BY s.ingest_ts DESC LIMIT 10 OFFSET 10"
	if sql != want {
		t.Errorf("BuildPage() sql = %q, want %q", sql, want)
	}
	if len(args) != 0 {
		t.Errorf("BuildPage() args = %v, want empty", args)
	}
}

func TestBuilderBuildSingle(t *testing.T) {
	sql, args, err := query.NewBuilder(testProjection()).BuildSingle("SourceHash", "abc")
	if err != nil {
		t.Fatalf("BuildSingle: %v", err)
	}

	want := "SELECT s.source_hash, s.source_url, s.ingest_ts FROM public.sources s WHERE s.source_hash = $1"
	if sql != want {
		t.Errorf("BuildSingle() sql = %q, want %q", sql, want)
	}
	if len(args) != 1 || args[0] != "abc" {
		t.Errorf("BuildSingle() args = %v", args)
	}
}

func TestBuilderConditionsNumbered(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	b := query.NewBuilder(testProjection())
	b.WhereContains("SourceURL", ptr("pubmed")).
		WhereEquals("SourceHash", "abc").
		WhereBetween("IngestTS", &from, &to)

	sql, args, err := b.BuildCount()
	if err != nil {
		t.Fatalf("BuildCount: %v", err)
	}

	want := "SELECT COUNT(*) FROM public.sources s WHERE s.source_url ILIKE $1 AND s.source_hash = $2 AND s.ingest_ts >= $3 AND s.ingest_ts < $4"
	if sql != want {
		t.Errorf("BuildCount() sql = %q, want %q", sql, want)
	}
	if len(args) != 4 || args[0] != "%pubmed%" || args[1] != "abc" {
		t.Errorf("BuildCount() args = %v", args)
	}
}

func TestBuilderSkipsEmptyFilters(t *testing.T) {
	var nilString *string
	b := query.NewBuilder(testProjection())
	b.WhereContains("SourceURL", nilString).
		WhereContains("SourceURL", ptr("")).
		WhereEquals("SourceHash", nilString).
		WhereBetween("IngestTS", nil, nil).
		WhereSearch(nil, "SourceURL")

	sql, args, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if sql != "SELECT s.source_hash, s.source_url, s.ingest_ts FROM public.sources s" {
		t.Errorf("Build() sql = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("Build() args = %v", args)
	}
}

func TestBuilderWhereSearch(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.WhereSearch(ptr("trial"), "SourceURL", "SourceHash")

	sql, args, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "SELECT s.source_hash, s.source_url, s.ingest_ts FROM public.sources s WHERE (s.source_url ILIKE $1 OR s.source_hash ILIKE $2)"
	if sql != want {
		t.Errorf("Build() sql = %q, want %q", sql, want)
	}
	if len(args) != 2 {
		t.Errorf("Build() args = %v", args)
	}
}

func TestBuilderOrderByOverridesDefault(t *testing.T) {
	b := query.NewBuilder(testProjection(), query.SortField{Field: "IngestTS", Descending: true})
	b.OrderByFields([]query.SortField{{Field: "SourceURL"}})

	sql, _, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "SELECT s.source_hash, s.source_url, s.ingest_ts FROM public.sources s ORDER BY s.source_url ASC"
	if sql != want {
		t.Errorf("Build() sql = %q, want %q", sql, want)
	}
}

func TestBuilderOrderByResolvesColumnsAndDropsUnknown(t *testing.T) {
	b := query.NewBuilder(testProjection())
	b.OrderByFields([]query.SortField{
		{Field: "ingest_ts", Descending: true},
		{Field: "1; DROP TABLE sources"},
	})

	sql, _, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "SELECT s.source_hash, s.source_url, s.ingest_ts FROM public.sources s ORDER BY s.ingest_ts DESC"
	if sql != want {
		t.Errorf("Build() sql = %q, want %q", sql, want)
	}
}
