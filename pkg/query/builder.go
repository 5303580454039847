package query

import (
	"reflect"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SortField is one ORDER BY term. Field is a view name or raw column
// resolved through the projection.
type SortField struct {
	Field      string
	Descending bool
}

// Builder accumulates filters and ordering over a projection and renders
// them as numbered-placeholder PostgreSQL statements.
type Builder struct {
	projection  *ProjectionMap
	conditions  []sq.Sqlizer
	orderBy     []SortField
	defaultSort []SortField
}

// NewBuilder creates a Builder for the given projection with optional default sort fields.
func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// ParseSortFields parses "name,-created_at" into sort fields. A leading "-"
// sorts descending. Empty input returns nil.
func ParseSortFields(s string) []SortField {
	if s == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Build renders a SELECT with the current conditions and ordering.
func (b *Builder) Build() (string, []any, error) {
	return b.selectAll().ToSql()
}

// BuildCount renders a COUNT(*) over the current conditions.
func (b *Builder) BuildCount() (string, []any, error) {
	return b.where(psql.Select("COUNT(*)").From(b.projection.From())).ToSql()
}

// BuildPage renders a SELECT limited to one 1-indexed page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any, error) {
	offset := max(page-1, 0) * pageSize
	return b.selectAll().
		Limit(uint64(pageSize)).
		Offset(uint64(offset)).
		ToSql()
}

// BuildSingle renders a SELECT of the record whose idField equals id.
// Builder conditions are ignored.
func (b *Builder) BuildSingle(idField string, id any) (string, []any, error) {
	return psql.
		Select(b.projection.ColumnList()...).
		From(b.projection.From()).
		Where(sq.Eq{b.projection.Column(idField): id}).
		ToSql()
}

// OrderByFields sets the sort order, overriding default sort fields.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.orderBy = fields
	return b
}

// WhereContains adds a case-insensitive substring match. No-op for nil or empty values.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.conditions = append(b.conditions, sq.ILike{b.projection.Column(field): "%" + *value + "%"})
	return b
}

// WhereEquals adds an equality condition. No-op for nil values.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.conditions = append(b.conditions, sq.Eq{b.projection.Column(field): value})
	return b
}

// WhereBetween bounds field to [from, to). Either bound may be nil.
func (b *Builder) WhereBetween(field string, from, to *time.Time) *Builder {
	col := b.projection.Column(field)
	if from != nil {
		b.conditions = append(b.conditions, sq.GtOrEq{col: *from})
	}
	if to != nil {
		b.conditions = append(b.conditions, sq.Lt{col: *to})
	}
	return b
}

// WhereSearch matches search as a substring of any of fields. No-op for nil or empty search.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	pattern := "%" + *search + "%"
	match := make(sq.Or, len(fields))
	for i, field := range fields {
		match[i] = sq.ILike{b.projection.Column(field): pattern}
	}

	b.conditions = append(b.conditions, match)
	return b
}

func (b *Builder) selectAll() sq.SelectBuilder {
	stmt := psql.Select(b.projection.ColumnList()...).From(b.projection.From())
	return b.where(stmt).OrderBy(b.orderClauses()...)
}

func (b *Builder) where(stmt sq.SelectBuilder) sq.SelectBuilder {
	for _, c := range b.conditions {
		stmt = stmt.Where(c)
	}
	return stmt
}

// orderClauses drops fields the projection cannot resolve so client sort
// input never reaches the statement verbatim.
func (b *Builder) orderClauses() []string {
	fields := b.orderBy
	if len(fields) == 0 {
		fields = b.defaultSort
	}

	clauses := make([]string, 0, len(fields))
	for _, f := range fields {
		col, ok := b.projection.Resolve(f.Field)
		if !ok {
			continue
		}
		if f.Descending {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	return clauses
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
