package events

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

// createTable orders by criterion first so per-criterion stats scan a
// contiguous range.
const createTable = `
CREATE TABLE IF NOT EXISTS events (
    event_id          String,
    source_hash       FixedString(64),
    source_url        Nullable(String),
    source_date       Nullable(DateTime64(3, 'UTC')),
    ingest_ts         DateTime64(3, 'UTC'),
    criterion_id      LowCardinality(String),
    criterion_version UInt32,
    criterion_text    String,
    is_match          UInt8,
    confidence        Float64,
    summary           String,
    model_name        LowCardinality(String),
    latency_ms        Int64,
    created_at        DateTime64(3, 'UTC')
)
ENGINE = ReplacingMergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (criterion_id, created_at, event_id)`

const (
	table     = "events"
	readTable = table + " FINAL"

	// MaxDays bounds the stats window.
	MaxDays = 365
	// MaxLimit bounds recent and per-source listings.
	MaxLimit = 500
)

var eventColumns = []string{
	"event_id",
	"source_hash",
	"source_url",
	"source_date",
	"ingest_ts",
	"criterion_id",
	"criterion_version",
	"criterion_text",
	"is_match",
	"confidence",
	"summary",
	"model_name",
	"latency_ms",
	"created_at",
}

func statsQuery(since time.Time) (string, []any, error) {
	return sq.
		Select(
			"criterion_id",
			"any(criterion_text) AS criterion_text",
			"count() AS total",
			"countIf(is_match = 1) AS matches",
			"avg(confidence) AS avg_confidence",
			"avg(latency_ms) AS avg_latency_ms",
		).
		From(readTable).
		Where(sq.GtOrEq{"created_at": since}).
		GroupBy("criterion_id").
		OrderBy("criterion_id").
		ToSql()
}

// dailyQuery buckets by ingest day, newest first.
func dailyQuery(since time.Time) (string, []any, error) {
	return sq.
		Select(
			"toString(toDate(ingest_ts)) AS day",
			"count() AS total",
			"countIf(is_match = 1) AS matches",
			"avg(confidence) AS avg_confidence",
			"avg(latency_ms) AS avg_latency_ms",
		).
		From(readTable).
		Where(sq.GtOrEq{"ingest_ts": since}).
		GroupBy("day").
		OrderBy("day DESC").
		ToSql()
}

func recentQuery(limit int) (string, []any, error) {
	return sq.
		Select(eventColumns...).
		From(readTable).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
}

func sourceQuery(sourceHash string) (string, []any, error) {
	return sq.
		Select(eventColumns...).
		From(readTable).
		Where(sq.Eq{"source_hash": sourceHash}).
		OrderBy("created_at DESC").
		Limit(MaxLimit).
		ToSql()
}
