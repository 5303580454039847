// Package events is the append-only analytical log of verdicts in ClickHouse.
//
// Event ids are task ids and every sorting-key column is derived from the
// stored analysis, so the ReplacingMergeTree table collapses replayed appends.
// Reads use FINAL.
package events

import "time"

// Event is one verdict projected for analytics.
type Event struct {
	EventID          string     `ch:"event_id" json:"event_id"`
	SourceHash       string     `ch:"source_hash" json:"source_hash"`
	SourceURL        *string    `ch:"source_url" json:"source_url,omitempty"`
	SourceDate       *time.Time `ch:"source_date" json:"source_date,omitempty"`
	IngestTS         time.Time  `ch:"ingest_ts" json:"ingest_ts"`
	CriterionID      string     `ch:"criterion_id" json:"criterion_id"`
	CriterionVersion uint32     `ch:"criterion_version" json:"criterion_version"`
	CriterionText    string     `ch:"criterion_text" json:"criterion_text"`
	IsMatch          uint8      `ch:"is_match" json:"is_match"`
	Confidence       float64    `ch:"confidence" json:"confidence"`
	Summary          string     `ch:"summary" json:"summary"`
	ModelName        string     `ch:"model_name" json:"model_name"`
	LatencyMS        int64      `ch:"latency_ms" json:"latency_ms"`
	CreatedAt        time.Time  `ch:"created_at" json:"created_at"`
}

// Matched reports the stored match flag as a bool.
func (e Event) Matched() bool {
	return e.IsMatch == 1
}

// DailyStats aggregates all events ingested on one UTC day.
type DailyStats struct {
	Day           string  `json:"day"`
	Total         uint64  `json:"total"`
	Matches       uint64  `json:"matches"`
	MatchRate     float64 `json:"match_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
}

// CriterionStats aggregates events for one criterion over a window.
type CriterionStats struct {
	CriterionID   string  `json:"criterion_id"`
	CriterionText string  `json:"criterion_text"`
	Total         uint64  `json:"total"`
	Matches       uint64  `json:"matches"`
	MatchRate     float64 `json:"match_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
}
