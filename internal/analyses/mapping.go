package analyses

import (
	"net/url"
	"strconv"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/pkg/query"
	"github.com/JaimeStill/assay/pkg/repository"
)

const columns = `task_id, source_hash, criterion_id, criterion_version, criterion_text, threshold,
	status, is_match, confidence, summary, model_name, latency_ms,
	failure_reason, failure_message, raw_output, attempts, enqueued_at, started_at, completed_at,
	event_state, event_attempts, event_next_attempt_at, event_error`

var projection = query.
	NewProjectionMap("public", "analyses", "a").
	Project("task_id", "TaskID").
	Project("source_hash", "SourceHash").
	Project("criterion_id", "CriterionID").
	Project("criterion_version", "CriterionVersion").
	Project("criterion_text", "CriterionText").
	Project("threshold", "Threshold").
	Project("status", "Status").
	Project("is_match", "IsMatch").
	Project("confidence", "Confidence").
	Project("summary", "Summary").
	Project("model_name", "ModelName").
	Project("latency_ms", "LatencyMS").
	Project("failure_reason", "FailureReason").
	Project("failure_message", "FailureMessage").
	Project("raw_output", "RawOutput").
	Project("attempts", "Attempts").
	Project("enqueued_at", "EnqueuedAt").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt").
	Project("event_state", "EventState").
	Project("event_attempts", "EventAttempts").
	Project("event_next_attempt_at", "EventNextAt").
	Project("event_error", "EventError")

var defaultSort = query.SortField{
	Field:      "CompletedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for analysis queries.
type Filters struct {
	CriterionID *string `json:"criterion_id,omitempty"`
	Status      *string `json:"status,omitempty"`
	IsMatch     *bool   `json:"is_match,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("CriterionID", f.CriterionID).
		WhereEquals("Status", f.Status).
		WhereEquals("IsMatch", f.IsMatch)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("criterion_id"); c != "" {
		f.CriterionID = &c
	}
	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if m := values.Get("is_match"); m != "" {
		if v, err := strconv.ParseBool(m); err == nil {
			f.IsMatch = &v
		}
	}

	return f
}

func scanAnalysis(s repository.Scanner) (Analysis, error) {
	var (
		a      Analysis
		status string
		state  *string
	)
	err := s.Scan(
		&a.TaskID,
		&a.SourceHash,
		&a.CriterionID,
		&a.CriterionVersion,
		&a.CriterionText,
		&a.Threshold,
		&status,
		&a.IsMatch,
		&a.Confidence,
		&a.Summary,
		&a.ModelName,
		&a.LatencyMS,
		&a.FailureReason,
		&a.FailureMessage,
		&a.RawOutput,
		&a.Attempts,
		&a.EnqueuedAt,
		&a.StartedAt,
		&a.CompletedAt,
		&state,
		&a.EventAttempts,
		&a.EventNextAt,
		&a.EventError,
	)
	a.Status = jobs.Status(status)
	if state != nil {
		es := EventState(*state)
		a.EventState = &es
	}
	return a, err
}

// insertArgs flattens a terminal outcome into the insert column order.
func insertArgs(j jobs.Job, o jobs.Outcome) []any {
	var (
		isMatch    *bool
		confidence *float64
		summary    *string
		model      *string
		latency    *int64
		reason     *string
		message    *string
		raw        *string
		state      *string
	)

	if v := o.Verdict; v != nil {
		isMatch = &v.IsMatch
		confidence = &v.Confidence
		summary = &v.Summary
		model = &v.ModelName
		latency = &v.LatencyMS
		pending := string(EventPending)
		state = &pending
	}

	if f := o.Failure; f != nil {
		r := string(f.Reason)
		reason = &r
		message = &f.Message
		if f.Raw != "" {
			raw = &f.Raw
		}
	}

	return []any{
		j.ID,
		j.SourceHash,
		j.CriterionID,
		j.CriterionVersion,
		j.CriterionText,
		j.Threshold,
		string(o.Status),
		isMatch,
		confidence,
		summary,
		model,
		latency,
		reason,
		message,
		raw,
		j.Attempts,
		j.EnqueuedAt,
		j.StartedAt,
		state,
	}
}
