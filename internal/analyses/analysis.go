// Package analyses is the transactional record of terminal jobs. A row is
// written once per task and is the commit point for a verdict; it also
// tracks whether the verdict has been projected to the analytical store.
package analyses

import (
	"time"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/verdict"
)

// EventState tracks the analytical projection of a finished analysis.
// Failed analyses have no projection and a nil state.
type EventState string

const (
	EventPending  EventState = "pending"
	EventRecorded EventState = "recorded"
	EventFailed   EventState = "failed"
)

// Analysis is one terminal job as stored in the analyses table.
type Analysis struct {
	TaskID           string      `json:"task_id"`
	SourceHash       string      `json:"source_hash"`
	CriterionID      string      `json:"criterion_id"`
	CriterionVersion int         `json:"criterion_version"`
	CriterionText    string      `json:"criterion_text"`
	Threshold        *float64    `json:"threshold,omitempty"`
	Status           jobs.Status `json:"status"`
	IsMatch          *bool       `json:"is_match,omitempty"`
	Confidence       *float64    `json:"confidence,omitempty"`
	Summary          *string     `json:"summary,omitempty"`
	ModelName        *string     `json:"model_name,omitempty"`
	LatencyMS        *int64      `json:"latency_ms,omitempty"`
	FailureReason    *string     `json:"failure_reason,omitempty"`
	FailureMessage   *string     `json:"failure_message,omitempty"`
	RawOutput        *string     `json:"raw_output,omitempty"`
	Attempts         int         `json:"attempts"`
	EnqueuedAt       time.Time   `json:"enqueued_at"`
	StartedAt        *time.Time  `json:"started_at,omitempty"`
	CompletedAt      time.Time   `json:"completed_at"`
	EventState       *EventState `json:"event_state,omitempty"`
	EventAttempts    int         `json:"event_attempts"`
	EventNextAt      *time.Time  `json:"event_next_attempt_at,omitempty"`
	EventError       *string     `json:"event_error,omitempty"`
}

// Verdict returns the stored verdict of a finished analysis.
func (a Analysis) Verdict() (verdict.Verdict, bool) {
	if a.Status != jobs.StatusFinished || a.IsMatch == nil || a.Confidence == nil {
		return verdict.Verdict{}, false
	}
	v := verdict.Verdict{IsMatch: *a.IsMatch, Confidence: *a.Confidence}
	if a.Summary != nil {
		v.Summary = *a.Summary
	}
	if a.ModelName != nil {
		v.ModelName = *a.ModelName
	}
	if a.LatencyMS != nil {
		v.LatencyMS = *a.LatencyMS
	}
	return v, true
}

// Reusable reports whether a resubmission may answer from this row instead of
// dispatching a new job: finished rows, and failures whose reason repeats for
// the same input.
func (a Analysis) Reusable() bool {
	switch a.Status {
	case jobs.StatusFinished:
		return true
	case jobs.StatusFailed:
		return a.FailureReason != nil && jobs.Reason(*a.FailureReason).Repeatable()
	}
	return false
}

// Outcome rebuilds the tagged outcome stored in the row.
func (a Analysis) Outcome() jobs.Outcome {
	if v, ok := a.Verdict(); ok {
		return jobs.Finished(v)
	}

	f := &jobs.Failure{}
	if a.FailureReason != nil {
		f.Reason = jobs.Reason(*a.FailureReason)
	}
	if a.FailureMessage != nil {
		f.Message = *a.FailureMessage
	}
	if a.RawOutput != nil {
		f.Raw = *a.RawOutput
	}
	return jobs.Outcome{Status: jobs.StatusFailed, Failure: f}
}

// Job rebuilds the dispatcher view of the analysis.
func (a Analysis) Job() jobs.Job {
	o := a.Outcome()
	completed := a.CompletedAt
	return jobs.Job{
		ID: a.TaskID,
		Spec: jobs.Spec{
			SourceHash:       a.SourceHash,
			CriterionID:      a.CriterionID,
			CriterionVersion: a.CriterionVersion,
			CriterionText:    a.CriterionText,
			Threshold:        a.Threshold,
		},
		Status:     o.Status,
		EnqueuedAt: a.EnqueuedAt,
		StartedAt:  a.StartedAt,
		EndedAt:    &completed,
		Attempts:   a.Attempts,
		Result:     o.Verdict,
		Error:      o.Failure,
	}
}

// EventUpdate is the result of one projection attempt.
type EventUpdate struct {
	State  EventState
	NextAt *time.Time
	Error  *string
}

// ReplayQuery selects analyses whose projection needs another attempt.
type ReplayQuery struct {
	// Grace is how long a pending row is left to its original writer.
	Grace       time.Duration
	MaxAttempts int
	Limit       int
	// Backoff returns the wait before the next attempt after n failures.
	Backoff func(n int) time.Duration
}

// ReplayResult counts the rows handled by one replay pass.
type ReplayResult struct {
	Recorded int `json:"recorded"`
	Failed   int `json:"failed"`
	GaveUp   int `json:"gave_up"`
}
