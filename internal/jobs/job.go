// Package jobs dispatches one analysis job per (source, criterion) pair and
// tracks it through queued, running, and a terminal state.
//
// A pair has at most one non-terminal job at a time; enqueueing a pair that
// is already in flight returns the existing task id. Terminal transitions are
// compare-and-set, so a job's result is written once and never changes.
package jobs

import (
	"time"

	"github.com/JaimeStill/assay/internal/verdict"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// Terminal reports whether s is finished or failed.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Reason classifies a failed job.
type Reason string

const (
	ReasonTransport         Reason = "transport"
	ReasonRejected          Reason = "rejected"
	ReasonParse             Reason = "parse"
	ReasonPersistence       Reason = "persistence"
	ReasonPanic             Reason = "panic"
	ReasonSourceUnavailable Reason = "source_unavailable"
	ReasonWorkerLost        Reason = "worker_lost"
	ReasonExpired           Reason = "expired"
)

// Repeatable reports whether evaluating the same input again would fail the
// same way. Only unparseable model output qualifies; every other reason is
// an infrastructure fault that a later attempt may not hit.
func (r Reason) Repeatable() bool {
	return r == ReasonParse
}

// Failure describes why a job failed. Raw keeps the model output when there
// was one; Verdict keeps a parsed result that could not be persisted.
type Failure struct {
	Reason  Reason           `json:"reason"`
	Message string           `json:"message"`
	Raw     string           `json:"raw_output,omitempty"`
	Verdict *verdict.Verdict `json:"verdict,omitempty"`
}

// Outcome is the tagged terminal result of a job: Verdict is set when Status
// is finished, Failure when Status is failed.
type Outcome struct {
	Status  Status           `json:"status"`
	Verdict *verdict.Verdict `json:"verdict,omitempty"`
	Failure *Failure         `json:"failure,omitempty"`
}

// Finished builds a successful outcome.
func Finished(v verdict.Verdict) Outcome {
	return Outcome{Status: StatusFinished, Verdict: &v}
}

// Failed builds a failed outcome.
func Failed(reason Reason, message string) Outcome {
	return Outcome{Status: StatusFailed, Failure: &Failure{Reason: reason, Message: message}}
}

// WithRaw attaches raw model output to a failed outcome.
func (o Outcome) WithRaw(raw string) Outcome {
	if o.Failure != nil {
		f := *o.Failure
		f.Raw = raw
		o.Failure = &f
	}
	return o
}

// Spec is what a job evaluates: one source against one criterion version.
type Spec struct {
	SourceHash       string   `json:"source_hash"`
	CriterionID      string   `json:"criterion_id"`
	CriterionVersion int      `json:"criterion_version"`
	CriterionText    string   `json:"criterion_text"`
	Threshold        *float64 `json:"threshold,omitempty"`
}

// Job is the dispatcher's record of one evaluation.
type Job struct {
	ID string `json:"task_id"`
	Spec
	Status     Status           `json:"status"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Attempts   int              `json:"attempts"`
	Result     *verdict.Verdict `json:"result,omitempty"`
	Error      *Failure         `json:"error,omitempty"`
}

// Outcome returns the job's terminal outcome, or false if it is not terminal.
func (j Job) Outcome() (Outcome, bool) {
	if !j.Status.Terminal() {
		return Outcome{}, false
	}
	return Outcome{Status: j.Status, Verdict: j.Result, Failure: j.Error}, true
}

func (j *Job) apply(o Outcome, at time.Time) {
	j.Status = o.Status
	j.Result = o.Verdict
	j.Error = o.Failure
	j.EndedAt = &at
}

// QueueInfo summarizes queue depth and live workers.
type QueueInfo struct {
	Queued  int64 `json:"queued"`
	Running int64 `json:"running"`
	Workers int64 `json:"workers"`
}
