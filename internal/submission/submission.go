// Package submission is the entry point of the pipeline. It fingerprints
// incoming text, records the source, and decides per active criterion
// whether a prior analysis can be reused or a job must be dispatched.
package submission

import (
	"time"

	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/verdict"
)

// Request is one submission. Text may be empty when SourceURL is set, in
// which case the page text is fetched.
type Request struct {
	Text         string     `json:"text" validate:"required_without=SourceURL"`
	SourceURL    *string    `json:"source_url,omitempty" validate:"omitempty,url"`
	SourceDate   *time.Time `json:"source_date,omitempty"`
	ForceRecheck bool       `json:"force_recheck"`
}

// Assignment ties one active criterion to the job that answers it.
type Assignment struct {
	CriterionID      string           `json:"criterion_id"`
	CriterionVersion int              `json:"criterion_version"`
	TaskID           string           `json:"task_id"`
	Status           jobs.Status      `json:"status"`
	Reused           bool             `json:"reused"`
	Result           *verdict.Verdict `json:"result,omitempty"`
	Error            *jobs.Failure    `json:"error,omitempty"`
}

// Handle is the caller's view of a submission.
type Handle struct {
	SourceHash   string       `json:"source_hash"`
	Created      bool         `json:"created"`
	ForceRecheck bool         `json:"force_recheck"`
	Assignments  []Assignment `json:"assignments"`
}

// Pending reports whether any assignment is still running or queued.
func (h Handle) Pending() bool {
	for _, a := range h.Assignments {
		if !a.Status.Terminal() {
			return true
		}
	}
	return false
}
