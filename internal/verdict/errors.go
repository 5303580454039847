package verdict

import "fmt"

// Reason classifies why model output could not be parsed.
type Reason string

const (
	ReasonEmptyOutput          Reason = "empty_output"
	ReasonNoStructuredBlock    Reason = "no_structured_block"
	ReasonInvalidJSON          Reason = "invalid_json"
	ReasonMissingField         Reason = "missing_field"
	ReasonInvalidField         Reason = "invalid_field"
	ReasonConfidenceNotNumeric Reason = "confidence_not_numeric"
	ReasonConfidenceOutOfRange Reason = "confidence_out_of_range"
)

// ParseError is returned when model output does not contain a valid verdict.
// Raw holds the unmodified output for manual triage.
type ParseError struct {
	Reason Reason
	Detail string
	Raw    string
}

func newParseError(reason Reason, raw, detail string) *ParseError {
	return &ParseError{Reason: reason, Detail: detail, Raw: raw}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse verdict: %s: %s", e.Reason, e.Detail)
}
