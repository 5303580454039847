// Package verdict turns raw model output into a validated Verdict.
//
// The model is asked to answer with a JSON object between <verdict> and
// </verdict> markers. Parse also accepts a fenced ```json block or the first
// balanced JSON object, so commentary before or after the answer is ignored.
// Anything that does not yield a well-formed verdict is a *ParseError carrying
// the raw text and a reason code; a failed parse is never reported as a
// low-confidence match.
package verdict

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/JaimeStill/assay/pkg/formatting"
)

// Marker is the tag that delimits the structured answer in model output.
const Marker = "verdict"

// MaxSummaryRunes bounds the stored rationale.
const MaxSummaryRunes = 2000

// Verdict is the structured outcome of one (source, criterion) evaluation.
type Verdict struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
	ModelName  string  `json:"model_name"`
	LatencyMS  int64   `json:"latency_ms"`
}

// ApplyThreshold demotes a match whose confidence falls below threshold.
// It reports whether the verdict changed.
func (v *Verdict) ApplyThreshold(threshold *float64) bool {
	if threshold == nil || !v.IsMatch || v.Confidence >= *threshold {
		return false
	}
	v.IsMatch = false
	return true
}

// Parse extracts and validates a verdict from raw model output. ModelName and
// LatencyMS are left for the caller to fill in. The returned error is always
// a *ParseError.
func Parse(raw string) (Verdict, error) {
	if strings.TrimSpace(raw) == "" {
		return Verdict{}, newParseError(ReasonEmptyOutput, raw, "model returned no text")
	}

	block, ok := extract(raw)
	if !ok {
		return Verdict{}, newParseError(ReasonNoStructuredBlock, raw, "no verdict block or JSON object found")
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		return Verdict{}, newParseError(ReasonInvalidJSON, raw, err.Error())
	}

	isMatch, err := matchField(fields, raw)
	if err != nil {
		return Verdict{}, err
	}

	confidence, err := confidenceField(fields, raw)
	if err != nil {
		return Verdict{}, err
	}

	summary, err := summaryField(fields, raw)
	if err != nil {
		return Verdict{}, err
	}

	return Verdict{
		IsMatch:    isMatch,
		Confidence: confidence,
		Summary:    summary,
	}, nil
}

func extract(raw string) (string, bool) {
	if block, ok := formatting.ExtractTagged(raw, Marker); ok {
		if obj, ok := formatting.ExtractObject(block); ok {
			return obj, true
		}
		return block, true
	}
	if block, ok := formatting.ExtractFenced(raw); ok {
		if obj, ok := formatting.ExtractObject(block); ok {
			return obj, true
		}
	}
	return formatting.ExtractObject(raw)
}

func matchField(fields map[string]json.RawMessage, raw string) (bool, error) {
	value, ok := fields["is_match"]
	if !ok || isNull(value) {
		return false, newParseError(ReasonMissingField, raw, "is_match is required")
	}

	var b bool
	if err := json.Unmarshal(value, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}

	return false, newParseError(ReasonInvalidField, raw, "is_match must be a boolean, got "+string(value))
}

func confidenceField(fields map[string]json.RawMessage, raw string) (float64, error) {
	value, ok := fields["confidence"]
	if !ok || isNull(value) {
		return 0, newParseError(ReasonMissingField, raw, "confidence is required")
	}

	var f float64
	if err := json.Unmarshal(value, &f); err != nil {
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return 0, newParseError(ReasonConfidenceNotNumeric, raw, "confidence is not numeric: "+string(value))
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, newParseError(ReasonConfidenceNotNumeric, raw, "confidence is not numeric: "+s)
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, newParseError(ReasonConfidenceNotNumeric, raw, "confidence is not finite")
	}
	if f < 0 || f > 1 {
		return 0, newParseError(ReasonConfidenceOutOfRange, raw, "confidence "+strconv.FormatFloat(f, 'g', -1, 64)+" outside [0,1]")
	}

	return f, nil
}

func summaryField(fields map[string]json.RawMessage, raw string) (string, error) {
	value, ok := fields["summary"]
	if !ok || isNull(value) {
		return "", newParseError(ReasonMissingField, raw, "summary is required")
	}

	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", newParseError(ReasonInvalidField, raw, "summary must be a string")
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", newParseError(ReasonMissingField, raw, "summary is empty")
	}

	return formatting.TruncateRunes(s, MaxSummaryRunes), nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
