package jobs

import (
	"errors"
	"net/http"
)

// Domain errors for job operations.
var (
	ErrNotFound     = errors.New("job not found")
	ErrWaitTimeout  = errors.New("timed out waiting for job")
	ErrInvalidState = errors.New("outcome must be finished with a verdict or failed with a failure")
)

// MapHTTPStatus maps job domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrWaitTimeout) {
		return http.StatusAccepted
	}
	if errors.Is(err, ErrInvalidState) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
