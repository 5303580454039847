package analyses

import (
	"errors"
	"net/http"
)

// Domain errors for analysis operations.
var (
	ErrNotFound    = errors.New("analysis not found")
	ErrNotTerminal = errors.New("analysis requires a terminal outcome")
	ErrNoVerdict   = errors.New("analysis has no verdict to project")
)

// MapHTTPStatus maps analysis domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrNotTerminal) || errors.Is(err, ErrNoVerdict) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
