package criteria

import (
	"errors"
	"net/http"
)

// Domain errors for criteria operations.
var (
	ErrNotFound            = errors.New("criterion not found")
	ErrRegistryUnavailable = errors.New("criterion registry unavailable")
	ErrInvalidSeed         = errors.New("invalid criteria seed")
)

// MapHTTPStatus maps criteria domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrRegistryUnavailable) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrInvalidSeed) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
