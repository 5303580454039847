package events

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidWindow = errors.New("days must be between 1 and 365")
	ErrInvalidLimit  = errors.New("limit must be between 1 and 500")
)

// MapHTTPStatus maps event query errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrInvalidWindow) || errors.Is(err, ErrInvalidLimit) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
