package storage

import (
	"errors"
	"net/http"
)

// Archive key and lookup errors. Callers see them wrapped with the key.
var (
	ErrNotFound   = errors.New("archived object not found")
	ErrEmptyKey   = errors.New("archive key is empty")
	ErrInvalidKey = errors.New("archive key contains a parent path segment")
)

// MapHTTPStatus maps archive errors to HTTP status codes. A malformed key
// comes from the caller; anything unrecognized is a backend failure.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
