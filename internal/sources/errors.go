package sources

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/assay/pkg/storage"
)

// Domain errors for source operations.
var (
	ErrNotFound        = errors.New("source not found")
	ErrTextUnavailable = errors.New("archived source text unavailable")
	ErrEmptyText       = errors.New("source text is empty")
)

// MapHTTPStatus maps source domain errors to HTTP status codes. Errors
// surfaced from the text archive fall through to storage.MapHTTPStatus.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrEmptyText) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrTextUnavailable) {
		return http.StatusNotFound
	}
	return storage.MapHTTPStatus(err)
}
