package submission

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/extract"
)

var (
	ErrInvalidRequest = errors.New("invalid submission")
	ErrEmptyText      = errors.New("submission text is empty after normalization")
	ErrTextTooLarge   = errors.New("submission text exceeds size limit")
)

// MapHTTPStatus maps submission errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrEmptyText):
		return http.StatusBadRequest
	case errors.Is(err, ErrTextTooLarge), errors.Is(err, extract.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extract.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extract.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, criteria.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
