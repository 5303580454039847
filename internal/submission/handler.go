package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/assay/pkg/handlers"
	"github.com/JaimeStill/assay/pkg/routes"
)

// bodyOverhead allows for JSON framing and metadata around the text.
const bodyOverhead = 64 << 10

// Submitter accepts submissions.
type Submitter interface {
	Submit(ctx context.Context, req Request) (*Handle, error)
}

// Handler provides the HTTP endpoint for submissions.
type Handler struct {
	sys     Submitter
	logger  *slog.Logger
	maxBody int64
}

// NewHandler creates a Handler. Request bodies are bounded by maxText plus
// framing overhead.
func NewHandler(sys Submitter, logger *slog.Logger, maxText int64) *Handler {
	return &Handler{
		sys:     sys,
		logger:  logger.With("handler", "submissions"),
		maxBody: maxText + bodyOverhead,
	}
}

// Routes returns the route group definition for submission endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/submissions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit},
		},
	}
}

// Submit accepts a submission. It responds 202 while any assignment is
// pending and 200 when every assignment was already terminal.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req Request
	if err := handlers.DecodeJSON(r, h.maxBody+1, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrTextTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return
	}

	handle, err := h.sys.Submit(r.Context(), req)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if handle.Pending() {
		status = http.StatusAccepted
	}
	handlers.RespondJSON(w, status, handle)
}
