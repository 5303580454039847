package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JaimeStill/assay/pkg/handlers"
	"github.com/JaimeStill/assay/pkg/routes"
)

const defaultWait = 30 * time.Second

// Handler provides HTTP endpoints for job status.
type Handler struct {
	sys     System
	logger  *slog.Logger
	maxWait time.Duration
}

// NewHandler creates a Handler. maxWait caps the wait endpoint's timeout.
func NewHandler(sys System, logger *slog.Logger, maxWait time.Duration) *Handler {
	return &Handler{
		sys:     sys,
		logger:  logger.With("handler", "jobs"),
		maxWait: maxWait,
	}
}

// Routes returns the route group definition for job endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/jobs",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/queue", Handler: h.Queue},
			{Method: "GET", Pattern: "/{id}", Handler: h.Status},
			{Method: "GET", Pattern: "/{id}/wait", Handler: h.Wait},
		},
	}
}

// Status returns the current state of a job.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.sys.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, job)
}

// Wait blocks until the job is terminal or the timeout query parameter
// elapses. A timeout answers 202 with the job's latest state.
func (h *Handler) Wait(w http.ResponseWriter, r *http.Request) {
	timeout := defaultWait
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid timeout %q", v))
			return
		}
		timeout = d
	}
	if h.maxWait > 0 && timeout > h.maxWait {
		timeout = h.maxWait
	}

	job, err := h.sys.WaitFor(r.Context(), r.PathValue("id"), timeout)
	switch {
	case err == nil:
		handlers.RespondJSON(w, http.StatusOK, job)
	case errors.Is(err, ErrWaitTimeout):
		handlers.RespondJSON(w, http.StatusAccepted, job)
	default:
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
	}
}

// Queue returns queue depth and live worker count.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	info, err := h.sys.Info(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, info)
}
