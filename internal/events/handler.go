package events

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/assay/pkg/handlers"
	"github.com/JaimeStill/assay/pkg/routes"
)

const (
	defaultDays      = 30
	defaultDailyDays = 7
	defaultLimit     = 50
)

// Handler provides HTTP endpoints for analytical queries.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "events"),
	}
}

// Routes returns the route group definition for event endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/events",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
			{Method: "GET", Pattern: "/daily", Handler: h.Daily},
			{Method: "GET", Pattern: "/recent", Handler: h.Recent},
			{Method: "GET", Pattern: "/sources/{hash}", Handler: h.BySource},
		},
	}
}

// Stats returns per-criterion aggregates over ?days (default 30).
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(r, "days", defaultDays)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidWindow)
		return
	}

	stats, err := h.sys.Stats(r.Context(), days)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

// Daily returns per-day aggregates over ?days (default 7).
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(r, "days", defaultDailyDays)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidWindow)
		return
	}

	stats, err := h.sys.Daily(r.Context(), days)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

// Recent returns the newest events, up to ?limit (default 50).
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", defaultLimit)
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidLimit)
		return
	}

	events, err := h.sys.Recent(r.Context(), limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, events)
}

// BySource returns the events recorded for one source.
func (h *Handler) BySource(w http.ResponseWriter, r *http.Request) {
	events, err := h.sys.BySource(r.Context(), r.PathValue("hash"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, events)
}

func intParam(r *http.Request, name string, fallback int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
