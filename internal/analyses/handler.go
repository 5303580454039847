package analyses

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/assay/pkg/handlers"
	"github.com/JaimeStill/assay/pkg/pagination"
	"github.com/JaimeStill/assay/pkg/routes"
)

// Handler provides HTTP endpoints for recorded analyses.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "analyses"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for analysis endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/analyses/{id}", Handler: h.Find},
		},
		Children: []routes.Group{
			{
				Prefix: "/sources/{hash}",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/analyses", Handler: h.ListBySource},
				},
			},
		},
	}
}

// Find returns the analysis recorded for a task.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	a, err := h.sys.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

// ListBySource returns a paginated list of analyses for one source.
func (h *Handler) ListBySource(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListBySource(r.Context(), r.PathValue("hash"), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
