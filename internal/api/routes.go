package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/internal/health"
	"github.com/JaimeStill/assay/pkg/openapi"
	"github.com/JaimeStill/assay/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	checks := health.New(
		cfg.API.HealthTimeoutDuration(),
		runtime.Logger,
		domain.HealthChecks(runtime)...,
	)

	routes.Register(
		mux,
		domain.Submission.Handler().Routes(),
		domain.Jobs.Handler().Routes(),
		domain.Sources.Handler().Routes(),
		domain.Analyses.Handler().Routes(),
		domain.Criteria.Handler().Routes(),
		domain.Events.Handler().Routes(),
		checks.Routes(),
	)

	spec, err := openapi.MarshalJSON(NewSpec(cfg))
	if err != nil {
		return fmt.Errorf("marshal openapi spec: %w", err)
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	return nil
}
