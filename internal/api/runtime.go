package api

import (
	"github.com/JaimeStill/assay/internal/config"
	"github.com/JaimeStill/assay/internal/infrastructure"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/llm"
	"github.com/JaimeStill/assay/internal/submission"
	"github.com/JaimeStill/assay/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Queue      *jobs.Config
	LLM        *llm.Config
	Submission *submission.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Broker:    infra.Broker,
			Warehouse: infra.Warehouse,
		},
		Pagination: cfg.API.Pagination,
		Queue:      &cfg.Queue,
		LLM:        &cfg.LLM,
		Submission: &cfg.Submission,
	}
}
