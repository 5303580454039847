package api

import (
	"context"
	"net/http"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/extract"
	"github.com/JaimeStill/assay/internal/health"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/llm"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/internal/submission"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Sources    sources.System
	Criteria   criteria.System
	Analyses   analyses.System
	Jobs       jobs.System
	Events     events.System
	Submission *submission.Gate
	LLM        llm.Client
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	sourcesSystem := sources.New(db, runtime.Storage, runtime.Logger, runtime.Pagination)
	criteriaSystem := criteria.New(db, runtime.Logger, runtime.Pagination)
	analysesSystem := analyses.New(db, runtime.Logger, runtime.Pagination)
	eventsSystem := events.New(runtime.Warehouse.Conn(), runtime.Logger)

	jobsSystem := jobs.New(
		runtime.QueueBackend(runtime.Queue),
		analysesSystem,
		runtime.Queue,
		runtime.Logger,
	)

	fetcher := extract.New(&http.Client{}, runtime.Submission.MaxFetchBytes())

	gate := submission.New(
		sourcesSystem,
		criteriaSystem,
		analysesSystem,
		jobsSystem,
		fetcher,
		runtime.Submission,
		runtime.Logger,
	)

	return &Domain{
		Sources:    sourcesSystem,
		Criteria:   criteriaSystem,
		Analyses:   analysesSystem,
		Jobs:       jobsSystem,
		Events:     eventsSystem,
		Submission: gate,
		LLM:        llm.New(runtime.LLM, nil, runtime.Logger),
	}
}

// HealthChecks returns the component probes reported by GET /health.
func (d *Domain) HealthChecks(runtime *Runtime) []health.Check {
	checks := []health.Check{
		{Name: "database", Probe: runtime.Database.Ping},
		{Name: "analytics", Probe: runtime.Warehouse.Ping},
		{Name: "llm", Probe: d.LLM.Health},
		{Name: "storage", Probe: runtime.Storage.Ping},
	}
	if runtime.Broker != nil {
		checks = append(checks, health.Check{Name: "queue", Probe: runtime.Broker.Ping})
	} else {
		checks = append(checks, health.Check{Name: "queue", Probe: func(ctx context.Context) error {
			_, err := d.Jobs.Info(ctx)
			return err
		}})
	}
	return checks
}
