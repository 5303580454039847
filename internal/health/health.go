// Package health probes the backing services of a running process. Every
// probe runs concurrently under one deadline so a hung dependency reports as
// down instead of stalling the endpoint.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/assay/pkg/handlers"
	"github.com/JaimeStill/assay/pkg/routes"
)

const (
	StatusUp       = "up"
	StatusDown     = "down"
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Probe reports nil when the dependency is reachable.
type Probe func(ctx context.Context) error

// Check names one dependency probe.
type Check struct {
	Name  string
	Probe Probe
}

// Component is the outcome of a single check.
type Component struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Report aggregates all component results.
type Report struct {
	Status     string      `json:"status"`
	Components []Component `json:"components"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// Healthy reports whether every component is up.
func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

// System runs the configured checks.
type System struct {
	checks  []Check
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a health system. A nil probe is skipped.
func New(timeout time.Duration, logger *slog.Logger, checks ...Check) *System {
	kept := make([]Check, 0, len(checks))
	for _, c := range checks {
		if c.Probe != nil {
			kept = append(kept, c)
		}
	}
	return &System{
		checks:  kept,
		timeout: timeout,
		logger:  logger.With("system", "health"),
	}
}

// Check runs every probe concurrently and collects the results ordered by name.
func (s *System) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu         sync.Mutex
		components = make([]Component, 0, len(s.checks))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.checks {
		g.Go(func() error {
			comp := run(gctx, c)
			if comp.Status == StatusDown {
				s.logger.Warn("health check failed", "component", c.Name, "error", comp.Error)
			}
			mu.Lock()
			components = append(components, comp)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(components, func(i, j int) bool {
		return components[i].Name < components[j].Name
	})

	report := Report{
		Status:     StatusHealthy,
		Components: components,
		CheckedAt:  time.Now().UTC(),
	}
	for _, c := range components {
		if c.Status == StatusDown {
			report.Status = StatusDegraded
			break
		}
	}
	return report
}

func run(ctx context.Context, c Check) Component {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c.Probe(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	comp := Component{
		Name:      c.Name,
		Status:    StatusUp,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		comp.Status = StatusDown
		comp.Error = err.Error()
	}
	return comp
}

// Routes returns the health route group.
func (s *System) Routes() routes.Group {
	return routes.Group{
		Prefix: "/health",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: s.handle},
		},
	}
}

func (s *System) handle(w http.ResponseWriter, r *http.Request) {
	report := s.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	handlers.RespondJSON(w, status, report)
}
