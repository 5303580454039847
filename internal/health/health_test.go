package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JaimeStill/assay/internal/health"
	"github.com/JaimeStill/assay/pkg/routes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func up(context.Context) error { return nil }

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		checks []health.Check
		want   string
		down   []string
	}{
		{
			name: "all up",
			checks: []health.Check{
				{Name: "database", Probe: up},
				{Name: "queue", Probe: up},
			},
			want: health.StatusHealthy,
		},
		{
			name: "one down",
			checks: []health.Check{
				{Name: "database", Probe: up},
				{Name: "llm", Probe: func(context.Context) error { return errors.New("connection refused") }},
			},
			want: health.StatusDegraded,
			down: []string{"llm"},
		},
		{
			name: "hung probe times out",
			checks: []health.Check{
				{Name: "analytics", Probe: func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				}},
				{Name: "storage", Probe: func(context.Context) error {
					time.Sleep(200 * time.Millisecond)
					return nil
				}},
			},
			want: health.StatusDegraded,
			down: []string{"analytics", "storage"},
		},
		{
			name: "nil probe skipped",
			checks: []health.Check{
				{Name: "queue", Probe: nil},
				{Name: "database", Probe: up},
			},
			want: health.StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := health.New(50*time.Millisecond, discardLogger(), tt.checks...)
			report := sys.Check(context.Background())

			if report.Status != tt.want {
				t.Errorf("status: got %s, want %s", report.Status, tt.want)
			}

			var down []string
			for i, c := range report.Components {
				if i > 0 && report.Components[i-1].Name > c.Name {
					t.Errorf("components not sorted: %v", report.Components)
				}
				if c.Status == health.StatusDown {
					down = append(down, c.Name)
					if c.Error == "" {
						t.Errorf("%s down without error", c.Name)
					}
				}
			}
			if len(down) != len(tt.down) {
				t.Fatalf("down: got %v, want %v", down, tt.down)
			}
			for i := range down {
				if down[i] != tt.down[i] {
					t.Errorf("down[%d]: got %s, want %s", i, down[i], tt.down[i])
				}
			}
		})
	}
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		probe      health.Probe
		wantStatus int
	}{
		{"healthy", up, http.StatusOK},
		{"degraded", func(context.Context) error { return errors.New("down") }, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := health.New(time.Second, discardLogger(), health.Check{Name: "database", Probe: tt.probe})

			mux := http.NewServeMux()
			routes.Register(mux, sys.Routes())

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}

			var report health.Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(report.Components) != 1 || report.Components[0].Name != "database" {
				t.Errorf("components: %+v", report.Components)
			}
		})
	}
}
