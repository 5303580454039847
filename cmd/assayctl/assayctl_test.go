package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/submission"
	"github.com/JaimeStill/assay/internal/verdict"
	"github.com/JaimeStill/assay/pkg/handlers"
)

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abstract.txt")
	if err := os.WriteFile(path, []byte("fulvestrant plus palbociclib"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		stdin    string
		file     string
		text     string
		url      string
		date     string
		wantText string
		wantErr  bool
	}{
		{name: "inline text", text: "hello", wantText: "hello"},
		{name: "file", file: path, wantText: "fulvestrant plus palbociclib"},
		{name: "stdin", file: "-", stdin: "piped", wantText: "piped"},
		{name: "url only", url: "https://example.org/a"},
		{name: "date only form", text: "x", date: "2025-03-14", wantText: "x"},
		{name: "nothing", wantErr: true},
		{name: "missing file", file: filepath.Join(dir, "nope"), wantErr: true},
		{name: "bad date", text: "x", date: "March", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := buildRequest(strings.NewReader(tt.stdin), tt.file, tt.text, tt.url, tt.date, true)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Text != tt.wantText {
				t.Errorf("text: got %q, want %q", req.Text, tt.wantText)
			}
			if !req.ForceRecheck {
				t.Error("force flag not carried")
			}
			if tt.url != "" && (req.SourceURL == nil || *req.SourceURL != tt.url) {
				t.Errorf("source url: got %v", req.SourceURL)
			}
			if tt.date != "" && (req.SourceDate == nil || req.SourceDate.Day() != 14) {
				t.Errorf("source date: got %v", req.SourceDate)
			}
		})
	}
}

func finishedJob(id string) jobs.Job {
	now := time.Now().UTC()
	j := jobs.Job{ID: id, Status: jobs.StatusFinished, EndedAt: &now, Attempts: 1}
	j.CriterionID = "serd"
	j.CriterionVersion = 1
	j.Result = &verdict.Verdict{IsMatch: true, Confidence: 0.9, Summary: "names fulvestrant"}
	return j
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "criterion registry unavailable"})
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, srv.Client()).Submit(context.Background(), submission.Request{Text: "x"})

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable {
		t.Errorf("status: got %d", apiErr.Status)
	}
	if apiErr.Message != "criterion registry unavailable" {
		t.Errorf("message: got %q", apiErr.Message)
	}
}

func TestClientWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timeout"); got != "2s" {
			t.Errorf("timeout param: got %q", got)
		}
		if strings.Contains(r.URL.Path, "/slow/") {
			handlers.RespondJSON(w, http.StatusAccepted, jobs.Job{ID: "slow", Status: jobs.StatusRunning})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, finishedJob("done"))
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", srv.Client())

	j, err := c.Wait(context.Background(), "done", 2*time.Second)
	if err != nil {
		t.Fatalf("wait done: %v", err)
	}
	if j.Status != jobs.StatusFinished || j.Result == nil {
		t.Errorf("job: %+v", j)
	}

	j, err = c.Wait(context.Background(), "slow", 2*time.Second)
	if !errors.Is(err, errPending) {
		t.Fatalf("expected errPending, got %v", err)
	}
	if j.Status != jobs.StatusRunning {
		t.Errorf("pending job should carry latest state: %+v", j)
	}
}

func TestSubmitCommandWaits(t *testing.T) {
	var waits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /submissions", func(w http.ResponseWriter, r *http.Request) {
		var req submission.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Text != "fulvestrant" || !req.ForceRecheck {
			t.Errorf("request: %+v", req)
		}
		handlers.RespondJSON(w, http.StatusAccepted, submission.Handle{
			SourceHash:   strings.Repeat("a", 64),
			Created:      true,
			ForceRecheck: true,
			Assignments: []submission.Assignment{
				{CriterionID: "serd", CriterionVersion: 1, TaskID: "t1", Status: jobs.StatusQueued},
				{CriterionID: "surgery", CriterionVersion: 2, TaskID: "t2", Status: jobs.StatusFinished, Reused: true,
					Result: &verdict.Verdict{Confidence: 0.8}},
			},
		})
	})
	mux.HandleFunc("GET /jobs/{id}/wait", func(w http.ResponseWriter, r *http.Request) {
		waits.Add(1)
		handlers.RespondJSON(w, http.StatusOK, finishedJob(r.PathValue("id")))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--server", srv.URL, "--json", "submit", "--text", "fulvestrant", "--force", "--wait", "5s"})
	t.Cleanup(func() { jsonOutput = false })

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if waits.Load() != 1 {
		t.Errorf("waits: got %d, want 1 (reused assignment needs no wait)", waits.Load())
	}

	var h submission.Handle
	if err := json.Unmarshal(out.Bytes(), &h); err != nil {
		t.Fatalf("decode output: %v: %s", err, out.String())
	}
	if h.Assignments[0].Status != jobs.StatusFinished || h.Assignments[0].Result == nil {
		t.Errorf("waited assignment not folded in: %+v", h.Assignments[0])
	}
	if !h.Assignments[1].Reused {
		t.Error("reused assignment lost its flag")
	}
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/t9" {
			handlers.RespondJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
			return
		}
		handlers.RespondJSON(w, http.StatusOK, finishedJob("t9"))
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--server", srv.URL, "status", "t9"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"t9", "serd@1", "finished", "match (0.90)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--server", srv.URL, "status", "missing"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestStatsDailyCommand(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/daily" {
			handlers.RespondJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		gotQuery = r.URL.RawQuery
		handlers.RespondJSON(w, http.StatusOK, []events.DailyStats{
			{Day: "2026-03-02", Total: 4, Matches: 1, MatchRate: 0.25, AvgConfidence: 0.8, AvgLatencyMS: 1200},
		})
	}))
	defer srv.Close()

	tests := []struct {
		name      string
		args      []string
		wantQuery string
	}{
		{"default window", []string{"stats", "--daily"}, "days=7"},
		{"explicit window", []string{"stats", "--daily", "--days", "3"}, "days=3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			root := newRootCmd()
			root.SetOut(&out)
			root.SetArgs(append([]string{"--server", srv.URL}, tt.args...))

			if err := root.Execute(); err != nil {
				t.Fatalf("execute: %v", err)
			}
			if gotQuery != tt.wantQuery {
				t.Errorf("query = %q, want %q", gotQuery, tt.wantQuery)
			}
			for _, want := range []string{"DAY", "2026-03-02", "25.0%"} {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output missing %q:\n%s", want, out.String())
				}
			}
		})
	}
}
