package submission_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/fingerprint"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/internal/submission"
)

type gateFixture struct {
	gate     *submission.Gate
	sources  *memorySources
	registry *staticRegistry
	analyses *memoryAnalyses
	queue    jobs.System
	logs     *syncBuffer
}

func newGate(t *testing.T, fetcher submission.Fetcher) *gateFixture {
	t.Helper()
	f := &gateFixture{
		sources:  newMemorySources(),
		registry: &staticRegistry{criteria: []criteria.Criterion{serd, surgery}},
		analyses: newMemoryAnalyses(),
		queue:    newQueue(t),
		logs:     &syncBuffer{},
	}
	logger := slog.New(slog.NewTextHandler(f.logs, nil))
	f.gate = submission.New(f.sources, f.registry, f.analyses, f.queue, fetcher, submissionConfig(t), logger)
	return f
}

func ptr[T any](v T) *T { return &v }

func TestSubmitNewSourceEnqueuesEveryCriterion(t *testing.T) {
	f := newGate(t, nil)

	h, err := f.gate.Submit(context.Background(), submission.Request{Text: "Patient started on fulvestrant."})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if !h.Created || h.SourceHash != fingerprint.Compute("Patient started on fulvestrant.").Hash {
		t.Errorf("handle = %+v", h)
	}
	if len(h.Assignments) != 2 {
		t.Fatalf("assignments = %+v", h.Assignments)
	}
	for i, want := range []string{"serd", "surgery"} {
		a := h.Assignments[i]
		if a.CriterionID != want || a.Reused || a.Status != jobs.StatusQueued || a.TaskID == "" {
			t.Errorf("assignment %d = %+v", i, a)
		}
	}
	if !h.Pending() {
		t.Error("new submission should be pending")
	}

	info, _ := f.queue.Info(context.Background())
	if info.Queued != 2 {
		t.Errorf("queued = %d, want 2", info.Queued)
	}
}

func TestSubmitIdempotentWhitespace(t *testing.T) {
	f := newGate(t, nil)
	ctx := context.Background()

	first, err := f.gate.Submit(ctx, submission.Request{Text: "Patient  started\non fulvestrant."})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := f.gate.Submit(ctx, submission.Request{Text: "  Patient started on\tfulvestrant.  "})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if second.Created || second.SourceHash != first.SourceHash {
		t.Errorf("second handle = %+v", second)
	}
	if len(f.sources.rows) != 1 {
		t.Errorf("source rows = %d, want 1", len(f.sources.rows))
	}
	for i := range first.Assignments {
		if first.Assignments[i].TaskID != second.Assignments[i].TaskID {
			t.Errorf("criterion %s got a second job", first.Assignments[i].CriterionID)
		}
	}

	info, _ := f.queue.Info(ctx)
	if info.Queued != 2 {
		t.Errorf("queued = %d, want 2", info.Queued)
	}
}

func TestSubmitReusesTerminalAnalyses(t *testing.T) {
	f := newGate(t, nil)
	ctx := context.Background()
	text := "Patient started on fulvestrant."

	if _, err := f.gate.Submit(ctx, submission.Request{Text: text}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	hash := fingerprint.Compute(text).Hash

	f.analyses.put(analyses.Analysis{
		TaskID:           "done-serd",
		SourceHash:       hash,
		CriterionID:      "serd",
		CriterionVersion: 1,
		Status:           jobs.StatusFinished,
		IsMatch:          ptr(true),
		Confidence:       ptr(0.9),
		Summary:          ptr("SERD"),
		CompletedAt:      time.Now(),
	})
	f.analyses.put(analyses.Analysis{
		TaskID:           "old-surgery",
		SourceHash:       hash,
		CriterionID:      "surgery",
		CriterionVersion: 0,
		Status:           jobs.StatusFinished,
		IsMatch:          ptr(false),
		Confidence:       ptr(0.8),
		CompletedAt:      time.Now(),
	})

	h, err := f.gate.Submit(ctx, submission.Request{Text: text})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	got := h.Assignments[0]
	if !got.Reused || got.TaskID != "done-serd" || got.Result == nil || !got.Result.IsMatch {
		t.Errorf("serd assignment = %+v", got)
	}

	got = h.Assignments[1]
	if got.Reused || got.TaskID == "old-surgery" {
		t.Errorf("surgery assignment reused an older criterion version: %+v", got)
	}
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	f := newGate(t, nil)
	ctx := context.Background()
	text := "Patient started on fulvestrant."
	fp := fingerprint.Compute(text)

	if _, _, err := f.sources.Upsert(ctx, sources.UpsertCommand{Fingerprint: fp}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	tests := []struct {
		reason jobs.Reason
		reuse  bool
	}{
		{jobs.ReasonParse, true},
		{jobs.ReasonTransport, false},
		{jobs.ReasonWorkerLost, false},
		{jobs.ReasonExpired, false},
		{jobs.ReasonPersistence, false},
		{jobs.ReasonSourceUnavailable, false},
		{jobs.ReasonPanic, false},
		{jobs.ReasonRejected, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			a := analyses.Analysis{
				TaskID:           "failed-" + string(tt.reason),
				SourceHash:       fp.Hash,
				CriterionID:      "serd",
				CriterionVersion: 1,
				Status:           jobs.StatusFailed,
				FailureReason:    ptr(string(tt.reason)),
				FailureMessage:   ptr("boom"),
				CompletedAt:      time.Now(),
			}
			if got := a.Reusable(); got != tt.reuse {
				t.Errorf("Reusable() = %v, want %v", got, tt.reuse)
			}
		})
	}

	f.analyses.put(analyses.Analysis{
		TaskID:           "failed-transport",
		SourceHash:       fp.Hash,
		CriterionID:      "serd",
		CriterionVersion: 1,
		Status:           jobs.StatusFailed,
		FailureReason:    ptr(string(jobs.ReasonTransport)),
		FailureMessage:   ptr("connection refused"),
		CompletedAt:      time.Now(),
	})
	f.analyses.put(analyses.Analysis{
		TaskID:           "failed-parse",
		SourceHash:       fp.Hash,
		CriterionID:      "surgery",
		CriterionVersion: 1,
		Status:           jobs.StatusFailed,
		FailureReason:    ptr(string(jobs.ReasonParse)),
		FailureMessage:   ptr("no verdict block"),
		CompletedAt:      time.Now(),
	})

	h, err := f.gate.Submit(ctx, submission.Request{Text: text})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got := h.Assignments[0]
	if got.Reused || got.TaskID == "failed-transport" || got.Status != jobs.StatusQueued {
		t.Errorf("serd assignment after transport failure = %+v", got)
	}

	got = h.Assignments[1]
	if !got.Reused || got.TaskID != "failed-parse" || got.Error == nil || got.Error.Reason != jobs.ReasonParse {
		t.Errorf("surgery assignment after parse failure = %+v", got)
	}

	info, _ := f.queue.Info(ctx)
	if info.Queued != 1 {
		t.Errorf("queued = %d, want 1", info.Queued)
	}
}

func TestSubmitForceRecheck(t *testing.T) {
	f := newGate(t, nil)
	ctx := context.Background()
	text := "Patient started on fulvestrant."

	first, err := f.gate.Submit(ctx, submission.Request{Text: text})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	for _, a := range first.Assignments {
		f.queue.Finish(ctx, a.TaskID, jobs.Failed(jobs.ReasonTransport, "down"))
		f.analyses.put(analyses.Analysis{
			TaskID:           a.TaskID,
			SourceHash:       first.SourceHash,
			CriterionID:      a.CriterionID,
			CriterionVersion: a.CriterionVersion,
			Status:           jobs.StatusFailed,
			FailureReason:    ptr(string(jobs.ReasonTransport)),
			CompletedAt:      time.Now(),
		})
	}

	reused, err := f.gate.Submit(ctx, submission.Request{Text: text})
	if err != nil {
		t.Fatalf("plain resubmit: %v", err)
	}
	for _, a := range reused.Assignments {
		if !a.Reused || a.Status != jobs.StatusFailed {
			t.Errorf("plain resubmit assignment = %+v, want reused failure", a)
		}
	}

	forced, err := f.gate.Submit(ctx, submission.Request{Text: text, ForceRecheck: true})
	if err != nil {
		t.Fatalf("forced Submit: %v", err)
	}
	if !forced.ForceRecheck || forced.Created {
		t.Errorf("forced handle = %+v", forced)
	}
	for i, a := range forced.Assignments {
		if a.Reused || a.TaskID == first.Assignments[i].TaskID || a.Status != jobs.StatusQueued {
			t.Errorf("forced assignment = %+v", a)
		}
	}

	if !strings.Contains(f.logs.String(), "forced recheck") {
		t.Error("forced recheck was not logged")
	}
	if !f.sources.rows[first.SourceHash].ForceRecheck {
		t.Error("source force_recheck flag not recorded")
	}
}

func TestSubmitRegistryUnavailable(t *testing.T) {
	f := newGate(t, nil)
	f.registry.err = criteria.ErrRegistryUnavailable

	_, err := f.gate.Submit(context.Background(), submission.Request{Text: "anything"})
	if !errors.Is(err, criteria.ErrRegistryUnavailable) {
		t.Fatalf("err = %v, want ErrRegistryUnavailable", err)
	}
	if submission.MapHTTPStatus(err) != 503 {
		t.Errorf("status = %d, want 503", submission.MapHTTPStatus(err))
	}
	if f.sources.upserts != 0 {
		t.Errorf("source upserts = %d, want 0", f.sources.upserts)
	}
	info, _ := f.queue.Info(context.Background())
	if info.Queued != 0 {
		t.Errorf("queued = %d, want 0", info.Queued)
	}
}

func TestSubmitNoActiveCriteria(t *testing.T) {
	f := newGate(t, nil)
	f.registry.criteria = nil

	h, err := f.gate.Submit(context.Background(), submission.Request{Text: "anything"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(h.Assignments) != 0 || h.Pending() {
		t.Errorf("handle = %+v", h)
	}
}

func TestSubmitFetchesURLOnlyRequests(t *testing.T) {
	var gotURL string
	f := newGate(t, &fakeFetcher{
		fetchFn: func(_ context.Context, url string) (string, error) {
			gotURL = url
			return "Fetched  page\ntext.", nil
		},
	})

	h, err := f.gate.Submit(context.Background(), submission.Request{SourceURL: ptr("https://example.org/case")})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotURL != "https://example.org/case" {
		t.Errorf("fetched %q", gotURL)
	}
	if h.SourceHash != fingerprint.Compute("Fetched page text.").Hash {
		t.Errorf("hash does not match fetched text")
	}
	if src := f.sources.rows[h.SourceHash]; src.SourceURL == nil || *src.SourceURL != "https://example.org/case" {
		t.Errorf("source url not stored: %+v", src)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newGate(t, nil)

	tests := []struct {
		name string
		req  submission.Request
		want error
	}{
		{"no text or url", submission.Request{}, submission.ErrInvalidRequest},
		{"bad url", submission.Request{Text: "x", SourceURL: ptr("not a url")}, submission.ErrInvalidRequest},
		{"url without fetcher", submission.Request{SourceURL: ptr("https://example.org")}, submission.ErrInvalidRequest},
		{"whitespace only", submission.Request{Text: " \n\t "}, submission.ErrEmptyText},
		{"too large", submission.Request{Text: strings.Repeat("a", 2048)}, submission.ErrTextTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.gate.Submit(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if f.sources.upserts != 0 {
		t.Errorf("invalid requests wrote %d sources", f.sources.upserts)
	}
}
