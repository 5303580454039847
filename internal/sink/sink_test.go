package sink_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/sink"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/internal/verdict"
)

// memoryAnalyses keeps insert-once semantics keyed by task id.
type memoryAnalyses struct {
	mu       sync.Mutex
	rows     map[string]*analyses.Analysis
	updates  map[string][]analyses.EventUpdate
	recordFn func(ctx context.Context, j jobs.Job, o jobs.Outcome) error
	calls    int
	replayFn func(ctx context.Context, q analyses.ReplayQuery, project func(context.Context, analyses.Analysis) error) (analyses.ReplayResult, error)
}

func newMemoryAnalyses() *memoryAnalyses {
	return &memoryAnalyses{
		rows:    make(map[string]*analyses.Analysis),
		updates: make(map[string][]analyses.EventUpdate),
	}
}

func (m *memoryAnalyses) Record(ctx context.Context, j jobs.Job, o jobs.Outcome) (*analyses.Analysis, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.recordFn != nil {
		if err := m.recordFn(ctx, j, o); err != nil {
			return nil, false, err
		}
	}

	if a, ok := m.rows[j.ID]; ok {
		cp := *a
		return &cp, false, nil
	}

	a := &analyses.Analysis{
		TaskID:           j.ID,
		SourceHash:       j.SourceHash,
		CriterionID:      j.CriterionID,
		CriterionVersion: j.CriterionVersion,
		CriterionText:    j.CriterionText,
		Status:           o.Status,
		CompletedAt:      time.Now(),
	}
	if v := o.Verdict; v != nil {
		a.IsMatch = &v.IsMatch
		a.Confidence = &v.Confidence
		a.Summary = &v.Summary
		a.ModelName = &v.ModelName
		a.LatencyMS = &v.LatencyMS
		pending := analyses.EventPending
		a.EventState = &pending
	}
	if f := o.Failure; f != nil {
		reason := string(f.Reason)
		a.FailureReason = &reason
		a.FailureMessage = &f.Message
	}
	m.rows[j.ID] = a

	cp := *a
	return &cp, true, nil
}

func (m *memoryAnalyses) MarkEvent(_ context.Context, taskID string, u analyses.EventUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates[taskID] = append(m.updates[taskID], u)
	return nil
}

func (m *memoryAnalyses) Replay(ctx context.Context, q analyses.ReplayQuery, project func(context.Context, analyses.Analysis) error) (analyses.ReplayResult, error) {
	return m.replayFn(ctx, q, project)
}

type fakeEvents struct {
	mu       sync.Mutex
	appended []events.Event
	err      error
}

func (f *fakeEvents) Append(_ context.Context, evs ...events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, evs...)
	return nil
}

type fakeSources struct{}

func (fakeSources) Find(_ context.Context, hash string) (*sources.Source, error) {
	url := "https://example.org/" + hash
	return &sources.Source{SourceHash: hash, SourceURL: &url, IngestTS: time.Now()}, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sinkConfig(t *testing.T) *sink.Config {
	t.Helper()
	cfg := &sink.Config{CommitDelay: "1ms"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

// runningJob enqueues and claims one job on an in-memory dispatcher.
func runningJob(t *testing.T) (jobs.System, jobs.Job) {
	t.Helper()
	cfg := &jobs.Config{Backend: jobs.BackendMemory}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("jobs Finalize: %v", err)
	}
	queue := jobs.New(jobs.NewMemoryBackend(), nil, cfg, discard())

	ctx := context.Background()
	c := criteria.Criterion{ID: "serd", Text: "Mentions a SERD", Version: 1}
	if _, _, err := queue.Enqueue(ctx, "abc", c); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	job, ok, err := queue.Next(ctx, "w1", 10*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("Next = %v, %v", ok, err)
	}
	return queue, job
}

var match = verdict.Verdict{IsMatch: true, Confidence: 0.9, Summary: "fulvestrant", ModelName: "llama3:8b", LatencyMS: 40}

func TestCommitFinished(t *testing.T) {
	queue, job := runningJob(t)
	store := newMemoryAnalyses()
	evs := &fakeEvents{}
	w := sink.NewWriter(store, queue, evs, fakeSources{}, sinkConfig(t), discard())

	got, err := w.Commit(context.Background(), job, jobs.Finished(match))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got.Status != jobs.StatusFinished || got.Verdict == nil || !got.Verdict.IsMatch {
		t.Fatalf("outcome = %+v", got)
	}

	stored, err := queue.Status(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if stored.Status != jobs.StatusFinished {
		t.Errorf("queue status = %s", stored.Status)
	}

	if len(evs.appended) != 1 {
		t.Fatalf("appended %d events, want 1", len(evs.appended))
	}
	ev := evs.appended[0]
	if ev.EventID != job.ID || ev.IsMatch != 1 || ev.SourceURL == nil {
		t.Errorf("event = %+v", ev)
	}

	updates := store.updates[job.ID]
	if len(updates) != 1 || updates[0].State != analyses.EventRecorded {
		t.Errorf("event updates = %+v", updates)
	}
}

func TestCommitAnalyticsFailureKeepsJobFinished(t *testing.T) {
	queue, job := runningJob(t)
	store := newMemoryAnalyses()
	evs := &fakeEvents{err: errors.New("clickhouse down")}
	w := sink.NewWriter(store, queue, evs, fakeSources{}, sinkConfig(t), discard())

	got, err := w.Commit(context.Background(), job, jobs.Finished(match))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got.Status != jobs.StatusFinished {
		t.Errorf("outcome status = %s, want finished", got.Status)
	}

	stored, _ := queue.Status(context.Background(), job.ID)
	if stored.Status != jobs.StatusFinished {
		t.Errorf("queue status = %s, want finished", stored.Status)
	}

	updates := store.updates[job.ID]
	if len(updates) != 1 {
		t.Fatalf("event updates = %+v", updates)
	}
	u := updates[0]
	if u.State != analyses.EventFailed || u.NextAt == nil || u.Error == nil {
		t.Errorf("update = %+v", u)
	}
}

func TestCommitPersistenceFailurePreservesVerdict(t *testing.T) {
	queue, job := runningJob(t)
	store := newMemoryAnalyses()
	store.recordFn = func(context.Context, jobs.Job, jobs.Outcome) error {
		return driver.ErrBadConn
	}
	evs := &fakeEvents{}
	cfg := sinkConfig(t)
	w := sink.NewWriter(store, queue, evs, fakeSources{}, cfg, discard())

	got, err := w.Commit(context.Background(), job, jobs.Finished(match))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if store.calls != cfg.CommitRetries+1 {
		t.Errorf("Record calls = %d, want %d", store.calls, cfg.CommitRetries+1)
	}
	if got.Status != jobs.StatusFailed || got.Failure == nil || got.Failure.Reason != jobs.ReasonPersistence {
		t.Fatalf("outcome = %+v", got)
	}
	if got.Failure.Verdict == nil || got.Failure.Verdict.Confidence != 0.9 {
		t.Errorf("verdict not preserved: %+v", got.Failure)
	}

	stored, _ := queue.Status(context.Background(), job.ID)
	if stored.Status != jobs.StatusFailed || stored.Error == nil || stored.Error.Verdict == nil {
		t.Errorf("queue job = %+v", stored)
	}
	if len(evs.appended) != 0 {
		t.Errorf("appended %d events for an uncommitted analysis", len(evs.appended))
	}
}

func TestCommitPermanentErrorIsNotRetried(t *testing.T) {
	queue, job := runningJob(t)
	store := newMemoryAnalyses()
	store.recordFn = func(context.Context, jobs.Job, jobs.Outcome) error {
		return errors.New("column does not exist")
	}
	w := sink.NewWriter(store, queue, &fakeEvents{}, fakeSources{}, sinkConfig(t), discard())

	got, err := w.Commit(context.Background(), job, jobs.Finished(match))
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if store.calls != 1 {
		t.Errorf("Record calls = %d, want 1", store.calls)
	}
	if got.Failure == nil || got.Failure.Reason != jobs.ReasonPersistence {
		t.Errorf("outcome = %+v", got)
	}
}

func TestCommitTwiceProjectsOnce(t *testing.T) {
	queue, job := runningJob(t)
	store := newMemoryAnalyses()
	evs := &fakeEvents{}
	w := sink.NewWriter(store, queue, evs, fakeSources{}, sinkConfig(t), discard())
	ctx := context.Background()

	if _, err := w.Commit(ctx, job, jobs.Finished(match)); err != nil {
		t.Fatalf("first Commit: %v", err)
	}

	late := jobs.Failed(jobs.ReasonWorkerLost, "lease expired")
	got, err := w.Commit(ctx, job, late)
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	if got.Status != jobs.StatusFinished || got.Verdict == nil {
		t.Errorf("second outcome = %+v, want the committed verdict", got)
	}
	if len(evs.appended) != 1 {
		t.Errorf("appended %d events, want 1", len(evs.appended))
	}

	stored, _ := queue.Status(ctx, job.ID)
	if stored.Status != jobs.StatusFinished {
		t.Errorf("queue status = %s", stored.Status)
	}
}

func TestCommitFailedOutcomeHasNoEvent(t *testing.T) {
	queue, job := runningJob(t)
	store := newMemoryAnalyses()
	evs := &fakeEvents{}
	w := sink.NewWriter(store, queue, evs, fakeSources{}, sinkConfig(t), discard())

	o := jobs.Failed(jobs.ReasonParse, "no structured block").WithRaw("maybe")
	got, err := w.Commit(context.Background(), job, o)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got.Status != jobs.StatusFailed || got.Failure.Reason != jobs.ReasonParse {
		t.Errorf("outcome = %+v", got)
	}
	if len(evs.appended) != 0 || len(store.updates) != 0 {
		t.Errorf("failed outcome was projected: events=%d updates=%d", len(evs.appended), len(store.updates))
	}
}

func TestReconcilerRun(t *testing.T) {
	store := newMemoryAnalyses()
	evs := &fakeEvents{}
	cfg := sinkConfig(t)

	confidence, isMatch := 0.7, false
	pending := analyses.Analysis{
		TaskID:     "t1",
		SourceHash: "abc",
		Status:     jobs.StatusFinished,
		IsMatch:    &isMatch,
		Confidence: &confidence,
	}

	var gotQuery analyses.ReplayQuery
	store.replayFn = func(ctx context.Context, q analyses.ReplayQuery, project func(context.Context, analyses.Analysis) error) (analyses.ReplayResult, error) {
		gotQuery = q
		if err := project(ctx, pending); err != nil {
			return analyses.ReplayResult{Failed: 1}, nil
		}
		return analyses.ReplayResult{Recorded: 1}, nil
	}

	r := sink.NewReconciler(store, evs, fakeSources{}, cfg, discard())
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Recorded != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(evs.appended) != 1 || evs.appended[0].IsMatch != 0 {
		t.Errorf("events = %+v", evs.appended)
	}

	if gotQuery.MaxAttempts != cfg.ReconcileMaxAttempts || gotQuery.Limit != cfg.ReconcileBatch {
		t.Errorf("query = %+v", gotQuery)
	}
	if gotQuery.Grace != 2*time.Minute {
		t.Errorf("grace = %v", gotQuery.Grace)
	}
	if d := gotQuery.Backoff(1); d != 30*time.Second {
		t.Errorf("first backoff = %v, want 30s", d)
	}
	if d := gotQuery.Backoff(20); d != 30*time.Minute {
		t.Errorf("capped backoff = %v, want 30m", d)
	}
}

func TestProjectRequiresVerdict(t *testing.T) {
	a := analyses.Analysis{TaskID: "t1", Status: jobs.StatusFailed}
	if _, err := sink.Project(a, &sources.Source{}); !errors.Is(err, analyses.ErrNoVerdict) {
		t.Errorf("Project err = %v, want ErrNoVerdict", err)
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_SINK_COMMIT_RETRIES", "5")

	cfg := &sink.Config{}
	if err := cfg.Finalize(&sink.Env{CommitRetries: "TEST_SINK_COMMIT_RETRIES"}); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if cfg.CommitRetries != 5 {
		t.Errorf("commit_retries = %d", cfg.CommitRetries)
	}
	if cfg.CommitRetry().BaseDelay != 250*time.Millisecond {
		t.Errorf("commit delay = %v", cfg.CommitRetry().BaseDelay)
	}

	bad := &sink.Config{ReconcileGrace: "soon"}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected error for invalid reconcile_grace")
	}
}
