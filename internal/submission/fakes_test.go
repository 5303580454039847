package submission_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/assay/internal/analyses"
	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/sources"
	"github.com/JaimeStill/assay/internal/submission"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type memorySources struct {
	mu      sync.Mutex
	rows    map[string]*sources.Source
	texts   map[string]string
	upserts int
}

func newMemorySources() *memorySources {
	return &memorySources{
		rows:  make(map[string]*sources.Source),
		texts: make(map[string]string),
	}
}

func (m *memorySources) Upsert(_ context.Context, cmd sources.UpsertCommand) (*sources.Source, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++

	hash := cmd.Fingerprint.Hash
	m.texts[hash] = cmd.Fingerprint.Normalized

	if src, ok := m.rows[hash]; ok {
		src.ForceRecheck = cmd.ForceRecheck
		src.UpdatedAt = time.Now()
		if cmd.SourceURL != nil {
			src.SourceURL = cmd.SourceURL
		}
		cp := *src
		return &cp, false, nil
	}

	now := time.Now()
	src := &sources.Source{
		ID:           uuid.New(),
		SourceHash:   hash,
		SourceURL:    cmd.SourceURL,
		SourceDate:   cmd.SourceDate,
		IngestTS:     now,
		ForceRecheck: cmd.ForceRecheck,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.rows[hash] = src
	cp := *src
	return &cp, true, nil
}

func (m *memorySources) Find(_ context.Context, hash string) (*sources.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.rows[hash]
	if !ok {
		return nil, sources.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (m *memorySources) Text(_ context.Context, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.texts[hash]
	if !ok {
		return "", sources.ErrTextUnavailable
	}
	return text, nil
}

type staticRegistry struct {
	criteria []criteria.Criterion
	err      error
}

func (r *staticRegistry) Active(context.Context) (criteria.Snapshot, error) {
	if r.err != nil {
		return criteria.Snapshot{}, r.err
	}
	return criteria.Snapshot{Criteria: r.criteria, TakenAt: time.Now()}, nil
}

// memoryAnalyses is an insert-once analyses store.
type memoryAnalyses struct {
	mu   sync.Mutex
	rows map[string]analyses.Analysis
}

func newMemoryAnalyses() *memoryAnalyses {
	return &memoryAnalyses{rows: make(map[string]analyses.Analysis)}
}

func (m *memoryAnalyses) put(a analyses.Analysis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.TaskID] = a
}

func (m *memoryAnalyses) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memoryAnalyses) Record(_ context.Context, j jobs.Job, o jobs.Outcome) (*analyses.Analysis, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.rows[j.ID]; ok {
		return &a, false, nil
	}

	a := analyses.Analysis{
		TaskID:           j.ID,
		SourceHash:       j.SourceHash,
		CriterionID:      j.CriterionID,
		CriterionVersion: j.CriterionVersion,
		CriterionText:    j.CriterionText,
		Status:           o.Status,
		Attempts:         j.Attempts,
		EnqueuedAt:       j.EnqueuedAt,
		StartedAt:        j.StartedAt,
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
	return &a, true, nil
}

func (m *memoryAnalyses) MarkEvent(_ context.Context, taskID string, u analyses.EventUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.rows[taskID]
	state := u.State
	a.EventState = &state
	a.EventAttempts++
	m.rows[taskID] = a
	return nil
}

func (m *memoryAnalyses) Replay(context.Context, analyses.ReplayQuery, func(context.Context, analyses.Analysis) error) (analyses.ReplayResult, error) {
	return analyses.ReplayResult{}, nil
}

func (m *memoryAnalyses) Latest(_ context.Context, hash string) ([]analyses.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := make(map[string]analyses.Analysis)
	for _, a := range m.rows {
		if a.SourceHash != hash {
			continue
		}
		key := fmt.Sprintf("%s@%d", a.CriterionID, a.CriterionVersion)
		if cur, ok := latest[key]; !ok || a.CompletedAt.After(cur.CompletedAt) {
			latest[key] = a
		}
	}

	out := make([]analyses.Analysis, 0, len(latest))
	for _, a := range latest {
		out = append(out, a)
	}
	return out, nil
}

type memoryEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *memoryEvents) Append(_ context.Context, evs ...events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evs...)
	return nil
}

func (m *memoryEvents) all() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.events...)
}

type fakeFetcher struct {
	fetchFn func(ctx context.Context, url string) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.fetchFn(ctx, url)
}

func newQueue(t *testing.T) jobs.System {
	t.Helper()
	cfg := &jobs.Config{Backend: jobs.BackendMemory, PollInterval: "5ms"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("jobs Finalize: %v", err)
	}
	return jobs.New(jobs.NewMemoryBackend(), nil, cfg, discard())
}

func submissionConfig(t *testing.T) *submission.Config {
	t.Helper()
	cfg := &submission.Config{MaxTextSize: "1KB"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("submission Finalize: %v", err)
	}
	return cfg
}

var (
	serd    = criteria.Criterion{ID: "serd", Text: "Mentions a selective estrogen receptor degrader", Version: 1, IsActive: true}
	surgery = criteria.Criterion{ID: "surgery", Text: "Describes a surgical procedure", Version: 1, IsActive: true}
)
