package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/JaimeStill/assay/internal/criteria"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/verdict"
)

type fakeArchive struct {
	jobFn func(ctx context.Context, id string) (jobs.Job, error)
}

func (f *fakeArchive) Job(ctx context.Context, id string) (jobs.Job, error) {
	return f.jobFn(ctx, id)
}

func testConfig(t *testing.T) *jobs.Config {
	t.Helper()
	cfg := &jobs.Config{Backend: jobs.BackendMemory, PollInterval: "5ms", MaxWait: "2s"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return cfg
}

func newDispatcher(t *testing.T, archive jobs.Archive) (jobs.System, jobs.Backend) {
	t.Helper()
	backend := jobs.NewMemoryBackend()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return jobs.New(backend, archive, testConfig(t), logger), backend
}

var serd = criteria.Criterion{ID: "serd", Text: "Mentions a SERD", Version: 3}

func TestEnqueueAttachesToInFlightJob(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()

	first, created, err := d.Enqueue(ctx, "hash", serd)
	if err != nil || !created {
		t.Fatalf("first Enqueue = %v, %v", created, err)
	}

	second, created, err := d.Enqueue(ctx, "hash", serd)
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if created || second != first {
		t.Errorf("second Enqueue = %s created=%v, want %s attached", second, created, first)
	}

	job, err := d.Status(ctx, first)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.CriterionVersion != 3 || job.CriterionText != serd.Text || job.Status != jobs.StatusQueued {
		t.Errorf("job = %+v", job)
	}
}

func TestStatusFallsBackToArchive(t *testing.T) {
	archived := jobs.Job{ID: "old-task", Status: jobs.StatusFinished}
	d, _ := newDispatcher(t, &fakeArchive{
		jobFn: func(_ context.Context, id string) (jobs.Job, error) {
			if id == archived.ID {
				return archived, nil
			}
			return jobs.Job{}, jobs.ErrNotFound
		},
	})

	job, err := d.Status(context.Background(), "old-task")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if job.Status != jobs.StatusFinished {
		t.Errorf("Status = %s", job.Status)
	}

	if _, err := d.Status(context.Background(), "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Errorf("missing error = %v", err)
	}
}

func TestWaitForTimeoutLeavesJobRunning(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()

	id, _, _ := d.Enqueue(ctx, "hash", serd)

	job, err := d.WaitFor(ctx, id, 30*time.Millisecond)
	if !errors.Is(err, jobs.ErrWaitTimeout) {
		t.Fatalf("error = %v, want ErrWaitTimeout", err)
	}
	if job.ID != id || job.Status != jobs.StatusQueued {
		t.Errorf("job = %+v", job)
	}

	if _, ok, err := d.Next(ctx, "w1", 100*time.Millisecond); err != nil || !ok {
		t.Errorf("job was cancelled by the wait timeout: %v %v", ok, err)
	}
}

func TestWaitForReturnsTerminalJob(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()

	id, _, _ := d.Enqueue(ctx, "hash", serd)

	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Next(ctx, "w1", time.Second)
		d.Finish(ctx, id, jobs.Finished(verdict.Verdict{IsMatch: true, Confidence: 1, Summary: "s"}))
	}()

	job, err := d.WaitFor(ctx, id, time.Second)
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if job.Status != jobs.StatusFinished || job.Result == nil || !job.Result.IsMatch {
		t.Errorf("job = %+v", job)
	}
}

func TestFinishTerminalIsMonotonic(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()

	id, _, _ := d.Enqueue(ctx, "hash", serd)
	d.Next(ctx, "w1", time.Second)

	failed := jobs.Failed(jobs.ReasonParse, "no verdict block").WithRaw("I think so")
	job, applied, err := d.Finish(ctx, id, failed)
	if err != nil || !applied {
		t.Fatalf("Finish: %v %v", applied, err)
	}
	if job.Error == nil || job.Error.Raw != "I think so" {
		t.Errorf("failure = %+v", job.Error)
	}

	job, applied, err = d.Finish(ctx, id, jobs.Finished(verdict.Verdict{Confidence: 0.5, Summary: "s"}))
	if err != nil {
		t.Fatalf("second Finish: %v", err)
	}
	if applied || job.Status != jobs.StatusFailed || job.Result != nil {
		t.Errorf("terminal state changed: applied=%v job=%+v", applied, job)
	}
}

func TestFinishRejectsMalformedOutcome(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()
	id, _, _ := d.Enqueue(ctx, "hash", serd)

	tests := []jobs.Outcome{
		{Status: jobs.StatusFinished},
		{Status: jobs.StatusFailed},
		{Status: jobs.StatusRunning},
		{Status: jobs.StatusFinished, Verdict: &verdict.Verdict{}, Failure: &jobs.Failure{}},
	}
	for _, o := range tests {
		if _, _, err := d.Finish(ctx, id, o); !errors.Is(err, jobs.ErrInvalidState) {
			t.Errorf("Finish(%+v) error = %v, want ErrInvalidState", o, err)
		}
	}
}

func TestInfo(t *testing.T) {
	d, _ := newDispatcher(t, nil)
	ctx := context.Background()

	d.Enqueue(ctx, "a", serd)
	d.Enqueue(ctx, "b", serd)
	d.Next(ctx, "w1", time.Second)
	d.Heartbeat(ctx, "w1", time.Minute)

	info, err := d.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := jobs.QueueInfo{Queued: 1, Running: 1, Workers: 1}
	if info != want {
		t.Errorf("Info = %+v, want %+v", info, want)
	}
}

func TestOutcomeHelpers(t *testing.T) {
	o := jobs.Failed(jobs.ReasonTransport, "refused")
	withRaw := o.WithRaw("raw")
	if o.Failure.Raw != "" {
		t.Error("WithRaw mutated the original failure")
	}
	if withRaw.Failure.Raw != "raw" {
		t.Error("WithRaw did not attach raw output")
	}

	if jobs.Finished(verdict.Verdict{}).WithRaw("x").Failure != nil {
		t.Error("WithRaw added a failure to a finished outcome")
	}

	job := jobs.Job{Status: jobs.StatusRunning}
	if _, ok := job.Outcome(); ok {
		t.Error("running job reported an outcome")
	}
}
