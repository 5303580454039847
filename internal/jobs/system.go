package jobs

import (
	"context"
	"time"

	"github.com/JaimeStill/assay/internal/criteria"
)

// Archive resolves jobs whose queue record has expired from the durable
// store of terminal analyses. It returns ErrNotFound for unknown ids.
type Archive interface {
	Job(ctx context.Context, taskID string) (Job, error)
}

// System is the job dispatcher.
type System interface {
	Handler() *Handler

	// Enqueue creates a queued job for the pair, or returns the id of the
	// job already in flight for it with created false.
	Enqueue(ctx context.Context, sourceHash string, c criteria.Criterion) (taskID string, created bool, err error)

	// Status returns the job without blocking.
	Status(ctx context.Context, taskID string) (Job, error)

	// WaitFor polls until the job is terminal. When timeout elapses first it
	// returns the latest job state with ErrWaitTimeout; the job keeps running.
	WaitFor(ctx context.Context, taskID string, timeout time.Duration) (Job, error)

	Info(ctx context.Context) (QueueInfo, error)

	// Next claims the next queued job for workerID.
	Next(ctx context.Context, workerID string, wait time.Duration) (Job, bool, error)

	// Extend renews the lease on a running job.
	Extend(ctx context.Context, taskID string) (bool, error)

	// Finish records the terminal outcome. applied is false when the job was
	// already terminal; the returned job is then the stored, authoritative one.
	Finish(ctx context.Context, taskID string, o Outcome) (job Job, applied bool, err error)

	// Expired lists running jobs whose lease has lapsed.
	Expired(ctx context.Context) ([]string, error)

	// Stale lists queued jobs older than the maximum queue age.
	Stale(ctx context.Context) ([]string, error)

	Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error
}
