package jobs

import (
	"context"
	"time"
)

// Backend stores jobs and their queue. Implementations must make Claim and
// Finish atomic: Claim creates at most one non-terminal job per pair and
// Finish only succeeds from a non-terminal state.
type Backend interface {
	// Claim records job as queued unless its pair already has a live job,
	// in which case the existing id is returned with created false.
	Claim(ctx context.Context, job Job) (id string, created bool, err error)

	// Get returns the job with id or ErrNotFound.
	Get(ctx context.Context, id string) (Job, error)

	// Next waits up to wait for a queued job, marks it running under a lease
	// owned by workerID, and returns it. ok is false when nothing was ready.
	Next(ctx context.Context, workerID string, lease, wait time.Duration) (job Job, ok bool, err error)

	// Extend pushes the lease of a running job forward. It reports false once
	// the job is no longer running.
	Extend(ctx context.Context, id string, lease time.Duration) (bool, error)

	// Finish moves a non-terminal job to the terminal state in o and releases
	// its pair. If the job is already terminal, the stored job is returned
	// with applied false.
	Finish(ctx context.Context, id string, o Outcome, retain time.Duration) (job Job, applied bool, err error)

	// Expired lists running jobs whose lease ended before now.
	Expired(ctx context.Context, now time.Time, limit int) ([]string, error)

	// Stale lists queued jobs enqueued before cutoff.
	Stale(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// Counts returns the number of queued and running jobs.
	Counts(ctx context.Context) (queued, running int64, err error)

	// Heartbeat marks workerID alive for ttl.
	Heartbeat(ctx context.Context, workerID string, ttl time.Duration) error

	// Workers counts workers with a live heartbeat.
	Workers(ctx context.Context) (int64, error)
}
