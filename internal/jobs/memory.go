package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryBackend struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	pairs   map[string]string
	queue   []string
	leases  map[string]time.Time
	workers map[string]time.Time
	wake    chan struct{}
	now     func() time.Time
}

// NewMemoryBackend returns a process-local Backend for tests and embedded
// use. Terminal jobs are kept for the life of the process.
func NewMemoryBackend() Backend {
	return &memoryBackend{
		jobs:    make(map[string]*Job),
		pairs:   make(map[string]string),
		leases:  make(map[string]time.Time),
		workers: make(map[string]time.Time),
		wake:    make(chan struct{}),
		now:     time.Now,
	}
}

func pairKey(sourceHash, criterionID string) string {
	return sourceHash + ":" + criterionID
}

func (m *memoryBackend) Claim(_ context.Context, job Job) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(job.SourceHash, job.CriterionID)
	if id, ok := m.pairs[key]; ok {
		if existing, ok := m.jobs[id]; ok && !existing.Status.Terminal() {
			return id, false, nil
		}
	}

	stored := job
	stored.Status = StatusQueued
	m.jobs[job.ID] = &stored
	m.pairs[key] = job.ID
	m.queue = append(m.queue, job.ID)

	close(m.wake)
	m.wake = make(chan struct{})

	return job.ID, true, nil
}

func (m *memoryBackend) Get(_ context.Context, id string) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

func (m *memoryBackend) Next(ctx context.Context, workerID string, lease, wait time.Duration) (Job, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		m.mu.Lock()
		for len(m.queue) > 0 {
			id := m.queue[0]
			m.queue = m.queue[1:]

			job, ok := m.jobs[id]
			if !ok || job.Status != StatusQueued {
				continue
			}

			now := m.now()
			job.Status = StatusRunning
			job.StartedAt = &now
			job.Attempts++
			m.leases[id] = now.Add(lease)

			out := *job
			m.mu.Unlock()
			return out, true, nil
		}
		wake := m.wake
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, false, ctx.Err()
		case <-timer.C:
			return Job{}, false, nil
		case <-wake:
		}
	}
}

func (m *memoryBackend) Extend(_ context.Context, id string, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.leases[id]; !ok {
		return false, nil
	}
	m.leases[id] = m.now().Add(lease)
	return true, nil
}

func (m *memoryBackend) Finish(_ context.Context, id string, o Outcome, _ time.Duration) (Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false, ErrNotFound
	}
	if job.Status.Terminal() {
		return *job, false, nil
	}

	job.apply(o, m.now())
	delete(m.leases, id)

	key := pairKey(job.SourceHash, job.CriterionID)
	if m.pairs[key] == id {
		delete(m.pairs, key)
	}

	return *job, true, nil
}

func (m *memoryBackend) Expired(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, deadline := range m.leases {
		if deadline.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return truncate(ids, limit), nil
}

func (m *memoryBackend) Stale(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []string
	for id, job := range m.jobs {
		if job.Status == StatusQueued && job.EnqueuedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return truncate(ids, limit), nil
}

func (m *memoryBackend) Counts(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var queued, running int64
	for _, job := range m.jobs {
		switch job.Status {
		case StatusQueued:
			queued++
		case StatusRunning:
			running++
		}
	}
	return queued, running, nil
}

func (m *memoryBackend) Heartbeat(_ context.Context, workerID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[workerID] = m.now().Add(ttl)
	return nil
}

func (m *memoryBackend) Workers(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for id, until := range m.workers {
		if until.After(now) {
			n++
		} else {
			delete(m.workers, id)
		}
	}
	return n, nil
}

func truncate(ids []string, limit int) []string {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
