package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store = (*Store)(nil)
	_ dlq.Store = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	jobs     map[string]*job.Job
	failures map[string]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:     make(map[string]*job.Job),
		failures: make(map[string]*dlq.Entry),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Ping / Close
// ──────────────────────────────────────────────────

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// EnqueueJob persists a new job in waiting state. A live job under the
// same ID yields docpipe.ErrJobAlreadyExists; a terminal one is replaced.
func (m *Store) EnqueueJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if existing, ok := m.jobs[key]; ok && !existing.State.Terminal() {
		return docpipe.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// DequeueJobs atomically claims up to limit due jobs, sets them to
// active, and returns them.
func (m *Store) DequeueJobs(_ context.Context, limit int) ([]*job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	// Collect candidates: waiting jobs, plus delayed jobs whose retry
	// time has arrived.
	candidates := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != job.StateWaiting && j.State != job.StateDelayed {
			continue
		}
		if !j.RunAt.IsZero() && j.RunAt.After(now) {
			continue
		}
		candidates = append(candidates, j)
	}

	// Oldest due first.
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].RunAt.Before(candidates[k].RunAt)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]*job.Job, len(candidates))
	for i, j := range candidates {
		j.State = job.StateActive
		n := now
		j.StartedAt = &n
		j.HeartbeatAt = &n
		// Return a copy so callers can mutate without racing with the store.
		cp := *j
		result[i] = &cp
	}

	return result, nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, docpipe.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob persists changes to an existing job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return docpipe.ErrJobNotFound
	}
	cp := *j
	cp.UpdatedAt = time.Now().UTC()
	m.jobs[key] = &cp
	return nil
}

// UpdateProgress overwrites the progress snapshot for a job without
// touching the rest of the record.
func (m *Store) UpdateProgress(_ context.Context, jobID id.JobID, p job.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return docpipe.ErrJobNotFound
	}
	j.Progress = p
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelJob transitions a waiting or delayed job to cancelled.
func (m *Store) CancelJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return docpipe.ErrJobNotFound
	}
	if j.State == job.StateActive {
		return docpipe.ErrJobActive
	}
	if j.State.Terminal() {
		return docpipe.ErrJobTerminal
	}

	now := time.Now().UTC()
	j.State = job.StateCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// ListJobsByBatch returns all jobs sharing a batch identifier.
func (m *Store) ListJobsByBatch(_ context.Context, batchID id.BatchID) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := batchID.String()
	result := make([]*job.Job, 0)
	for _, j := range m.jobs {
		if j.BatchID.String() != key {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	return result, nil
}

// ListJobsByState returns jobs matching the given state.
func (m *Store) ListJobsByState(_ context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.State != state {
			continue
		}
		cp := *j
		result = append(result, &cp)
	}

	// Sort by CreatedAt for deterministic output.
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})

	// Apply offset / limit.
	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// HeartbeatJob updates the heartbeat timestamp for an active job.
func (m *Store) HeartbeatJob(_ context.Context, jobID id.JobID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return docpipe.ErrJobNotFound
	}
	now := time.Now().UTC()
	j.HeartbeatAt = &now
	j.WorkerID = workerID
	return nil
}

// ReapStaleJobs returns active jobs whose last heartbeat is older than
// the given threshold.
func (m *Store) ReapStaleJobs(_ context.Context, threshold time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*job.Job
	for _, j := range m.jobs {
		if j.State != job.StateActive {
			continue
		}
		if j.HeartbeatAt != nil && j.HeartbeatAt.Before(cutoff) {
			cp := *j
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// SweepTerminalJobs evicts terminal jobs whose completion is older than
// the retention window.
func (m *Store) SweepTerminalJobs(_ context.Context, retention time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)
	var count int64
	for key, j := range m.jobs {
		if !j.State.Terminal() {
			continue
		}
		if j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, key)
			count++
		}
	}
	return count, nil
}

// CountJobs returns the number of jobs matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, j := range m.jobs {
		if opts.State != "" && j.State != opts.State {
			continue
		}
		if !opts.BatchID.IsNil() && j.BatchID.String() != opts.BatchID.String() {
			continue
		}
		count++
	}
	return count, nil
}

// DeleteJob removes a job by ID.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return docpipe.ErrJobNotFound
	}
	delete(m.jobs, key)
	return nil
}

// ──────────────────────────────────────────────────
// Failure archive
// ──────────────────────────────────────────────────

// PushDLQ adds a terminal-failure entry to the archive.
func (m *Store) PushDLQ(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *entry
	m.failures[entry.ID.String()] = &cp
	return nil
}

// ListDLQ returns archived failures matching the given options, newest
// first.
func (m *Store) ListDLQ(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*dlq.Entry, 0, len(m.failures))
	for _, e := range m.failures {
		if opts.DocumentTypeID != "" && e.DocumentTypeID != opts.DocumentTypeID {
			continue
		}
		if opts.BatchID != "" && e.BatchID != opts.BatchID {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].FailedAt.After(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// GetDLQ retrieves an archived failure by ID.
func (m *Store) GetDLQ(_ context.Context, entryID id.FailureID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.failures[entryID.String()]
	if !ok {
		return nil, docpipe.ErrFailureNotFound
	}
	cp := *e
	return &cp, nil
}

// ReplayDLQ marks an archived failure as replayed.
func (m *Store) ReplayDLQ(_ context.Context, entryID id.FailureID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.failures[entryID.String()]
	if !ok {
		return docpipe.ErrFailureNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// PurgeDLQ removes archived failures with FailedAt before the given time.
func (m *Store) PurgeDLQ(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, e := range m.failures {
		if e.FailedAt.Before(before) {
			delete(m.failures, key)
			count++
		}
	}
	return count, nil
}

// CountDLQ returns the total number of archived failures.
func (m *Store) CountDLQ(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.failures)), nil
}
