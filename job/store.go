package job

import (
	"context"
	"time"

	"github.com/docpipe/docpipe/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// State filters by job state. Empty means all states.
	State State
	// BatchID filters by batch. Nil means all batches.
	BatchID id.BatchID
}

// Store defines the persistence contract for jobs. It is the single
// source of truth for job state and must be safe for concurrent mutation
// by multiple worker slots.
type Store interface {
	// EnqueueJob persists a new job in waiting state. If a job with the
	// same ID exists in a non-terminal state it returns
	// docpipe.ErrJobAlreadyExists — callers treat that as an idempotent
	// resubmission. A terminal job under the same ID is replaced.
	EnqueueJob(ctx context.Context, j *Job) error

	// DequeueJobs atomically claims up to limit due jobs (waiting, or
	// delayed with RunAt in the past), sets them to active, and returns
	// them. The claim is atomic: no two slots receive the same job.
	DequeueJobs(ctx context.Context, limit int) ([]*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job.
	UpdateJob(ctx context.Context, j *Job) error

	// UpdateProgress overwrites the progress snapshot for a job without
	// touching the rest of the record.
	UpdateProgress(ctx context.Context, jobID id.JobID, p Progress) error

	// CancelJob transitions a waiting or delayed job to cancelled and
	// removes it from the queue. Returns docpipe.ErrJobActive for active
	// jobs and docpipe.ErrJobTerminal for terminal ones.
	CancelJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByBatch returns all jobs sharing a batch identifier.
	ListJobsByBatch(ctx context.Context, batchID id.BatchID) ([]*Job, error)

	// ListJobsByState returns jobs matching the given state.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// HeartbeatJob updates the heartbeat timestamp for an active job,
	// indicating the worker is still alive.
	HeartbeatJob(ctx context.Context, jobID id.JobID, workerID id.WorkerID) error

	// ReapStaleJobs returns active jobs whose last heartbeat is older
	// than the given threshold, indicating the worker may have crashed.
	ReapStaleJobs(ctx context.Context, threshold time.Duration) ([]*Job, error)

	// SweepTerminalJobs evicts terminal jobs whose completion is older
	// than the given retention window. Returns the number evicted.
	SweepTerminalJobs(ctx context.Context, retention time.Duration) (int64, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// DeleteJob removes a job by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error
}
