package job

import (
	"encoding/json"
	"time"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/id"
)

// State represents the lifecycle state of a job.
type State string

const (
	// StateWaiting means the job is queued and eligible for pickup.
	StateWaiting State = "waiting"
	// StateDelayed means the job failed and is scheduled for a retry
	// after a backoff delay.
	StateDelayed State = "delayed"
	// StateActive means a worker slot is currently executing the job.
	StateActive State = "active"
	// StateCompleted means the job finished successfully, including the
	// completed-with-rejection outcome.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its attempt ceiling.
	StateFailed State = "failed"
	// StateCancelled means the job was cancelled before a worker slot
	// claimed it.
	StateCancelled State = "cancelled"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	case StateWaiting, StateDelayed, StateActive:
		return false
	}
	return false
}

// Cancellable reports whether a job in this state may be cancelled.
// Only queued-but-not-started work is cancellable; active jobs run to
// completion.
func (s State) Cancellable() bool {
	switch s {
	case StateWaiting, StateDelayed:
		return true
	case StateActive, StateCompleted, StateFailed, StateCancelled:
		return false
	}
	return false
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateWaiting, StateDelayed, StateActive, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Progress is the latest known status snapshot for a job. It is
// overwritten on every update; no history is retained.
type Progress struct {
	// Status is a human-readable phase label: "queued", "starting",
	// "validating", "extracting", "saving", "completed", "rejected",
	// "failed", "cancelled".
	Status string `json:"status"`

	// Percent is the approximate completion percentage, 0–100.
	Percent int `json:"percent"`

	// Data holds partial extracted data in streaming mode, or the final
	// extracted object on completion.
	Data json.RawMessage `json:"data,omitempty"`

	// Error carries the failure or rejection reason, if any.
	Error string `json:"error,omitempty"`
}

// Job represents one unit of extraction work for a single document.
type Job struct {
	docpipe.Entity

	// ID is deterministic per document: "procdoc_<documentID>".
	ID id.JobID `json:"id"`

	// DocumentID and DocumentTypeID reference externally-owned entities.
	DocumentID     string `json:"document_id"`
	DocumentTypeID string `json:"document_type_id"`

	// BatchID groups jobs submitted together.
	BatchID id.BatchID `json:"batch_id"`

	// SchemaSnapshot is the JSON schema captured at submission time.
	// Later edits to the document type do not affect this job.
	SchemaSnapshot json.RawMessage `json:"schema_snapshot"`

	// Model is the resolved extraction model for this job: the caller's
	// override if authorized, else the document type's model, else the
	// system default.
	Model string `json:"model"`

	// UserID and UserName identify the submitting principal. UserID
	// carries batch ownership for bulk operations.
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`

	// Streaming selects fine-grained partial-progress updates instead of
	// one coarse request/response cycle. It affects event granularity
	// only, never correctness.
	Streaming bool `json:"streaming,omitempty"`

	// SkipValidation skips the pre-extraction content check.
	SkipValidation bool `json:"skip_validation,omitempty"`

	State    State    `json:"state"`
	Progress Progress `json:"progress"`

	// Attempts counts execution attempts, bounded by MaxAttempts.
	Attempts    int `json:"attempts"`
	MaxAttempts int `json:"max_attempts"`

	// Rejection carries the reason when the job completed with a
	// validation rejection. Empty for genuine successes.
	Rejection string `json:"rejection,omitempty"`

	// LastError is the most recent infrastructure failure.
	LastError string `json:"last_error,omitempty"`

	WorkerID    id.WorkerID   `json:"worker_id,omitempty"`
	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Rejected reports whether the job completed with a validation rejection.
func (j *Job) Rejected() bool {
	return j.State == StateCompleted && j.Rejection != ""
}
