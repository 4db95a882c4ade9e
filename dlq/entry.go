package dlq

import (
	"encoding/json"
	"time"

	"github.com/docpipe/docpipe/id"
)

// Entry records a job that exhausted its retry budget, preserved for
// inspection or replay.
type Entry struct {
	ID             id.FailureID    `json:"id"`
	JobID          id.JobID        `json:"job_id"`
	DocumentID     string          `json:"document_id"`
	DocumentTypeID string          `json:"document_type_id"`
	BatchID        string          `json:"batch_id,omitempty"`
	SchemaSnapshot json.RawMessage `json:"schema_snapshot,omitempty"`
	Model          string          `json:"model,omitempty"`
	Streaming      bool            `json:"streaming,omitempty"`
	SkipValidation bool            `json:"skip_validation,omitempty"`
	Timeout        time.Duration   `json:"timeout,omitempty"`
	Error          string          `json:"error"`
	Attempts       int             `json:"attempts"`
	MaxAttempts    int             `json:"max_attempts"`
	UserID         string          `json:"user_id,omitempty"`
	UserName       string          `json:"user_name,omitempty"`
	FailedAt       time.Time       `json:"failed_at"`
	ReplayedAt     *time.Time      `json:"replayed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
