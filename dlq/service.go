package dlq

import (
	"context"
	"time"

	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// Service provides high-level failure-archive operations over a Store.
type Service struct {
	store    Store
	jobStore job.Store
}

// NewService creates a failure-archive service.
func NewService(store Store, jobStore job.Store) *Service {
	return &Service{store: store, jobStore: jobStore}
}

// Push builds an Entry from a terminally failed job and persists it.
// The error string is captured from the final handler error.
func (s *Service) Push(ctx context.Context, j *job.Job, jobErr error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:             id.NewFailureID(),
		JobID:          j.ID,
		DocumentID:     j.DocumentID,
		DocumentTypeID: j.DocumentTypeID,
		BatchID:        j.BatchID.String(),
		SchemaSnapshot: j.SchemaSnapshot,
		Model:          j.Model,
		Streaming:      j.Streaming,
		SkipValidation: j.SkipValidation,
		Timeout:        j.Timeout,
		Error:          jobErr.Error(),
		Attempts:       j.Attempts,
		MaxAttempts:    j.MaxAttempts,
		UserID:         j.UserID,
		UserName:       j.UserName,
		FailedAt:       now,
		CreatedAt:      now,
	}
	return s.store.PushDLQ(ctx, entry)
}

// DLQStore returns the underlying failure store for direct access
// to List, Get, Purge, and Count operations.
func (s *Service) DLQStore() Store {
	return s.store
}
