package dlq

import (
	"context"
	"time"

	"github.com/docpipe/docpipe"
	"github.com/docpipe/docpipe/id"
	"github.com/docpipe/docpipe/job"
)

// Replay re-enqueues a fresh waiting job for the entry's document and
// marks the entry as replayed. The new job keeps the preserved schema
// snapshot and options, starts with zero attempts, and runs
// immediately. Because job IDs are derived from the document, Replay
// returns ErrJobAlreadyExists when a live job for that document exists.
func (s *Service) Replay(ctx context.Context, entryID id.FailureID) (*job.Job, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	// Batch association is preserved best-effort; an entry from before
	// batch tracking simply carries no batch.
	var batchID id.BatchID
	if entry.BatchID != "" {
		batchID, _ = id.ParseBatchID(entry.BatchID)
	}

	now := time.Now().UTC()
	j := &job.Job{
		Entity:         docpipe.NewEntity(),
		ID:             id.JobForDocument(entry.DocumentID),
		DocumentID:     entry.DocumentID,
		DocumentTypeID: entry.DocumentTypeID,
		BatchID:        batchID,
		SchemaSnapshot: entry.SchemaSnapshot,
		Model:          entry.Model,
		Streaming:      entry.Streaming,
		SkipValidation: entry.SkipValidation,
		Timeout:        entry.Timeout,
		UserID:         entry.UserID,
		UserName:       entry.UserName,
		State:          job.StateWaiting,
		MaxAttempts:    entry.MaxAttempts,
		RunAt:          now,
	}

	if err := s.jobStore.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The job is already enqueued. Log-worthy but not fatal.
		return j, err
	}

	return j, nil
}
