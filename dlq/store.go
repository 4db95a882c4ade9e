package dlq

import (
	"context"
	"time"

	"github.com/docpipe/docpipe/id"
)

// ListOpts controls pagination and filtering for failure list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// DocumentTypeID filters by document type. Empty means all types.
	DocumentTypeID string
	// BatchID filters by batch. Empty means all batches.
	BatchID string
}

// Store defines the persistence contract for the failure archive.
type Store interface {
	// PushDLQ adds a terminal-failure entry to the archive.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns entries matching the given options, newest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves an entry by ID.
	GetDLQ(ctx context.Context, entryID id.FailureID) (*Entry, error)

	// ReplayDLQ marks an entry as replayed. The actual re-enqueue is
	// handled at the service layer.
	ReplayDLQ(ctx context.Context, entryID id.FailureID) error

	// PurgeDLQ removes entries with FailedAt before the given time.
	// Returns the number of entries removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of archived failures.
	CountDLQ(ctx context.Context) (int64, error)
}
