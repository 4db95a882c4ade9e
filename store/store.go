package store

import (
	"context"

	"github.com/docpipe/docpipe/dlq"
	"github.com/docpipe/docpipe/job"
)

// Store is the full persistence contract a backend must satisfy: job
// queue state plus the terminal-failure archive, with lifecycle hooks
// for health checks and shutdown.
type Store interface {
	job.Store
	dlq.Store

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources. The store is unusable
	// afterwards.
	Close() error
}
