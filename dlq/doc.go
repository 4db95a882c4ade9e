// Package dlq provides the failure archive for jobs that have exhausted
// their retry budget. It supports inspection, replay, and purging.
//
// When a job fails and MaxAttempts has been reached, the executor calls
// [Service.Push] to record the terminal failure. The schema snapshot,
// error message, and attempt counts are preserved for debugging.
//
// # Entry
//
// An [Entry] captures:
//   - JobID / DocumentID / DocumentTypeID: original job identity
//   - SchemaSnapshot: the schema the job was extracting against
//   - Error: the final error message
//   - Attempts / MaxAttempts: exhausted retry budget
//   - FailedAt: when the terminal failure occurred
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Service
//
// [Service] wraps the failure store with high-level operations:
//
//	svc := dlq.NewService(store, jobStore)
//
//	// Push is called automatically by the executor on terminal failure.
//	svc.Push(ctx, failedJob, err)
//
//	// Access the underlying store for list/get/purge/count.
//	svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
//
// # Replay
//
// Replaying an entry re-enqueues a fresh waiting job for the same
// document with the preserved schema snapshot and options. Because job
// IDs are derived from the document, replay fails with
// ErrJobAlreadyExists if a live job for that document exists. Replay
// sets ReplayedAt on the entry.
//
// # Admin API
//
// Failures are exposed via the HTTP API:
//   - GET  /v1/failures               — list entries
//   - GET  /v1/failures/:entryId      — get a single entry
//   - POST /v1/failures/:entryId/replay — replay one entry
//   - GET  /v1/failures/count         — entry count
package dlq
