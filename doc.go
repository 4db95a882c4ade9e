// Package docpipe provides an asynchronous document-extraction job pipeline
// for Go. It dispatches scanned documents to a bounded pool of concurrent
// workers, invokes an AI extraction collaborator against a JSON schema
// snapshot, tracks per-job and per-batch progress, streams partial results
// to subscribers, and fires webhooks on meaningful state transitions.
//
// Docpipe is designed as a library, not a service. Import it, configure a
// store and the external collaborators, and submit documents for processing.
//
// # Quick Start
//
//	p, err := docpipe.New(
//	    docpipe.WithStore(redisStore),
//	    docpipe.WithConcurrency(8),
//	)
//
// # Architecture
//
// Job state lives in a single Store abstraction (memory for tests, Redis in
// production). A fixed-concurrency worker pool claims waiting jobs, runs the
// extraction through a middleware chain, and resolves success, rejection, or
// retry with exponential backoff. Lifecycle events fan out through an
// extension registry to the stream broker, webhook trigger, and metrics.
//
// Job identifiers are deterministic per document, which guarantees at most
// one non-terminal job per document at any time. Batch and subscriber IDs
// are TypeIDs — type-prefixed, K-sortable, UUIDv7-based.
package docpipe
