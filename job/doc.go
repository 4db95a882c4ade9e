// Package job defines the Job entity — one unit of extraction work for a
// single document — its closed state machine, the progress snapshot, and
// the Store persistence contract.
//
// # State Machine
//
//	waiting → active → {completed | failed}
//	failed  → delayed → active   (retry with backoff, up to MaxAttempts)
//	waiting | delayed → cancelled
//
// completed, cancelled, and failed-with-exhausted-attempts are terminal.
// A validation rejection is a terminal completed state carrying a
// rejection reason; it is never retried.
//
// Job identifiers are deterministic per document (see the id package), so
// the store's duplicate-key check on enqueue is what guarantees at most
// one non-terminal job per document.
package job
