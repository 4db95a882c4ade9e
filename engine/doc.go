// Package engine wires the pipeline subsystems together: it builds the
// extension registry, stream broker, middleware chain, and worker pool
// on top of a Pipeline, and exposes the submission, status,
// cancellation, and subscription operations.
//
// This package exists to break the import cycle: the root docpipe
// package defines Entity (imported by job, dlq, etc.) and so cannot
// import those packages back. The engine package sits above all
// subsystem packages and below the application layer.
package engine
