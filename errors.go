package docpipe

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("docpipe: no store configured")
	ErrStoreClosed = errors.New("docpipe: store closed")

	// Not found errors.
	ErrJobNotFound      = errors.New("docpipe: job not found")
	ErrBatchNotFound    = errors.New("docpipe: batch not found")
	ErrDocumentNotFound = errors.New("docpipe: document not found")
	ErrTypeNotFound     = errors.New("docpipe: document type not found")
	ErrFailureNotFound  = errors.New("docpipe: failure record not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("docpipe: job already exists")

	// State errors.
	ErrJobActive        = errors.New("docpipe: job is active and cannot be cancelled")
	ErrJobTerminal      = errors.New("docpipe: job is in a terminal state")
	ErrInvalidState     = errors.New("docpipe: invalid state transition")
	ErrAttemptsExceeded = errors.New("docpipe: attempt ceiling exceeded")

	// Submission errors.
	ErrNoDocuments   = errors.New("docpipe: no document ids supplied")
	ErrNoSchema      = errors.New("docpipe: document type schema is required")
	ErrNoSubmitter   = errors.New("docpipe: submitting user id and name are required")
	ErrInvalidSchema = errors.New("docpipe: schema does not compile")

	// Authorization errors.
	ErrNotAuthorized = errors.New("docpipe: principal is not authorized for this job")
)
