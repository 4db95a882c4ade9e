// Package extract declares the contract to the AI extraction collaborator:
// a black box that takes file bytes and a JSON schema and returns
// structured data, a validation rejection, or an error.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request carries everything the collaborator needs for one extraction.
type Request struct {
	// File is the raw document content.
	File []byte

	// MIMEType describes the file content (e.g. "application/pdf").
	MIMEType string

	// Schema is the JSON schema the extracted object must conform to.
	Schema json.RawMessage

	// Model is the extraction model identifier.
	Model string
}

// Result is the final extracted object.
type Result struct {
	Data json.RawMessage
}

// PartialFunc receives incremental partial objects in streaming mode.
// It is called in emission order; the final object arrives via the
// returned Result, not the callback.
type PartialFunc func(partial json.RawMessage)

// Extractor is the AI extraction collaborator.
type Extractor interface {
	// Extract runs one request/response extraction cycle.
	Extract(ctx context.Context, req Request) (*Result, error)

	// ExtractStream runs an extraction that yields incremental partial
	// results through onPartial, terminating in a final Result.
	ExtractStream(ctx context.Context, req Request, onPartial PartialFunc) (*Result, error)
}

// Validator runs the pre-extraction content check: does the document
// content plausibly match the expected type? A mismatch is reported as a
// *RejectionError, which is terminal and never retried.
type Validator interface {
	Validate(ctx context.Context, req Request) error
}

// RejectionError signals that document content failed the pre-extraction
// content check. It is a terminal, non-retryable outcome — distinct from
// infrastructure failure.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("extract: document rejected: %s", e.Reason)
}

// Reject builds a RejectionError with the given human-readable reason.
func Reject(reason string) *RejectionError {
	return &RejectionError{Reason: reason}
}
