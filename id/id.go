// Package id defines identity types for docpipe entities.
//
// Job identifiers are deterministic: they are derived from the document
// identifier so that submitting the same document twice collides on the
// same key. This is the mechanism that enforces at-most-one non-terminal
// job per document.
//
// Batch and subscriber identifiers are TypeIDs — type-prefixed,
// K-sortable, UUIDv7-based, URL-safe in the format "prefix_suffix".
package id

import (
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// ──────────────────────────────────────────────────
// JobID — deterministic per document
// ──────────────────────────────────────────────────

// jobPrefix is the fixed prefix of every job identifier.
const jobPrefix = "procdoc_"

// JobID identifies one unit of extraction work. It is derived from the
// document identifier, never randomly generated.
type JobID string

// JobForDocument returns the deterministic job ID for a document.
func JobForDocument(documentID string) JobID {
	return JobID(jobPrefix + documentID)
}

// ParseJobID validates a job ID string.
func ParseJobID(s string) (JobID, error) {
	suffix, ok := strings.CutPrefix(s, jobPrefix)
	if !ok || suffix == "" {
		return "", fmt.Errorf("id: parse job id %q: missing %q prefix", s, jobPrefix)
	}
	return JobID(s), nil
}

// String returns the full job ID string.
func (j JobID) String() string { return string(j) }

// DocumentID returns the document identifier the job ID was derived from.
func (j JobID) DocumentID() string {
	return strings.TrimPrefix(string(j), jobPrefix)
}

// IsNil reports whether this JobID is the zero value.
func (j JobID) IsNil() bool { return j == "" }

// ──────────────────────────────────────────────────
// TypeID-based identifiers
// ──────────────────────────────────────────────────

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for TypeID-based docpipe entity types.
const (
	PrefixBatch      Prefix = "batch"
	PrefixSubscriber Prefix = "sub"
	PrefixFailure    Prefix = "fail"
	PrefixWorker     Prefix = "wkr"
)

// ID wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse converts a TypeID string into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// BatchID is a type-safe identifier for batches (prefix: "batch").
type BatchID = ID

// SubscriberID is a type-safe identifier for stream subscribers (prefix: "sub").
type SubscriberID = ID

// FailureID is a type-safe identifier for terminal-failure records (prefix: "fail").
type FailureID = ID

// WorkerID is a type-safe identifier for worker pools (prefix: "wkr").
type WorkerID = ID

// NewBatchID generates a new unique batch ID.
func NewBatchID() ID { return New(PrefixBatch) }

// NewSubscriberID generates a new unique subscriber ID.
func NewSubscriberID() ID { return New(PrefixSubscriber) }

// NewFailureID generates a new unique failure record ID.
func NewFailureID() ID { return New(PrefixFailure) }

// NewWorkerID generates a new unique worker ID.
func NewWorkerID() ID { return New(PrefixWorker) }

// ParseBatchID parses a string and validates the "batch" prefix.
func ParseBatchID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBatch) }

// ParseFailureID parses a string and validates the "fail" prefix.
func ParseFailureID(s string) (ID, error) { return ParseWithPrefix(s, PrefixFailure) }

// ParseWorkerID parses a string and validates the "wkr" prefix.
func ParseWorkerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWorker) }

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
