// Package document declares the narrow contracts to the externally-owned
// document CRUD layer. The pipeline never owns document records; it reads
// identifiers, types, schemas, and storage locations, and writes back
// extraction results and a terminal status.
package document

import (
	"context"
	"encoding/json"
)

// Status is the externally-visible processing status of a document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Document is the external document record, reduced to the fields the
// pipeline reads and writes.
type Document struct {
	ID              string          `json:"id"`
	Filename        string          `json:"filename"`
	StorageLocation string          `json:"storage_location"`
	Status          Status          `json:"status"`
	ExtractedData   json.RawMessage `json:"extracted_data,omitempty"`
}

// Type is the external document-type record: a JSON schema plus an AI
// model choice.
type Type struct {
	ID        string          `json:"id"`
	Schema    json.RawMessage `json:"schema"`
	ModelName string          `json:"model_name,omitempty"`
}

// Update is the narrow write contract back to the document record. The
// write is keyed by document ID, so re-running a job after a crash
// overwrites rather than duplicates the result.
type Update struct {
	// ExtractedData replaces the document's extracted payload when set.
	ExtractedData json.RawMessage

	// Status is the new processing status.
	Status Status

	// SchemaSnapshot records the schema the data was extracted against.
	SchemaSnapshot json.RawMessage
}

// Service is the document collaborator: lookups of document records and
// idempotent writes of extraction results. Implementations return
// docpipe.ErrDocumentNotFound for unknown identifiers.
type Service interface {
	GetDocument(ctx context.Context, documentID string) (*Document, error)
	UpdateDocument(ctx context.Context, documentID string, u Update) (*Document, error)
}

// TypeService resolves document types. Implementations return
// docpipe.ErrTypeNotFound for unknown identifiers.
type TypeService interface {
	GetDocumentType(ctx context.Context, typeID string) (*Type, error)
}
