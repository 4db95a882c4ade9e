// Package storage defines how the pipeline reads document files from
// their stored location.
package storage

import "context"

// File is a document file loaded from storage.
type File struct {
	// Data holds the raw file bytes.
	Data []byte
	// MIMEType is the detected or recorded content type.
	MIMEType string
}

// FileStore reads document files by their storage location.
type FileStore interface {
	// Read loads the file at location. The location format is
	// implementation-specific (for GCS, a gs://bucket/object URI).
	Read(ctx context.Context, location string) (*File, error)
}

// FileStoreFunc adapts a function to the FileStore interface.
type FileStoreFunc func(ctx context.Context, location string) (*File, error)

func (f FileStoreFunc) Read(ctx context.Context, location string) (*File, error) {
	return f(ctx, location)
}
