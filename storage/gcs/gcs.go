// Package gcs implements the file store on Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcstorage "cloud.google.com/go/storage"

	"github.com/docpipe/docpipe/storage"
)

// ErrNotFound is returned when the object does not exist.
var ErrNotFound = errors.New("gcs: object not found")

var _ storage.FileStore = (*Store)(nil)

// Store reads document files from GCS. Locations are gs://bucket/object
// URIs.
type Store struct {
	client *gcstorage.Client
}

// New creates a GCS-backed file store using ambient credentials.
func New(ctx context.Context) (*Store, error) {
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Read downloads the object at the given gs:// location.
func (s *Store) Read(ctx context.Context, location string) (*storage.File, error) {
	bucket, object, err := parseURI(location)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return nil, fmt.Errorf("gcs: open %s: %w", location, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s: %w", location, err)
	}

	return &storage.File{
		Data:     data,
		MIMEType: r.Attrs.ContentType,
	}, nil
}

// parseURI splits a gs://bucket/object URI into bucket and object.
func parseURI(location string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return "", "", fmt.Errorf("gcs: invalid location %q: missing gs:// prefix", location)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gcs: invalid location %q: expected gs://bucket/object", location)
	}
	return bucket, object, nil
}
