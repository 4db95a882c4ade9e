package gcs

import "testing"

func TestParseURI(t *testing.T) {
	tests := []struct {
		name     string
		location string
		bucket   string
		object   string
		wantErr  bool
	}{
		{name: "valid", location: "gs://docs-bucket/scans/inv-001.pdf", bucket: "docs-bucket", object: "scans/inv-001.pdf"},
		{name: "nested object", location: "gs://b/a/b/c", bucket: "b", object: "a/b/c"},
		{name: "missing prefix", location: "docs-bucket/file.pdf", wantErr: true},
		{name: "no object", location: "gs://docs-bucket", wantErr: true},
		{name: "empty object", location: "gs://docs-bucket/", wantErr: true},
		{name: "empty bucket", location: "gs:///file.pdf", wantErr: true},
		{name: "empty", location: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := parseURI(tt.location)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.location)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.bucket || object != tt.object {
				t.Errorf("got (%q, %q), want (%q, %q)", bucket, object, tt.bucket, tt.object)
			}
		})
	}
}
