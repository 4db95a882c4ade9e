package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/docpipe/docpipe"
)

var invoiceSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"invoice_number": {"type": "string"},
		"total": {"type": "number"}
	},
	"required": ["invoice_number"]
}`)

func TestCompile(t *testing.T) {
	if _, err := Compile(invoiceSchema); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileEmpty(t *testing.T) {
	if _, err := Compile(nil); !errors.Is(err, docpipe.ErrNoSchema) {
		t.Errorf("expected ErrNoSchema, got %v", err)
	}
}

func TestCompileInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"type": `},
		{name: "bad type keyword", raw: `{"type": 42}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(json.RawMessage(tt.raw))
			if !errors.Is(err, docpipe.ErrInvalidSchema) {
				t.Errorf("expected ErrInvalidSchema, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	data := json.RawMessage(`{"invoice_number": "INV-001", "total": 42.5}`)
	if err := Validate(invoiceSchema, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMismatch(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "missing required", data: `{"total": 42.5}`},
		{name: "wrong type", data: `{"invoice_number": 7}`},
		{name: "not an object", data: `"just a string"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(invoiceSchema, json.RawMessage(tt.data)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
