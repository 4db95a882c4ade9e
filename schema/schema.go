// Package schema compiles JSON schemas and validates extracted data
// against them. A job carries a snapshot of the document type's schema
// taken at submission time, so a schema edit never changes the contract
// of an in-flight job.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/docpipe/docpipe"
)

// Compile parses and compiles a raw JSON schema. A schema that does not
// compile is a caller input error, reported as ErrInvalidSchema.
func Compile(raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, docpipe.ErrNoSchema
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", docpipe.ErrInvalidSchema, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", docpipe.ErrInvalidSchema, err)
	}
	return compiled, nil
}

// Validate checks that data conforms to the raw schema. A validation
// failure means the extracted payload does not honor the contract.
func Validate(raw, data json.RawMessage) error {
	compiled, err := Compile(raw)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("schema: unmarshal data: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("schema: data does not match schema: %w", err)
	}
	return nil
}
