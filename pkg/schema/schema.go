// Package schema provides JSON Schema validation for LLM extraction output
// (SPEC_FULL.md §4.4.5) and derives config schemas from a strategy
// constructor's Go parameter struct (SPEC_FULL.md §4.2.e).
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator validates parsed JSON against a declared JSON Schema.
type Validator struct {
	compiled *jsonschemav5.Schema
}

// Compile compiles schemaDoc (a JSON Schema as a Go map, the shape every
// StrategyMetadata.OutputSchema is stored in) into a reusable Validator.
func Compile(schemaDoc map[string]interface{}) (*Validator, error) {
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return nil, fmt.Errorf("schema: marshal schema document: %w", err)
	}

	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// ValidationError reports the JSON path at which validation failed, per
// SPEC_FULL.md §4.4.5 ("fail Validation with the offending path").
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks doc (already json.Unmarshal-ed into a generic interface{})
// against the compiled schema, returning the first offending path on
// mismatch.
func (v *Validator) Validate(doc interface{}) error {
	err := v.compiled.Validate(doc)
	if err == nil {
		return nil
	}
	if verr, ok := err.(*jsonschemav5.ValidationError); ok {
		if leaf := deepestCause(verr); leaf != nil {
			return &ValidationError{Path: leaf.InstanceLocation, Message: leaf.Message}
		}
		return &ValidationError{Path: verr.InstanceLocation, Message: verr.Message}
	}
	return &ValidationError{Message: err.Error()}
}

// deepestCause descends a ValidationError's Causes to find the most specific
// (leaf) failure, which is the one worth surfacing to the caller.
func deepestCause(verr *jsonschemav5.ValidationError) *jsonschemav5.ValidationError {
	if len(verr.Causes) == 0 {
		return verr
	}
	return deepestCause(verr.Causes[0])
}
