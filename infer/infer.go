// Package infer generates JSON schemas for tool arguments and results from Go
// types, using github.com/google/jsonschema-go.
//
// Struct fields tagged omitempty or omitzero become optional properties, all
// others are required, and a `jsonschema:"..."` tag becomes the property
// description.
package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// FromType generates the JSON schema for T.
func FromType[T any]() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("generating schema: %w", err)
	}
	return s, nil
}

// FromFunc generates input and output JSON schemas from a handler with the
// signature func(context.Context, T) (R, error).
func FromFunc[T any, R any](fn func(context.Context, T) (R, error)) (*jsonschema.Schema, *jsonschema.Schema, error) {
	inputSchema, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, nil, fmt.Errorf("generating input schema: %w", err)
	}

	outputSchema, err := jsonschema.For[R](nil)
	if err != nil {
		return nil, nil, fmt.Errorf("generating output schema: %w", err)
	}

	return inputSchema, outputSchema, nil
}

// ToMap converts a schema to its plain map form by round-tripping through
// JSON, so the library's custom marshalling is preserved. An unrestricted
// schema, which the library encodes as the literal true, maps to an empty
// object.
func ToMap(s *jsonschema.Schema) (map[string]interface{}, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot convert nil schema to map")
	}

	data, err := s.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	if bytes.Equal(data, []byte("true")) {
		return map[string]interface{}{}, nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	return result, nil
}

// MustMap is FromType followed by ToMap, panicking on error. It is meant for
// package level schema variables.
func MustMap[T any]() map[string]interface{} {
	s, err := FromType[T]()
	if err != nil {
		panic(err)
	}
	m, err := ToMap(s)
	if err != nil {
		panic(err)
	}
	return m
}
