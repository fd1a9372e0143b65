// Package safeunmarshal decodes tool arguments sent by MCP clients.
//
// Language-model clients are loose with JSON types: they send "5" for an
// integer, "true" for a boolean, 123 for an identifier typed as a string, or
// the whole argument object as a JSON-encoded string. The default options
// accept those shapes by coercing scalars to the field types of the target
// before decoding. Anything that still does not fit is an error.
package safeunmarshal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

const (
	// DefaultMaxInputSize is the default maximum size for JSON input (10MB)
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// UnmarshalOptions configures the behavior of JSON unmarshalling.
type UnmarshalOptions struct {
	// MaxInputSize is the maximum allowed size for input JSON in bytes.
	// Set to 0 for no limit.
	MaxInputSize int

	// CoerceScalars converts quoted numbers and booleans, bare numbers for
	// string fields, and comma separated strings for scalar slices.
	CoerceScalars bool

	// UnwrapString accepts an object that was sent as a JSON string.
	UnwrapString bool
}

// DefaultOptions returns the options used for tool arguments.
func DefaultOptions() UnmarshalOptions {
	return UnmarshalOptions{
		MaxInputSize:  DefaultMaxInputSize,
		CoerceScalars: true,
		UnwrapString:  true,
	}
}

// StrictOptions returns options that accept only exactly typed JSON.
func StrictOptions() UnmarshalOptions {
	return UnmarshalOptions{
		MaxInputSize: DefaultMaxInputSize,
	}
}

// To decodes raw into a T with DefaultOptions.
func To[T any](raw []byte) (T, error) {
	return ToWithOptions[T](raw, DefaultOptions())
}

// ToStrict decodes raw into a T with StrictOptions.
func ToStrict[T any](raw []byte) (T, error) {
	return ToWithOptions[T](raw, StrictOptions())
}

// ToWithOptions decodes raw into a T.
//
// ErrExpectedJSONArray is returned (wrapped) when T is a slice or array and
// the input is not a JSON array.
func ToWithOptions[T any](raw []byte, opts UnmarshalOptions) (T, error) {
	var zero T

	if opts.MaxInputSize > 0 && len(raw) > opts.MaxInputSize {
		return zero, fmt.Errorf("%w: %d bytes exceeds %d", ErrInputTooLarge, len(raw), opts.MaxInputSize)
	}

	data := bytes.TrimSpace(raw)
	if len(data) == 0 {
		return zero, ErrEmptyInput
	}

	if opts.UnwrapString && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err == nil {
			trimmed := bytes.TrimSpace([]byte(inner))
			if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
				data = trimmed
			}
		}
	}

	target := reflect.TypeFor[T]()
	isArray := target.Kind() == reflect.Array || target.Kind() == reflect.Slice
	if isArray && kindOf(data) != jsonArray {
		return zero, fmt.Errorf("%w: got %s", ErrExpectedJSONArray, truncate(data))
	}

	var response T
	err := json.Unmarshal(data, &response)
	if err == nil {
		return response, nil
	}

	var typeErr *json.UnmarshalTypeError
	if !opts.CoerceScalars || !errors.As(err, &typeErr) {
		return zero, fmt.Errorf("failed to parse JSON: %w", err)
	}

	coerced := coerce(data, target)
	response = zero
	if err := json.Unmarshal(coerced, &response); err != nil {
		return zero, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return response, nil
}

func truncate(data []byte) string {
	const max = 64
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
