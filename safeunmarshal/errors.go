package safeunmarshal

import "errors"

var (
	// ErrExpectedJSONArray is returned when the target is a slice or array
	// but the input is not a JSON array.
	ErrExpectedJSONArray = errors.New("expected JSON array for array type")

	ErrEmptyInput = errors.New("empty input")

	ErrInputTooLarge = errors.New("input too large")
)
