package mcp

import (
	"context"
	"crypto/subtle"
)

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) bool
}

// StaticKeyValidator accepts any key from a fixed list.
type StaticKeyValidator struct {
	keys [][]byte
}

// NewStaticKeyValidator returns a nil validator when keys is empty, which the
// HTTP transports treat as authentication disabled.
func NewStaticKeyValidator(keys []string) APIKeyValidator {
	v := &StaticKeyValidator{}
	for _, k := range keys {
		if k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	if len(v.keys) == 0 {
		return nil
	}
	return v
}

func (v *StaticKeyValidator) Validate(ctx context.Context, apiKey string) bool {
	if apiKey == "" {
		return false
	}
	provided := []byte(apiKey)
	match := 0
	for _, k := range v.keys {
		match |= subtle.ConstantTimeCompare(k, provided)
	}
	return match == 1
}
