package tools

import (
	"errors"
	"testing"
)

func TestRequired(t *testing.T) {
	v, err := Required("name", "  aspirin ")
	if err != nil || v != "aspirin" {
		t.Fatalf("Required() = %q, %v", v, err)
	}

	_, err = Required("name", "   ")
	var toolErr *Error
	if !errors.As(err, &toolErr) || toolErr.Code != CodeInvalidParams {
		t.Fatalf("expected invalid params error, got %v", err)
	}
	if toolErr.Message != "name is required" {
		t.Errorf("unexpected message %q", toolErr.Message)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 5},
		{-3, 1},
		{42, 42},
		{500, 100},
	}
	for _, tt := range tests {
		if got := Clamp(tt.n, 5, 1, 100); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", " ", "ENSG00000146648", "x"); got != "ENSG00000146648" {
		t.Errorf("FirstNonEmpty() = %q", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Errorf("FirstNonEmpty() = %q, want empty", got)
	}
}
