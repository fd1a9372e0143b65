package tools

import "strings"

// Required trims value and rejects it as invalid params when empty.
func Required(field, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", InvalidParamsf("%s is required", field)
	}
	return v, nil
}

// Clamp applies def when n is unset and bounds the result to [lo, hi].
func Clamp(n, def, lo, hi int) int {
	if n == 0 {
		n = def
	}
	return min(max(n, lo), hi)
}

// FirstNonEmpty returns the first value that is not blank after trimming.
// It backs argument aliases such as max_results and maxResults.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
