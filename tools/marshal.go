package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// MarshalOutput renders a tool output as text. Strings pass through untouched,
// everything else is encoded as indented JSON.
func MarshalOutput(logger *slog.Logger, o any) string {
	if str, ok := o.(string); ok {
		return str
	}

	outputBytes, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		logger.Error("error marshalling tool output",
			"error", err,
			"type", fmt.Sprintf("%T", o))
		return ""
	}

	return string(outputBytes)
}
