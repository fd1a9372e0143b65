// Package tools provides the tool abstraction every database server registers
// with the MCP layer.
//
// A tool is a named operation with a JSON schema for its arguments. Most tools
// are built with NewTool, which infers the schema from the handler's input
// struct and decodes arguments before the handler runs:
//
//	type byCIDRequest struct {
//	    CID int `json:"cid" jsonschema:"PubChem compound identifier"`
//	}
//
//	tool := tools.NewTool(
//	    "get_pubchem_compound_by_cid",
//	    "Get a PubChem compound by its CID",
//	    func(ctx context.Context, req byCIDRequest) (*Compound, error) {
//	        return client.CompoundByCID(ctx, req.CID)
//	    },
//	    tools.WithTimeout(20*time.Second),
//	)
//
// Table-driven tools that share one handler across many names implement the
// Tool interface directly and supply their own schema.
//
// NewTool panics on schema generation errors so a misdeclared tool fails at
// startup. Use NewToolWithError when the caller wants the error instead.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Spec returns the tool's specification, including name, description, parameters, and UI hints.
	Spec() *ToolSpec

	// Execute runs the tool with given parameters
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

type ToolSpec struct {
	Name string `json:"name,omitempty"`

	// Type is used for categorization, defaults to "<name>_v1"
	Type string `json:"type,omitempty"`

	Description string `json:"description,omitempty"`

	// Parameters is the JSON schema of the tool arguments
	Parameters map[string]interface{} `json:"parameters,omitempty"`

	// Output is the JSON schema of the tool result
	Output map[string]interface{} `json:"output,omitempty"`

	// Timeout bounds a single execution, including upstream retries. Zero means no bound.
	Timeout time.Duration `json:"-"`

	UI UI `json:"ui,omitempty"`
}

type UI struct {
	// Verb is a present progressive verb phrase for UI display (e.g., "Searching PubChem")
	Verb string `json:"verb,omitempty"`

	LongRunning bool `json:"long_running,omitempty"`
}

const (
	maxToolNameLength = 64
)

func Validate(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	m := t.Spec()
	if m.Name == "" {
		return fmt.Errorf("tool spec must include a non-empty name")
	}

	if len(m.Name) > maxToolNameLength {
		return fmt.Errorf("tool name %q must not exceed %d characters", m.Name, maxToolNameLength)
	}

	for _, char := range m.Name {
		if (char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_' || char == '-' {
			continue
		}
		return fmt.Errorf("tool name %q must contain only alphanumeric characters, underscores, or hyphens", m.Name)
	}

	if m.Description == "" {
		return fmt.Errorf("tool %q description cannot be empty", m.Name)
	}

	if m.Parameters == nil {
		return fmt.Errorf("tool %q parameters cannot be nil", m.Name)
	}

	return nil
}

// Index validates every tool and returns them keyed by name.
// Duplicate names are rejected.
func Index(ts []Tool) (map[string]Tool, error) {
	byName := make(map[string]Tool, len(ts))
	for _, t := range ts {
		if err := Validate(t); err != nil {
			return nil, err
		}
		name := t.Spec().Name
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		byName[name] = t
	}
	return byName, nil
}
