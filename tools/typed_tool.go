package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mhpenta/biochem-mcp/infer"
	"github.com/mhpenta/biochem-mcp/safeunmarshal"
)

// TypedTool adapts a handler with concrete input and output types to Tool.
type TypedTool[In, Out any] struct {
	spec    *ToolSpec
	handler func(context.Context, In) (Out, error)
}

func (t *TypedTool[In, Out]) Spec() *ToolSpec {
	return t.spec
}

func (t *TypedTool[In, Out]) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var input In
	if trimmed := bytes.TrimSpace(params); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		parsedInput, err := safeunmarshal.To[In](trimmed)
		if err != nil {
			return nil, NewInvalidParamsError(fmt.Sprintf("failed to parse parameters: %v", err))
		}
		input = parsedInput
	}

	if t.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.spec.Timeout)
		defer cancel()
	}

	result, err := t.handler(ctx, input)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Output: result}, nil
}

// ToolOption for functional configuration
type ToolOption func(*ToolSpec)

func WithType(toolType string) ToolOption {
	return func(spec *ToolSpec) {
		spec.Type = toolType
	}
}

func WithVerb(verb string) ToolOption {
	return func(spec *ToolSpec) {
		spec.UI.Verb = verb
	}
}

func WithLongRunning(longRunning bool) ToolOption {
	return func(spec *ToolSpec) {
		spec.UI.LongRunning = longRunning
	}
}

// WithTimeout bounds each execution of the tool.
func WithTimeout(d time.Duration) ToolOption {
	return func(spec *ToolSpec) {
		spec.Timeout = d
	}
}

func WithCustomSchema(schema map[string]interface{}) ToolOption {
	return func(spec *ToolSpec) {
		spec.Parameters = schema
	}
}

// NewTool creates a TypedTool with a schema inferred from In and Out.
// It panics if schema generation fails; see NewToolWithError.
func NewTool[In, Out any](
	name,
	description string,
	handler func(context.Context, In) (Out, error),
	opts ...ToolOption,
) Tool {
	tool, err := NewToolWithError[In, Out](name, description, handler, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create tool %q: %v", name, err))
	}
	return tool
}

// NewToolWithError is NewTool returning the schema error instead of panicking.
func NewToolWithError[In, Out any](
	name,
	description string,
	handler func(context.Context, In) (Out, error),
	opts ...ToolOption,
) (Tool, error) {

	inputSchema, outputSchema, err := infer.FromFunc(handler)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema from handler function: %w", err)
	}

	inputSchemaMap, err := infer.ToMap(inputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert input schema to map: %w", err)
	}

	outputSchemaMap, err := infer.ToMap(outputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to convert output schema to map: %w", err)
	}

	spec := &ToolSpec{
		Name:        name,
		Type:        fmt.Sprintf("%s_v1", name),
		Description: description,
		Parameters:  inputSchemaMap,
		Output:      outputSchemaMap,
	}

	for _, opt := range opts {
		opt(spec)
	}

	return &TypedTool[In, Out]{
		spec:    spec,
		handler: handler,
	}, nil
}
