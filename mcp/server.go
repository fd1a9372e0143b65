package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mhpenta/biochem-mcp/tools"
)

// Server represents an MCP server that exposes tools
type Server struct {
	name    string
	version string
	tools   []tools.Tool
	byName  map[string]tools.Tool
	logger  *slog.Logger
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Name    string
	Version string
	Tools   []tools.Tool
	Logger  *slog.Logger
}

// NewServer creates a new MCP server with the provided tools. Every tool is
// validated and names must be unique.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	byName, err := tools.Index(cfg.Tools)
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	server := &Server{
		name:    cfg.Name,
		version: cfg.Version,
		tools:   cfg.Tools,
		byName:  byName,
		logger:  cfg.Logger,
	}

	server.logger.Info("initialized MCP server",
		"name", cfg.Name,
		"version", cfg.Version,
		"tool_count", len(cfg.Tools))

	return server, nil
}

// GetTools returns all registered tools in registration order
func (s *Server) GetTools() []tools.Tool {
	return s.tools
}

func (s *Server) Name() string {
	return s.name
}

func (s *Server) Version() string {
	return s.version
}

// Lookup returns the tool registered under name.
func (s *Server) Lookup(name string) (tools.Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// ErrToolNotFound is returned by CallTool for an unknown tool name.
var ErrToolNotFound = errors.New("tool not found")

// CallTool runs the named tool and renders its result as MCP content.
//
// A returned *RPCError means the call failed at the protocol level: unknown
// tool, or a tool error carrying a reserved JSON-RPC code such as invalid
// params. Every other failure is reported inside the result with IsError set.
func (s *Server) CallTool(ctx context.Context, name string, args json.RawMessage) (*ToolsCallResult, *RPCError) {
	tool, ok := s.Lookup(name)
	if !ok {
		return nil, &RPCError{
			Code:    InvalidParams,
			Message: fmt.Sprintf("Tool not found: %s", name),
			Data:    ErrToolNotFound.Error(),
		}
	}

	start := time.Now()
	result, err := tool.Execute(ctx, args)
	elapsed := time.Since(start)

	if err != nil {
		var toolErr *tools.Error
		if errors.As(err, &toolErr) && toolErr.IsProtocolError() {
			s.logger.Warn("tool rejected call",
				"tool", name,
				"code", toolErr.Code,
				"message", toolErr.Message,
				"duration", elapsed)
			return nil, &RPCError{
				Code:    toolErr.Code,
				Message: toolErr.Message,
				Data:    toolErr.Data,
			}
		}

		s.logger.Error("tool execution failed",
			"tool", name,
			"error", err.Error(),
			"errorType", fmt.Sprintf("%T", err),
			"arguments", string(args),
			"duration", elapsed)

		return &ToolsCallResult{
			Content: []ContentBlock{textBlock(fmt.Sprintf("Error executing tool: %v", err))},
			IsError: true,
		}, nil
	}

	s.logger.Info("tool executed", "tool", name, "duration", elapsed)

	text := result.Text(func(v any) string {
		return tools.MarshalOutput(s.logger, v)
	})

	return &ToolsCallResult{
		Content: []ContentBlock{textBlock(text)},
		IsError: result != nil && result.Error != nil,
	}, nil
}
