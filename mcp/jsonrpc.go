package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// JSON-RPC 2.0 message structures
// See: https://www.jsonrpc.org/specification

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"` // string, number, or absent for notifications
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// MCP method names
const (
	MethodInitialize  = "initialize"
	MethodPing        = "ping"
	MethodToolsList   = "tools/list"
	MethodToolsCall   = "tools/call"
	MethodInitialized = "notifications/initialized"
)

// LatestProtocolVersion is returned when the client asks for a version this
// server does not know.
const LatestProtocolVersion = "2025-06-18"

var supportedProtocolVersions = []string{"2024-11-05", "2025-03-26", LatestProtocolVersion}

type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

type ServerCapabilities struct {
	Tools map[string]interface{} `json:"tools,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ToolsListResult struct {
	Tools []ToolDescription `json:"tools"`
}

// ToolDescription represents a tool in MCP format
type ToolDescription struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type ToolsCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolsCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is a single piece of tool output. Only text content is produced.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// JSONRPCHandler routes JSON-RPC 2.0 messages to the server
type JSONRPCHandler struct {
	server *Server
}

func NewJSONRPCHandler(server *Server) *JSONRPCHandler {
	return &JSONRPCHandler{
		server: server,
	}
}

// HandleMessage processes a single JSON-RPC message.
// It returns nil for notifications, which get no response.
func (h *JSONRPCHandler) HandleMessage(ctx context.Context, data []byte) *JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			Error: &RPCError{
				Code:    ParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		}
	}

	if req.ID == nil {
		h.server.logger.Debug("received notification", "method", req.Method)
		return nil
	}

	if req.JSONRPC != "2.0" {
		return &JSONRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    InvalidRequest,
				Message: "Invalid JSON-RPC version",
			},
		}
	}

	var result interface{}
	var rpcErr *RPCError

	switch req.Method {
	case MethodInitialize:
		result, rpcErr = h.handleInitialize(req.Params)
	case MethodPing:
		result = struct{}{}
	case MethodToolsList:
		result = h.handleToolsList()
	case MethodToolsCall:
		result, rpcErr = h.handleToolsCall(ctx, req.Params)
	default:
		rpcErr = &RPCError{
			Code:    MethodNotFound,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	if rpcErr != nil {
		result = nil
	}

	return &JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
		Error:   rpcErr,
	}
}

// HandleBatch processes a raw payload that is either a single message or a
// JSON array of messages. The returned slice omits notifications; batch
// reports whether the payload was an array. An empty array is answered with
// a single Invalid Request error.
func (h *JSONRPCHandler) HandleBatch(ctx context.Context, body []byte) (responses []*JSONRPCResponse, batch bool) {
	var requests []json.RawMessage
	if err := json.Unmarshal(body, &requests); err == nil && requests != nil {
		if len(requests) == 0 {
			return []*JSONRPCResponse{{
				JSONRPC: "2.0",
				Error: &RPCError{
					Code:    InvalidRequest,
					Message: "Invalid Request",
					Data:    "empty batch",
				},
			}}, false
		}
		batch = true
	} else {
		requests = []json.RawMessage{body}
	}

	responses = make([]*JSONRPCResponse, 0, len(requests))
	for _, reqData := range requests {
		if resp := h.HandleMessage(ctx, reqData); resp != nil {
			responses = append(responses, resp)
		}
	}
	return responses, batch
}

func (h *JSONRPCHandler) handleInitialize(params json.RawMessage) (interface{}, *RPCError) {
	var initParams InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &initParams); err != nil {
			return nil, &RPCError{
				Code:    InvalidParams,
				Message: "Invalid initialize parameters",
				Data:    err.Error(),
			}
		}
	}

	version := LatestProtocolVersion
	if slices.Contains(supportedProtocolVersions, initParams.ProtocolVersion) {
		version = initParams.ProtocolVersion
	}

	h.server.logger.Info("MCP client connected",
		"client", initParams.ClientInfo.Name,
		"version", initParams.ClientInfo.Version,
		"protocol", version)

	return InitializeResult{
		ProtocolVersion: version,
		Capabilities: ServerCapabilities{
			Tools: map[string]interface{}{
				"listChanged": false,
			},
		},
		ServerInfo: ServerInfo{
			Name:    h.server.name,
			Version: h.server.version,
		},
	}, nil
}

func (h *JSONRPCHandler) handleToolsList() ToolsListResult {
	toolList := make([]ToolDescription, 0, len(h.server.tools))
	for _, tool := range h.server.tools {
		spec := tool.Spec()
		toolList = append(toolList, ToolDescription{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: normalizeJSONSchema(spec.Parameters),
		})
	}

	return ToolsListResult{
		Tools: toolList,
	}
}

// normalizeJSONSchema returns a copy of schema whose "required" is an array,
// never null or missing. Some MCP clients reject the null form.
func normalizeJSONSchema(schema map[string]interface{}) map[string]interface{} {
	if schema == nil {
		return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}, "required": []string{}}
	}

	normalized := make(map[string]interface{}, len(schema)+1)
	for k, v := range schema {
		normalized[k] = v
	}

	if required, exists := normalized["required"]; !exists || required == nil {
		normalized["required"] = []string{}
	}

	return normalized
}

func (h *JSONRPCHandler) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, *RPCError) {
	var callParams ToolsCallParams
	if err := json.Unmarshal(params, &callParams); err != nil {
		return nil, &RPCError{
			Code:    InvalidParams,
			Message: "Invalid tools/call parameters",
			Data:    err.Error(),
		}
	}

	h.server.logger.Debug("executing tool via JSON-RPC", "tool", callParams.Name)

	result, rpcErr := h.server.CallTool(ctx, callParams.Name, callParams.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}
