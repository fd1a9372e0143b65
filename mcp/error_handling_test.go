package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/mhpenta/biochem-mcp/mcp"
	"github.com/mhpenta/biochem-mcp/tools"
)

type cidInput struct {
	CID int `json:"cid"`
}

func newHandler(t *testing.T, tool tools.Tool) *mcp.JSONRPCHandler {
	t.Helper()
	server, err := mcp.NewServer(mcp.ServerConfig{
		Name:    "test",
		Version: "1.0",
		Tools:   []tools.Tool{tool},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return mcp.NewJSONRPCHandler(server)
}

func call(t *testing.T, handler *mcp.JSONRPCHandler, name, args string) *mcp.JSONRPCResponse {
	t.Helper()
	req := mcp.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  mcp.MethodToolsCall,
		Params:  json.RawMessage(fmt.Sprintf(`{"name": %q, "arguments": %s}`, name, args)),
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return handler.HandleMessage(context.Background(), reqBytes)
}

func TestErrorHandling_InvalidParams(t *testing.T) {
	tool := tools.NewTool("get_compound", "desc", func(ctx context.Context, input cidInput) (string, error) {
		return "ok", nil
	})
	handler := newHandler(t, tool)

	resp := call(t, handler, "get_compound", `{"cid": "not_an_int"}`)

	if resp.Error == nil {
		t.Fatal("Expected error in response, got nil")
	}
	if resp.Error.Code != mcp.InvalidParams {
		t.Errorf("Expected error code %d, got %d. Message: %s", mcp.InvalidParams, resp.Error.Code, resp.Error.Message)
	}
	if resp.Result != nil {
		t.Errorf("Expected no result alongside error, got %v", resp.Result)
	}
}

func TestErrorHandling_ValidationInHandler(t *testing.T) {
	tool := tools.NewTool("get_compound", "desc", func(ctx context.Context, input cidInput) (string, error) {
		if input.CID <= 0 {
			return "", tools.InvalidParamsf("cid must be positive, got %d", input.CID)
		}
		return "ok", nil
	})
	handler := newHandler(t, tool)

	resp := call(t, handler, "get_compound", `{"cid": -4}`)
	if resp.Error == nil || resp.Error.Code != mcp.InvalidParams {
		t.Fatalf("Expected invalid params error, got %+v", resp.Error)
	}
	if resp.Error.Message != "cid must be positive, got -4" {
		t.Errorf("Unexpected message %q", resp.Error.Message)
	}
}

func TestErrorHandling_ToolExecutionError(t *testing.T) {
	tool := tools.NewTool("get_compound", "desc", func(ctx context.Context, input cidInput) (string, error) {
		return "", fmt.Errorf("fetch compound %d: %w", input.CID, errors.New("PubChem service unavailable"))
	})
	handler := newHandler(t, tool)

	resp := call(t, handler, "get_compound", `{"cid": 1}`)

	if resp.Error != nil {
		t.Fatalf("Expected no protocol error, got %v", resp.Error)
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var result mcp.ToolsCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}

	if !result.IsError {
		t.Error("Expected isError to be true")
	}
	want := "Error executing tool: fetch compound 1: PubChem service unavailable"
	if result.Content[0].Text != want {
		t.Errorf("Expected %q, got %q", want, result.Content[0].Text)
	}
}

func TestErrorHandling_CustomNonProtocolCode(t *testing.T) {
	tool := tools.NewTool("get_compound", "desc", func(ctx context.Context, input cidInput) (string, error) {
		return "", tools.NewError(1, "something went wrong")
	})
	handler := newHandler(t, tool)

	resp := call(t, handler, "get_compound", `{"cid": 1}`)
	if resp.Error != nil {
		t.Fatalf("Codes outside the reserved range should not be protocol errors, got %v", resp.Error)
	}
}

func TestErrorHandling_ErrorResultText(t *testing.T) {
	msg := "No compounds found"
	tool := &staticTool{result: &tools.ToolResult{Error: &msg}}
	handler := newHandler(t, tool)

	resp := call(t, handler, "static", `{}`)
	data, _ := json.Marshal(resp.Result)

	var result mcp.ToolsCallResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.IsError || result.Content[0].Text != msg {
		t.Errorf("Unexpected result %+v", result)
	}
}

type staticTool struct {
	result *tools.ToolResult
}

func (s *staticTool) Spec() *tools.ToolSpec {
	return &tools.ToolSpec{Name: "static", Description: "static", Parameters: map[string]interface{}{"type": "object"}}
}

func (s *staticTool) Execute(ctx context.Context, params json.RawMessage) (*tools.ToolResult, error) {
	return s.result, nil
}
