package tools

// ToolResult is what a tool hands back to the transport. Exactly one of the
// fields is expected to be set; Error takes precedence, then Output, then System.
type ToolResult struct {
	Output any     `json:"output,omitempty"`
	Error  *string `json:"error,omitempty"`
	System *string `json:"system,omitempty"`
}

// Text renders the result as the single text block sent to MCP clients.
func (r *ToolResult) Text(marshal func(any) string) string {
	switch {
	case r == nil:
		return ""
	case r.Error != nil:
		return *r.Error
	case r.Output != nil:
		return marshal(r.Output)
	case r.System != nil:
		return *r.System
	}
	return ""
}

// Message wraps a plain informational string as a result.
func Message(msg string) *ToolResult {
	return &ToolResult{System: &msg}
}
