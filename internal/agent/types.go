package agent

import "context"

// ToolSpec describes how the agent presents a tool to the model.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolRequest carries the decoded arguments of one tool call.
type ToolRequest struct {
	CallID    string
	Arguments map[string]any
}

// ToolResponse is the text handed back to the model, plus optional metadata.
type ToolResponse struct {
	Content  string
	Metadata map[string]string
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}
