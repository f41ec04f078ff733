// Package content defines the content parts carried by conversation messages.
package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall represents an assistant's request to invoke a tool.
// Arguments holds the raw JSON object exactly as the oracle produced it.
// ID is the request ID that the matching ToolResult answers.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// Args decodes Arguments into a map. Empty arguments decode to an empty map;
// anything that is not a JSON object is an error.
func (tc ToolCall) Args() (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(tc.Arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
		return nil, fmt.Errorf("tool call %s: arguments must be a JSON object: %w", tc.ID, err)
	}
	return args, nil
}

// ToolResult holds the outcome of a tool invocation. When Failed is set,
// ErrorDetail describes the failure and Content mirrors it so the oracle can
// read it back.
type ToolResult struct {
	ToolCallID  string
	Content     string
	Failed      bool
	ErrorDetail string
}

func (tr ToolResult) PartKind() string { return "tool_result" }

// Failure builds a failed ToolResult for the given request ID.
func Failure(callID, detail string) ToolResult {
	return ToolResult{
		ToolCallID:  callID,
		Content:     detail,
		Failed:      true,
		ErrorDetail: detail,
	}
}
