// Package message defines the Message type used in agent conversations.
package message

import (
	"slices"
	"strings"

	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/chats/role"
)

// Message represents a single entry in a conversation.
// It is a value type; use Clone before handing it to code that may keep it.
type Message struct {
	Sender string
	Role   role.Role
	Parts  []content.Part
}

// New creates a message with the given sender, role, and content parts.
func New(sender string, r role.Role, parts ...content.Part) Message {
	return Message{
		Sender: sender,
		Role:   r,
		Parts:  parts,
	}
}

// NewText creates a message with a single Text content part.
func NewText(sender string, r role.Role, text string) Message {
	return New(sender, r, content.Text{Text: text})
}

// FromResult creates a tool_result message answering result.ToolCallID.
func FromResult(sender string, result content.ToolResult) Message {
	return New(sender, role.ToolResult, result)
}

// TextContent concatenates the text of all Text parts in the message.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// ToolCalls returns all ToolCall parts in the message, in order.
func (m Message) ToolCalls() []content.ToolCall {
	var calls []content.ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(content.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolResult returns the first ToolResult part and true, or false when the
// message carries none.
func (m Message) ToolResult() (content.ToolResult, bool) {
	for _, p := range m.Parts {
		if tr, ok := p.(content.ToolResult); ok {
			return tr, true
		}
	}
	return content.ToolResult{}, false
}

// Clone returns a copy of m that shares no backing array with it. Parts are
// value types, so copying the slice is enough.
func (m Message) Clone() Message {
	m.Parts = slices.Clone(m.Parts)
	return m
}
