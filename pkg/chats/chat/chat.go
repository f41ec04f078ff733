// Package chat provides the append-only conversation container that holds an
// agent run's history.
package chat

import (
	"errors"
	"fmt"

	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/chats/role"
)

var (
	// ErrInvalidRole is returned when a message carries an unknown role.
	ErrInvalidRole = errors.New("chat: invalid role")
	// ErrDuplicateRequestID is returned when a tool request ID is empty or
	// was already used earlier in the conversation.
	ErrDuplicateRequestID = errors.New("chat: duplicate tool request id")
	// ErrUnmatchedToolResult is returned when a tool result does not answer
	// exactly one unanswered tool request.
	ErrUnmatchedToolResult = errors.New("chat: tool result does not match a pending request")
)

// Chat is an append-only conversation. Entries are never replaced, removed or
// reordered once added. Every tool_result entry must answer a distinct,
// previously requested and still unanswered tool call.
//
// The zero value is ready to use. Chat is not safe for concurrent use;
// callers must synchronize externally.
type Chat struct {
	messages []message.Message
	// requests maps every tool request ID seen so far to whether it has been
	// answered.
	requests map[string]bool
	order    []string
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) (*Chat, error) {
	c := &Chat{}
	if err := c.Append(msgs...); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is like New but panics on an invalid history. Intended for tests
// and fixed seed conversations.
func MustNew(msgs ...message.Message) *Chat {
	c, err := New(msgs...)
	if err != nil {
		panic(err)
	}
	return c
}

// Append validates msgs against the conversation and appends them. Either all
// messages are appended or, on error, none are.
func (c *Chat) Append(msgs ...message.Message) error {
	answered := make(map[string]bool)
	issued := make(map[string]bool)

	for i, m := range msgs {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: %q (message %d)", ErrInvalidRole, m.Role, i)
		}

		for _, tc := range m.ToolCalls() {
			if m.Role != role.Assistant {
				return fmt.Errorf("%w: tool request %q on %s message", ErrInvalidRole, tc.ID, m.Role)
			}
			if _, seen := c.requests[tc.ID]; seen || tc.ID == "" || issued[tc.ID] {
				return fmt.Errorf("%w: %q", ErrDuplicateRequestID, tc.ID)
			}
			issued[tc.ID] = true
		}

		if m.Role != role.ToolResult {
			continue
		}

		tr, ok := m.ToolResult()
		if !ok {
			return fmt.Errorf("%w: message %d carries no result", ErrUnmatchedToolResult, i)
		}

		done, known := c.requests[tr.ToolCallID]
		if !known {
			known = issued[tr.ToolCallID]
		}
		if !known || done || answered[tr.ToolCallID] {
			return fmt.Errorf("%w: %q", ErrUnmatchedToolResult, tr.ToolCallID)
		}
		answered[tr.ToolCallID] = true
	}

	if c.requests == nil {
		c.requests = make(map[string]bool)
	}

	for _, m := range msgs {
		for _, tc := range m.ToolCalls() {
			c.requests[tc.ID] = false
			c.order = append(c.order, tc.ID)
		}
		if tr, ok := m.ToolResult(); ok && m.Role == role.ToolResult {
			c.requests[tr.ToolCallID] = true
		}
		c.messages = append(c.messages, m.Clone())
	}

	return nil
}

// Len returns the number of messages in the conversation.
func (c *Chat) Len() int {
	return len(c.messages)
}

// At returns a copy of the message at the given index.
// It panics if the index is out of range.
func (c *Chat) At(index int) message.Message {
	return c.messages[index].Clone()
}

// Last returns the most recent message and true, or a zero Message and false
// if the conversation is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1].Clone(), true
}

// Messages returns a deep copy of all messages in the conversation.
func (c *Chat) Messages() []message.Message {
	cp := make([]message.Message, len(c.messages))
	for i, m := range c.messages {
		cp[i] = m.Clone()
	}
	return cp
}

// Each iterates over messages, calling fn for each one. If fn returns false,
// iteration stops early.
func (c *Chat) Each(fn func(int, message.Message) bool) {
	for i, m := range c.messages {
		if !fn(i, m.Clone()) {
			return
		}
	}
}

// Pending returns the IDs of tool requests that have not been answered yet,
// in the order they were requested.
func (c *Chat) Pending() []string {
	var out []string
	for _, id := range c.order {
		if !c.requests[id] {
			out = append(out, id)
		}
	}
	return out
}

// HasRequest reports whether a tool request with the given ID was ever
// issued in this conversation.
func (c *Chat) HasRequest(id string) bool {
	_, ok := c.requests[id]
	return ok
}
