// Package role defines the sender roles used in agent conversations.
package role

// Role represents the sender of a message in a conversation.
type Role string

const (
	// System carries the prompt handed to the reasoning oracle. It never
	// enters a run's history.
	System     Role = "system"
	User       Role = "user"
	Assistant  Role = "assistant"
	ToolResult Role = "tool_result"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant, ToolResult:
		return true
	}
	return false
}

// String returns the underlying string value of the role.
func (r Role) String() string {
	return string(r)
}
