// Package msgs defines the bubbletea messages exchanged between the bridge
// goroutine and the TUI model.
package msgs

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/chats/content"
)

// --- Bridge → TUI messages ---

// ReasoningMsg signals that the agent started a reasoning step.
type ReasoningMsg struct {
	Iteration int
}

// ToolStartMsg signals that a tool call started.
type ToolStartMsg struct {
	Call content.ToolCall
}

// ToolEndMsg delivers the result of a tool call.
type ToolEndMsg struct {
	Call     content.ToolCall
	Result   content.ToolResult
	Duration time.Duration
}

// --- Internal messages ---

// AskCompleteMsg is returned by the tea.Cmd that calls sess.Ask.
type AskCompleteMsg struct {
	Result   agent.Result
	Err      error
	Duration time.Duration
}

// ProgramReadyMsg passes the *tea.Program to the model so it can start the
// bridge goroutine.
type ProgramReadyMsg struct {
	Program *tea.Program
}

// InitDrainMsg fires after a short delay so that stale terminal responses
// (e.g. OSC 11 background-color replies) are discarded before focusing input.
type InitDrainMsg struct{}
