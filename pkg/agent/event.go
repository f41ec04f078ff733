package agent

import (
	"context"
	"time"

	"github.com/germanamz/sleuth/pkg/chats/content"
)

// EventKind identifies a loop transition.
type EventKind string

const (
	EventReasoningStart EventKind = "reasoning_start"
	EventDecision       EventKind = "decision"
	EventToolCallStart  EventKind = "tool_call_start"
	EventToolCallEnd    EventKind = "tool_call_end"
	EventRunEnd         EventKind = "run_end"
)

// Event describes one loop transition. Only the fields relevant to Kind are
// set.
type Event struct {
	Kind      EventKind
	Agent     string
	RunID     string
	Iteration int
	Time      time.Time

	Decision Decision           // EventDecision
	Call     content.ToolCall   // EventToolCallStart, EventToolCallEnd
	Result   content.ToolResult // EventToolCallEnd
	Duration time.Duration      // EventToolCallEnd, EventRunEnd
	Text     string             // EventRunEnd: the final answer
	Err      error              // EventRunEnd
}

// EventFunc receives loop events. Tool events are emitted from the goroutines
// running the calls, so implementations must be safe for concurrent use and
// should not block.
type EventFunc func(ctx context.Context, e Event)
