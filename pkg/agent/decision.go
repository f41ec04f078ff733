package agent

import (
	"fmt"

	"github.com/germanamz/sleuth/pkg/chats/content"
)

// Decision is the outcome of one reasoning step. The set of implementations
// is closed: FinalAnswer and ActionRequested.
type Decision interface {
	isDecision()
}

// FinalAnswer ends the run with Text as the answer. Text may be empty.
type FinalAnswer struct {
	Text string
}

// ActionRequested asks for Calls to be executed before reasoning again.
type ActionRequested struct {
	Calls []content.ToolCall
}

func (FinalAnswer) isDecision()     {}
func (ActionRequested) isDecision() {}

// Step is the transition the loop takes after a decision.
type Step int

const (
	// StepTerminate moves the loop to StateDone.
	StepTerminate Step = iota + 1
	// StepAct moves the loop to StateActing.
	StepAct
)

func (s Step) String() string {
	switch s {
	case StepTerminate:
		return "terminate"
	case StepAct:
		return "act"
	default:
		return fmt.Sprintf("Step(%d)", int(s))
	}
}

// State is a state of the agent loop.
type State int

const (
	StateReasoning State = iota
	StateActing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReasoning:
		return "reasoning"
	case StateActing:
		return "acting"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Route maps a decision to the next step. Every decision value has exactly
// one route; anything else, including nil and an ActionRequested without
// calls, is rejected with ErrInvalidDecision.
func Route(d Decision) (Step, error) {
	switch v := d.(type) {
	case FinalAnswer:
		return StepTerminate, nil
	case ActionRequested:
		if len(v.Calls) == 0 {
			return 0, fmt.Errorf("%w: action requested without tool calls", ErrInvalidDecision)
		}
		return StepAct, nil
	case *FinalAnswer, *ActionRequested:
		return 0, fmt.Errorf("%w: decision %T must be passed by value", ErrInvalidDecision, d)
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidDecision, d)
	}
}
