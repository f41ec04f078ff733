package agent

import "errors"

var (
	// ErrReasoningUnavailable is returned when the reasoning oracle could not
	// produce a reply.
	ErrReasoningUnavailable = errors.New("agent: reasoning unavailable")
	// ErrInvalidDecision is returned when a decision falls outside the closed
	// set the router accepts, or a reply violates the tool request contract.
	ErrInvalidDecision = errors.New("agent: invalid decision")
	// ErrMaxIterations is returned when the loop used up its reasoning/acting
	// cycles without a final answer.
	ErrMaxIterations = errors.New("agent: max iterations reached")
)
