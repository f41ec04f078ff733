package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/agentctx"
)

var (
	// ErrQuotaExhausted is returned by Ask once the session's question quota
	// is used up.
	ErrQuotaExhausted = errors.New("engine: question quota exhausted")
	// ErrSessionBusy is returned by Ask while another question is running.
	ErrSessionBusy = errors.New("engine: another question is already running")
	// ErrEmptyQuestion is returned by Ask for blank questions.
	ErrEmptyQuestion = errors.New("engine: question is empty")
)

// Exchange is one question and its outcome, kept for display.
type Exchange struct {
	Question   string
	Answer     string // Empty when Err is set.
	Err        error
	Iterations int
	Asked      time.Time
	Duration   time.Duration
}

// Session is one interactive conversation with a question quota. Questions
// are independent runs: earlier exchanges are kept in the transcript for
// display but never fed back to the agent. Only one Ask may be active at a
// time.
type Session struct {
	id     string
	agent  string
	runner agent.Runner
	events *EventBus
	limit  int // 0 = unlimited

	mu         sync.Mutex
	active     bool
	asked      int
	transcript []Exchange
}

// newSession creates a session with the given ID, runner, and event bus.
func newSession(id, agentName string, runner agent.Runner, events *EventBus, limit int) *Session {
	return &Session{
		id:     id,
		agent:  agentName,
		runner: runner,
		events: events,
		limit:  limit,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Limit returns the question quota, 0 meaning unlimited.
func (s *Session) Limit() int { return s.limit }

// Asked returns how many questions the session has accepted.
func (s *Session) Asked() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.asked
}

// Remaining returns how many questions may still be asked, or -1 when the
// session is unlimited.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remaining()
}

func (s *Session) remaining() int {
	if s.limit == 0 {
		return -1
	}
	return max(s.limit-s.asked, 0)
}

// Exhausted reports whether the quota is used up.
func (s *Session) Exhausted() bool { return s.Remaining() == 0 }

// Busy reports whether a question is currently running.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// Transcript returns the exchanges so far, oldest first.
func (s *Session) Transcript() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Exchange, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Ask runs the agent on question. A question counts against the quota as
// soon as it is accepted, whether or not the run succeeds.
func (s *Session) Ask(ctx context.Context, question string) (agent.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return agent.Result{}, ErrEmptyQuestion
	}

	if err := s.acquire(); err != nil {
		return agent.Result{}, err
	}
	defer s.release()

	ctx = agentctx.WithSessionID(ctx, s.id)

	start := time.Now()
	s.publish(EventQuestion, question)

	res, err := s.runner.Run(ctx, question)

	ex := Exchange{
		Question:   question,
		Answer:     res.FinalText,
		Err:        err,
		Iterations: res.Iterations,
		Asked:      start,
		Duration:   time.Since(start),
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, ex)
	s.mu.Unlock()

	if err != nil {
		s.publish(EventError, err)
		return res, err
	}

	s.publish(EventAnswer, res.FinalText)

	return res, nil
}

func (s *Session) publish(kind EventKind, data any) {
	s.events.Publish(Event{
		Kind:      kind,
		SessionID: s.id,
		Agent:     s.agent,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrSessionBusy
	}
	if s.remaining() == 0 {
		return ErrQuotaExhausted
	}
	s.active = true
	s.asked++
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
}

// UserMessage renders err as the text shown to an end user. Control loop
// failures all read as one generic message; details belong in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuotaExhausted):
		return "You have reached your question limit. Thank you!"
	case errors.Is(err, ErrSessionBusy):
		return "Please wait for the current question to finish."
	case errors.Is(err, ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	default:
		return "Sorry, I could not complete the request. Please try again."
	}
}
