package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/sleuth/pkg/agent"
	"github.com/germanamz/sleuth/pkg/agentctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRunner() agent.Runner {
	return agent.RunnerFunc(func(_ context.Context, q string) (agent.Result, error) {
		return agent.Result{FinalText: "re: " + q, Iterations: 1}, nil
	})
}

func TestSession_Quota(t *testing.T) {
	s := newSession("s1", "bot", echoRunner(), NewEventBus(), 2)

	assert.Equal(t, 2, s.Remaining())

	res, err := s.Ask(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, "re: one", res.FinalText)
	assert.Equal(t, 1, s.Remaining())

	_, err = s.Ask(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Remaining())
	assert.True(t, s.Exhausted())

	_, err = s.Ask(context.Background(), "three")
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 2, s.Asked())
	assert.Len(t, s.Transcript(), 2)
}

func TestSession_DefaultQuotaIsFour(t *testing.T) {
	eng := newEngine(t, useMock(t, researchCompleter()))
	s := eng.NewSession()

	assert.Equal(t, DefaultMaxQuestions, s.Limit())
	assert.Equal(t, 4, s.Remaining())
}

func TestSession_Unlimited(t *testing.T) {
	s := newSession("s1", "bot", echoRunner(), NewEventBus(), 0)

	for i := range 10 {
		_, err := s.Ask(context.Background(), fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}
	assert.Equal(t, -1, s.Remaining())
	assert.False(t, s.Exhausted())
}

func TestSession_FailedRunStillCounts(t *testing.T) {
	failing := agent.RunnerFunc(func(context.Context, string) (agent.Result, error) {
		return agent.Result{}, agent.ErrReasoningUnavailable
	})
	s := newSession("s1", "bot", failing, NewEventBus(), 1)

	_, err := s.Ask(context.Background(), "q")
	require.ErrorIs(t, err, agent.ErrReasoningUnavailable)

	_, err = s.Ask(context.Background(), "again")
	require.ErrorIs(t, err, ErrQuotaExhausted)

	tr := s.Transcript()
	require.Len(t, tr, 1)
	assert.Equal(t, "q", tr[0].Question)
	assert.ErrorIs(t, tr[0].Err, agent.ErrReasoningUnavailable)
	assert.Empty(t, tr[0].Answer)
}

func TestSession_EmptyQuestionIsNotCounted(t *testing.T) {
	s := newSession("s1", "bot", echoRunner(), NewEventBus(), 1)

	_, err := s.Ask(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, 1, s.Remaining())
}

func TestSession_RejectsConcurrentAsk(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	blocking := agent.RunnerFunc(func(context.Context, string) (agent.Result, error) {
		close(started)
		<-release
		return agent.Result{FinalText: "done"}, nil
	})
	s := newSession("s1", "bot", blocking, NewEventBus(), 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Ask(context.Background(), "first")
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, s.Busy())

	_, err := s.Ask(context.Background(), "second")
	require.ErrorIs(t, err, ErrSessionBusy)

	close(release)
	wg.Wait()

	assert.False(t, s.Busy())
	assert.Equal(t, 1, s.Asked(), "rejected questions are not counted")
}

func TestSession_RunsCarrySessionID(t *testing.T) {
	var got string
	spy := agent.RunnerFunc(func(ctx context.Context, _ string) (agent.Result, error) {
		got = agentctx.SessionIDFromContext(ctx)
		return agent.Result{}, nil
	})
	s := newSession("session-9", "bot", spy, NewEventBus(), 0)

	_, err := s.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "session-9", got)
}

func TestSession_Events(t *testing.T) {
	bus := NewEventBus()
	sub := bus.Subscribe(8)
	defer bus.Unsubscribe(sub)

	s := newSession("s1", "bot", echoRunner(), bus, 0)
	_, err := s.Ask(context.Background(), "  hello ")
	require.NoError(t, err)

	next := func() Event {
		select {
		case ev := <-sub.C:
			return ev
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
			return Event{}
		}
	}

	q := next()
	assert.Equal(t, EventQuestion, q.Kind)
	assert.Equal(t, "hello", q.Data)
	assert.Equal(t, "bot", q.Agent)

	a := next()
	assert.Equal(t, EventAnswer, a.Kind)
	assert.Equal(t, "re: hello", a.Data)
}

func TestUserMessage(t *testing.T) {
	generic := "Sorry, I could not complete the request. Please try again."

	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrQuotaExhausted, "You have reached your question limit. Thank you!"},
		{ErrSessionBusy, "Please wait for the current question to finish."},
		{ErrEmptyQuestion, "Please enter a question."},
		{fmt.Errorf("agent: %w", context.Canceled), "The request was cancelled."},
		{agent.ErrReasoningUnavailable, generic},
		{agent.ErrInvalidDecision, generic},
		{fmt.Errorf("%w after 10 cycles", agent.ErrMaxIterations), generic},
		{errors.New("agent panicked: boom"), generic},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err), fmt.Sprint(tt.err))
	}
}
