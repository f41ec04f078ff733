package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/sleuth/pkg/chats/chat"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/chats/role"
	"github.com/germanamz/sleuth/pkg/modeladapter"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	tb := newToolBox(t, echoTool())
	a := New("sleuth", &sequenceCompleter{}, tb, Options{})

	assert.Equal(t, "sleuth", a.Name())
	assert.Same(t, tb, a.Tools())
	assert.Equal(t, DefaultMaxIterations, a.opts.MaxIterations)
}

// Scenario: an answer without tools.
func TestRunDirectAnswer(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{text("4")}}
	a := New("sleuth", p, nil, Options{})

	res, err := a.Run(context.Background(), "2+2")
	require.NoError(t, err)

	assert.Equal(t, "4", res.FinalText)
	assert.Equal(t, 0, res.Iterations)
	require.Len(t, res.History, 2)
	assert.Equal(t, role.User, res.History[0].Role)
	assert.Equal(t, "2+2", res.History[0].TextContent())
	assert.Equal(t, role.Assistant, res.History[1].Role)
	assert.Equal(t, "sleuth", res.History[1].Sender)
}

// Scenario: two lookups in one batch, then a synthesized answer.
func TestRunCompare(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		toolCalls(
			content.ToolCall{ID: "x", Name: "lookup", Arguments: `{"topic":"X"}`},
			content.ToolCall{ID: "y", Name: "lookup", Arguments: `{"topic":"Y"}`},
		),
		text("X and Y compared"),
	}}
	a := New("sleuth", p, newToolBox(t, lookupTool()), Options{})

	res, err := a.Run(context.Background(), "compare X and Y")
	require.NoError(t, err)

	assert.Equal(t, "X and Y compared", res.FinalText)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.History, 5)

	assert.Len(t, res.History[1].ToolCalls(), 2)
	for i, id := range []string{"x", "y"} {
		tr, ok := res.History[2+i].ToolResult()
		require.True(t, ok)
		assert.Equal(t, id, tr.ToolCallID)
		assert.False(t, tr.Failed)
		assert.Equal(t, role.ToolResult, res.History[2+i].Role)
		assert.Equal(t, "lookup", res.History[2+i].Sender)
	}

	// The second reasoning step saw both results.
	require.Len(t, p.seen, 2)
	assert.Len(t, p.seen[1], 4)
	last, _ := p.seen[1][3].ToolResult()
	assert.Equal(t, "Y facts", last.Content)
}

// Scenario: a missing tool is reported back and the loop continues.
func TestRunUnknownTool(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		toolCalls(content.ToolCall{ID: "1", Name: "teleport"}),
		text("cannot teleport"),
	}}
	a := New("sleuth", p, newToolBox(t, lookupTool()), Options{})

	res, err := a.Run(context.Background(), "go to mars")
	require.NoError(t, err)

	assert.Equal(t, "cannot teleport", res.FinalText)
	tr, ok := res.History[2].ToolResult()
	require.True(t, ok)
	assert.True(t, tr.Failed)
	assert.Contains(t, tr.ErrorDetail, "teleport")
}

// Scenario: the oracle fails on the first step.
func TestRunOracleFailure(t *testing.T) {
	a := New("sleuth", &errorCompleter{err: errors.New("connection refused")}, nil, Options{})

	res, err := a.Run(context.Background(), "q")

	require.ErrorIs(t, err, ErrReasoningUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Empty(t, res.FinalText)
	require.Len(t, res.History, 1)
	assert.Equal(t, role.User, res.History[0].Role)
}

func TestRunTerminatesOnFinalAnswer(t *testing.T) {
	for n := 0; n < 5; n++ {
		t.Run(fmt.Sprintf("after %d cycles", n), func(t *testing.T) {
			replies := make([]reply, 0, n+1)
			for i := range n {
				replies = append(replies, toolCalls(content.ToolCall{Name: "echo", Arguments: fmt.Sprintf(`{"i":%d}`, i)}))
			}
			replies = append(replies, text("done"))

			p := &sequenceCompleter{replies: replies}
			a := New("sleuth", p, newToolBox(t, echoTool()), Options{MaxIterations: 5})

			res, err := a.Run(context.Background(), "q")
			require.NoError(t, err)

			assert.Equal(t, "done", res.FinalText)
			assert.Equal(t, n, res.Iterations)
			assert.Equal(t, n+1, p.calls())
		})
	}
}

func TestRunMaxIterations(t *testing.T) {
	for _, limit := range []int{1, 3, 7} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			p := &loopCompleter{}
			a := New("sleuth", p, newToolBox(t, echoTool()), Options{MaxIterations: limit})

			res, err := a.Run(context.Background(), "loop forever")

			require.ErrorIs(t, err, ErrMaxIterations)
			assert.Equal(t, limit, res.Iterations)
			assert.Equal(t, limit, p.count)
			// user + limit * (assistant + result)
			assert.Len(t, res.History, 1+2*limit)
		})
	}
}

func TestRunHistoryIsAppendOnly(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		toolCalls(content.ToolCall{Name: "echo", Arguments: `{"a":1}`}),
		toolCalls(
			content.ToolCall{Name: "echo", Arguments: `{"b":2}`},
			content.ToolCall{Name: "missing"},
		),
		text("done"),
	}}
	a := New("sleuth", p, newToolBox(t, echoTool()), Options{})

	res, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	snapshots := append(p.seen, res.History)

	for k := 1; k < len(snapshots); k++ {
		prev, next := snapshots[k-1], snapshots[k]
		require.GreaterOrEqual(t, len(next), len(prev))
		assert.Equal(t, prev, next[:len(prev)], "snapshot %d rewrote earlier messages", k)
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		failure(&modeladapter.StatusError{Code: 503, Body: "overloaded"}),
		failure(&modeladapter.RateLimitError{}),
		text("ok"),
	}}
	a := New("sleuth", p, nil, Options{
		Retry: RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	})

	res, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "ok", res.FinalText)
	assert.Equal(t, 3, p.calls())
	assert.Len(t, res.History, 2)
}

func TestRunRetryGivesUp(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		failure(&modeladapter.StatusError{Code: 502}),
		failure(&modeladapter.StatusError{Code: 502}),
		text("too late"),
	}}
	a := New("sleuth", p, nil, Options{
		Retry: RetryOptions{MaxAttempts: 2, BaseDelay: time.Millisecond},
	})

	_, err := a.Run(context.Background(), "q")

	require.ErrorIs(t, err, ErrReasoningUnavailable)
	assert.Equal(t, 2, p.calls())
}

func TestRunDoesNotRetryPermanentFailures(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		failure(&modeladapter.StatusError{Code: 401, Body: "bad key"}),
		text("unreachable"),
	}}
	a := New("sleuth", p, nil, Options{
		Retry: RetryOptions{MaxAttempts: 5, BaseDelay: time.Millisecond},
	})

	_, err := a.Run(context.Background(), "q")

	require.ErrorIs(t, err, ErrReasoningUnavailable)
	var se *modeladapter.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 401, se.Code)
	assert.Equal(t, 1, p.calls())
}

func TestRunInvalidDecision(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{
		{msg: message.New("", role.Assistant, content.ToolCall{ID: "1"})},
	}}
	a := New("sleuth", p, nil, Options{Retry: RetryOptions{MaxAttempts: 3, BaseDelay: time.Millisecond}})

	res, err := a.Run(context.Background(), "q")

	require.ErrorIs(t, err, ErrInvalidDecision)
	assert.Equal(t, 1, p.calls(), "invalid replies are not retried")
	assert.Len(t, res.History, 1)
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &sequenceCompleter{replies: []reply{text("never")}}
	a := New("sleuth", p, nil, Options{})

	res, err := a.Run(ctx, "q")

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.calls())
	assert.Len(t, res.History, 1)
}

func TestRunCancelledWhileReasoning(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	a := New("sleuth", blockingCompleter{}, nil, Options{})

	_, err := a.Run(ctx, "q")

	require.ErrorIs(t, err, ErrReasoningUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunEvents(t *testing.T) {
	var log eventLog
	p := &sequenceCompleter{replies: []reply{
		toolCalls(content.ToolCall{ID: "1", Name: "echo", Arguments: `{}`}),
		text("done"),
	}}
	a := New("sleuth", p, newToolBox(t, echoTool()), Options{OnEvent: log.record})

	_, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []EventKind{
		EventReasoningStart,
		EventDecision,
		EventToolCallStart,
		EventToolCallEnd,
		EventReasoningStart,
		EventDecision,
		EventRunEnd,
	}, log.kinds())

	runID := log.events[0].RunID
	assert.NotEmpty(t, runID)
	for _, ev := range log.events {
		assert.Equal(t, "sleuth", ev.Agent)
		assert.Equal(t, runID, ev.RunID)
	}

	assert.IsType(t, ActionRequested{}, log.events[1].Decision)
	assert.Equal(t, 1, log.events[1].Iteration)
	assert.Equal(t, FinalAnswer{Text: "done"}, log.events[5].Decision)
	assert.Equal(t, 2, log.events[5].Iteration)

	end := log.events[6]
	assert.Equal(t, "done", end.Text)
	assert.NoError(t, end.Err)
	assert.Equal(t, 1, end.Iteration)
}

func TestRunEndEventCarriesError(t *testing.T) {
	var log eventLog
	a := New("sleuth", &errorCompleter{err: errors.New("down")}, nil, Options{OnEvent: log.record})

	_, err := a.Run(context.Background(), "q")
	require.Error(t, err)

	kinds := log.kinds()
	require.NotEmpty(t, kinds)
	end := log.events[len(log.events)-1]
	assert.Equal(t, EventRunEnd, end.Kind)
	assert.ErrorIs(t, end.Err, ErrReasoningUnavailable)
}

func TestRunSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	p := &sequenceCompleter{replies: []reply{
		toolCalls(
			content.ToolCall{ID: "1", Name: "echo", Arguments: `{}`},
			content.ToolCall{ID: "2", Name: "missing"},
		),
		text("done"),
	}}
	a := New("sleuth", p, newToolBox(t, echoTool()), Options{Tracer: tp.Tracer("test")})

	_, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	counts := map[string]int{}
	var failedTools int
	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		counts[s.Name()]++
		if s.Name() == "agent.run" {
			root = s
		}
		if s.Name() == "agent.tool" && s.Status().Code == codes.Error {
			failedTools++
		}
	}

	assert.Equal(t, map[string]int{"agent.run": 1, "agent.reason": 2, "agent.tool": 2}, counts)
	assert.Equal(t, 1, failedTools)
	require.NotNil(t, root)
	for _, s := range sr.Ended() {
		assert.Equal(t, root.SpanContext().TraceID(), s.SpanContext().TraceID())
	}
}

func TestRunConcurrentRuns(t *testing.T) {
	a := New("sleuth", &echoQueryCompleter{}, nil, Options{})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := fmt.Sprintf("question %d", i)
			res, err := a.Run(context.Background(), q)
			assert.NoError(t, err)
			assert.Equal(t, strings.ToUpper(q), res.FinalText)
			assert.Len(t, res.History, 2)
		}()
	}
	wg.Wait()
}

func TestRunWithMiddleware(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Runner) Runner {
			return RunnerFunc(func(ctx context.Context, query string) (Result, error) {
				order = append(order, name)
				return next.Run(ctx, query)
			})
		}
	}

	p := &sequenceCompleter{replies: []reply{text("fine")}}
	a := New("sleuth", p, nil, Options{
		Middleware: []Middleware{
			mw("outer"),
			mw("inner"),
			OutputGuardrail(func(r Result) error {
				if strings.Contains(r.FinalText, "secret") {
					return errors.New("leak")
				}
				return nil
			}),
		},
	})

	res, err := a.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "fine", res.FinalText)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRunWithInstructions(t *testing.T) {
	p := &sequenceCompleter{replies: []reply{text("ok")}}
	a := New("sleuth", p, nil, Options{Instructions: "Cite sources."})

	res, err := a.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, role.System, p.seen[0][0].Role)
	assert.Equal(t, "Cite sources.", p.seen[0][0].TextContent())
	assert.Len(t, res.History, 2, "system prompt is not part of the run history")
}

// panicCompleter delegates to inner until it has answered after calls, then
// panics.
type panicCompleter struct {
	inner modeladapter.Completer
	after int
	n     int
}

func (p *panicCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	p.n++
	if p.n > p.after {
		panic("oracle exploded")
	}
	return p.inner.Complete(ctx, c, tools)
}

func TestRunPanicKeepsHistory(t *testing.T) {
	p := &panicCompleter{
		inner: &sequenceCompleter{replies: []reply{
			toolCalls(content.ToolCall{ID: "x", Name: "lookup", Arguments: `{"topic":"X"}`}),
		}},
		after: 1,
	}
	a := New("sleuth", p, newToolBox(t, lookupTool()), Options{Middleware: []Middleware{Recovery()}})

	res, err := a.Run(context.Background(), "tell me about X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent panicked: oracle exploded")

	assert.Empty(t, res.FinalText)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.History, 3)
	tr, ok := res.History[2].ToolResult()
	require.True(t, ok)
	assert.Equal(t, "X facts", tr.Content)
}
