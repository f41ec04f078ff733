// Package agent implements the tool-using reasoning loop: a Reasoner decides
// between answering and calling tools, an Executor runs requested tools
// concurrently, and Agent drives the REASONING/ACTING/DONE state machine.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/germanamz/sleuth/pkg/agentctx"
	"github.com/germanamz/sleuth/pkg/chats/chat"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/chats/role"
	"github.com/germanamz/sleuth/pkg/modeladapter"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxIterations bounds the reasoning/acting cycles of one run.
const DefaultMaxIterations = 10

const (
	tracerName = "github.com/germanamz/sleuth/pkg/agent"
	userSender = "user"
)

// RetryOptions is the loop's policy for transient oracle failures. Retries
// are off unless MaxAttempts is greater than 1.
type RetryOptions struct {
	MaxAttempts int           // Total attempts per reasoning step, including the first.
	BaseDelay   time.Duration // First backoff interval (default 500ms).
	MaxDelay    time.Duration // Backoff ceiling (default 10s).
}

// Options configures an Agent.
type Options struct {
	Instructions     string        // System prompt for every reasoning step.
	MaxIterations    int           // Reasoning/acting cycles per run (<= 0 = DefaultMaxIterations).
	MaxParallelTools int           // Concurrent tool calls per batch (<= 0 = DefaultMaxParallelTools).
	ToolTimeout      time.Duration // Per tool call deadline (0 = none).
	Retry            RetryOptions
	Middleware       []Middleware // Applied around Run(), first is outermost.
	Logger           *slog.Logger
	OnEvent          EventFunc
	Tracer           trace.Tracer
}

// Result is the outcome of a run. History is always set, also when Run
// returns an error; FinalText is only set on success.
type Result struct {
	FinalText  string
	History    []message.Message
	Iterations int // Completed reasoning/acting cycles.
}

// Agent answers queries by alternating reasoning and tool execution. Each Run
// owns its history, so one Agent may serve concurrent runs.
type Agent struct {
	name     string
	tools    *toolbox.ToolBox
	opts     Options
	reasoner *Reasoner
	executor *Executor
	log      *slog.Logger
	tracer   trace.Tracer
}

// New creates an Agent. tools may be nil for an agent without tools.
func New(name string, completer modeladapter.Completer, tools *toolbox.ToolBox, opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = defaultTracer()
	}

	return &Agent{
		name:  name,
		tools: tools,
		opts:  opts,
		reasoner: NewReasoner(completer, tools, ReasonerOptions{
			Instructions: opts.Instructions,
			Sender:       name,
		}),
		executor: NewExecutor(tools, ExecutorOptions{
			MaxParallel: opts.MaxParallelTools,
			ToolTimeout: opts.ToolTimeout,
			Logger:      opts.Logger,
			Tracer:      opts.Tracer,
			OnEvent:     opts.OnEvent,
		}),
		log:    opts.Logger,
		tracer: opts.Tracer,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *toolbox.ToolBox { return a.tools }

// Run answers query, applying the configured middleware around the loop.
func (a *Agent) Run(ctx context.Context, query string) (Result, error) {
	var runner Runner = RunnerFunc(a.run)

	for i := len(a.opts.Middleware) - 1; i >= 0; i-- {
		runner = a.opts.Middleware[i](runner)
	}

	return runner.Run(ctx, query)
}

func (a *Agent) run(ctx context.Context, query string) (res Result, err error) {
	runID := uuid.NewString()
	ctx = agentctx.WithAgentName(ctx, a.name)
	ctx = agentctx.WithRunID(ctx, runID)

	ctx, span := a.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.name", a.name),
		attribute.String("agent.run_id", runID),
	))

	start := time.Now()
	history := &chat.Chat{}

	defer func() {
		if r := recover(); r != nil {
			res.FinalText = ""
			err = fmt.Errorf("agent panicked: %v", r)
		}
		res.History = history.Messages()

		span.SetAttributes(attribute.Int("agent.iterations", res.Iterations))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		a.emit(ctx, Event{
			Kind:      EventRunEnd,
			Iteration: res.Iterations,
			Text:      res.FinalText,
			Err:       err,
			Duration:  time.Since(start),
		})
	}()

	if err := history.Append(message.NewText(userSender, role.User, query)); err != nil {
		return res, err
	}

	state := StateReasoning
	var pending []content.ToolCall

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("agent: %w", err)
		}

		cycle := res.Iterations + 1

		switch state {
		case StateReasoning:
			if res.Iterations >= a.opts.MaxIterations {
				return res, fmt.Errorf("%w after %d cycles", ErrMaxIterations, res.Iterations)
			}

			decision, reply, err := a.reason(ctx, history.Messages(), cycle)
			if err != nil {
				return res, err
			}

			step, err := Route(decision)
			if err != nil {
				return res, err
			}

			if err := history.Append(reply); err != nil {
				return res, fmt.Errorf("%w: %w", ErrInvalidDecision, err)
			}

			a.emit(ctx, Event{Kind: EventDecision, Iteration: cycle, Decision: decision})

			switch step {
			case StepTerminate:
				res.FinalText = decision.(FinalAnswer).Text
				state = StateDone
			case StepAct:
				pending = decision.(ActionRequested).Calls
				state = StateActing
			}

			a.log.DebugContext(ctx, "agent transition",
				"agent", a.name,
				"iteration", cycle,
				"step", step.String(),
				"calls", len(pending),
			)

		case StateActing:
			results := a.executor.execute(ctx, pending, cycle)

			msgs := make([]message.Message, len(results))
			for i, r := range results {
				msgs[i] = message.FromResult(pending[i].Name, r)
			}
			if err := history.Append(msgs...); err != nil {
				return res, fmt.Errorf("agent: append tool results: %w", err)
			}

			res.Iterations = cycle
			pending = nil
			state = StateReasoning
		}
	}

	return res, nil
}

type decided struct {
	decision Decision
	reply    message.Message
}

// reason runs one reasoning step, retrying transient oracle failures when a
// retry policy is configured.
func (a *Agent) reason(ctx context.Context, history []message.Message, cycle int) (Decision, message.Message, error) {
	ctx, span := a.tracer.Start(ctx, "agent.reason", trace.WithAttributes(
		attribute.String("agent.name", a.name),
		attribute.Int("agent.iteration", cycle),
	))
	defer span.End()

	a.emit(ctx, Event{Kind: EventReasoningStart, Iteration: cycle})

	attempt := 0
	op := func() (decided, error) {
		attempt++
		d, reply, err := a.reasoner.Decide(ctx, history)
		if err == nil {
			return decided{decision: d, reply: reply}, nil
		}
		if !a.retryable(ctx, err) {
			return decided{}, backoff.Permanent(err)
		}
		a.log.WarnContext(ctx, "reasoning failed, retrying",
			"agent", a.name,
			"iteration", cycle,
			"attempt", attempt,
			"error", err,
		)
		return decided{}, err
	}

	var (
		out decided
		err error
	)
	if a.opts.Retry.MaxAttempts > 1 {
		out, err = backoff.Retry(ctx, op,
			backoff.WithBackOff(a.retryBackOff()),
			backoff.WithMaxTries(uint(a.opts.Retry.MaxAttempts)), //nolint:gosec // checked > 1 above
		)
	} else {
		d, reply, decideErr := a.reasoner.Decide(ctx, history)
		out, err = decided{decision: d, reply: reply}, decideErr
	}

	if err != nil {
		if !errors.Is(err, ErrReasoningUnavailable) && !errors.Is(err, ErrInvalidDecision) {
			err = fmt.Errorf("%w: %w", ErrReasoningUnavailable, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, message.Message{}, err
	}

	span.SetAttributes(attribute.Int("agent.reason.attempts", max(attempt, 1)))

	return out.decision, out.reply, nil
}

func (a *Agent) retryable(ctx context.Context, err error) bool {
	return ctx.Err() == nil &&
		errors.Is(err, ErrReasoningUnavailable) &&
		modeladapter.IsTransient(err)
}

func (a *Agent) retryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	if a.opts.Retry.BaseDelay > 0 {
		b.InitialInterval = a.opts.Retry.BaseDelay
	}
	if a.opts.Retry.MaxDelay > 0 {
		b.MaxInterval = a.opts.Retry.MaxDelay
	}
	return b
}

func (a *Agent) emit(ctx context.Context, ev Event) {
	if a.opts.OnEvent == nil {
		return
	}
	ev.Agent = a.name
	ev.RunID = agentctx.RunIDFromContext(ctx)
	ev.Time = time.Now()
	a.opts.OnEvent(ctx, ev)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
