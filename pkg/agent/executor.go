package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/sleuth/pkg/agentctx"
	"github.com/germanamz/sleuth/pkg/chats/content"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxParallelTools bounds how many tool calls of one batch run at once.
const DefaultMaxParallelTools = 4

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	MaxParallel int           // Concurrent calls per batch (0 = DefaultMaxParallelTools, 1 = sequential).
	ToolTimeout time.Duration // Per-call deadline (0 = none).
	Logger      *slog.Logger
	Tracer      trace.Tracer
	OnEvent     EventFunc
}

// Executor runs batches of tool calls against a ToolBox.
type Executor struct {
	tools *toolbox.ToolBox
	opts  ExecutorOptions
}

// NewExecutor creates an Executor. Missing logger and tracer default to
// no-op implementations.
func NewExecutor(tools *toolbox.ToolBox, opts ExecutorOptions) *Executor {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallelTools
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = defaultTracer()
	}
	return &Executor{tools: tools, opts: opts}
}

// Execute runs calls and returns one result per call, in call order:
// result[i] answers calls[i]. A failing call never affects its siblings;
// cancelling ctx cancels every call still in flight.
func (e *Executor) Execute(ctx context.Context, calls []content.ToolCall) []content.ToolResult {
	return e.execute(ctx, calls, 0)
}

func (e *Executor) execute(ctx context.Context, calls []content.ToolCall, iteration int) []content.ToolResult {
	results := make([]content.ToolResult, len(calls))

	// A plain Group: no derived context, so one failure cancels nothing.
	var g errgroup.Group
	g.SetLimit(e.opts.MaxParallel)

	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.call(ctx, call, iteration)
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func (e *Executor) call(ctx context.Context, call content.ToolCall, iteration int) content.ToolResult {
	ctx, span := e.opts.Tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("agent.name", agentctx.AgentNameFromContext(ctx)),
		attribute.Int("agent.iteration", iteration),
		attribute.String("tool.name", call.Name),
		attribute.String("tool.call_id", call.ID),
	))
	defer span.End()

	e.emit(ctx, Event{Kind: EventToolCallStart, Iteration: iteration, Call: call})
	start := time.Now()

	var result content.ToolResult
	if err := ctx.Err(); err != nil {
		result = content.Failure(call.ID, fmt.Sprintf("tool %s failed: %v", call.Name, err))
	} else {
		callCtx := ctx
		if e.opts.ToolTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.opts.ToolTimeout)
			defer cancel()
		}
		result = e.tools.Call(callCtx, call)
	}

	elapsed := time.Since(start)

	span.SetAttributes(attribute.Bool("tool.failed", result.Failed))
	if result.Failed {
		span.SetStatus(codes.Error, result.ErrorDetail)
	}

	e.opts.Logger.DebugContext(ctx, "tool call finished",
		"agent", agentctx.AgentNameFromContext(ctx),
		"iteration", iteration,
		"tool", call.Name,
		"call_id", call.ID,
		"failed", result.Failed,
		"duration", elapsed,
	)

	e.emit(ctx, Event{Kind: EventToolCallEnd, Iteration: iteration, Call: call, Result: result, Duration: elapsed})

	return result
}

func (e *Executor) emit(ctx context.Context, ev Event) {
	if e.opts.OnEvent == nil {
		return
	}
	ev.Agent = agentctx.AgentNameFromContext(ctx)
	ev.RunID = agentctx.RunIDFromContext(ctx)
	ev.Time = time.Now()
	e.opts.OnEvent(ctx, ev)
}
