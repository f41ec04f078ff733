package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Runner answers a query.
type Runner interface {
	Run(ctx context.Context, query string) (Result, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context, query string) (Result, error)

// Run calls the underlying function.
func (f RunnerFunc) Run(ctx context.Context, query string) (Result, error) {
	return f(ctx, query)
}

// Middleware wraps a Runner, returning a new Runner with added behaviour.
type Middleware func(next Runner) Runner

// --- Timeout middleware ---

// Timeout returns a Middleware that bounds the whole run with a deadline.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, query string) (Result, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next.Run(ctx, query)
		})
	}
}

// --- Recovery middleware ---

// Recovery returns a Middleware that catches panics and converts them to errors.
// Panics inside the loop itself are already converted by Agent.Run with the
// history kept; Recovery covers the middleware wrapped inside it.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, query string) (res Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("agent panicked: %v", r)
				}
			}()

			return next.Run(ctx, query)
		})
	}
}

// --- Logger middleware ---

// Logger returns a Middleware that logs run start, duration, cycles and error.
func Logger(log *slog.Logger, name string) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, query string) (Result, error) {
			log.InfoContext(ctx, "agent started", "agent", name, "query_len", len(query))

			start := time.Now()

			res, err := next.Run(ctx, query)

			duration := time.Since(start)

			if err != nil {
				log.ErrorContext(ctx, "agent finished with error",
					"agent", name,
					"duration", duration,
					"iterations", res.Iterations,
					"error", err,
				)
			} else {
				log.InfoContext(ctx, "agent finished",
					"agent", name,
					"duration", duration,
					"iterations", res.Iterations,
				)
			}

			return res, err
		})
	}
}

// --- OutputGuardrail middleware ---

// OutputGuardrail returns a Middleware that validates the final answer. If
// check returns an error, the run fails with it and FinalText is cleared;
// the history is kept.
func OutputGuardrail(check func(Result) error) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context, query string) (Result, error) {
			res, err := next.Run(ctx, query)
			if err != nil {
				return res, err
			}

			if checkErr := check(res); checkErr != nil {
				res.FinalText = ""
				return res, checkErr
			}

			return res, nil
		})
	}
}
