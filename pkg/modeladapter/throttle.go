package modeladapter

import (
	"context"
	"fmt"
	"time"

	"github.com/germanamz/sleuth/pkg/chats/chat"
	"github.com/germanamz/sleuth/pkg/chats/message"
	"github.com/germanamz/sleuth/pkg/modeladapter/usage"
	"github.com/germanamz/sleuth/pkg/tools/toolbox"
	"golang.org/x/time/rate"
)

var _ Completer = (*ThrottledCompleter)(nil)

// ThrottleOpts configures a ThrottledCompleter.
type ThrottleOpts struct {
	RequestsPerMinute int // 0 disables pacing.
	Burst             int // Defaults to 1.
}

// ThrottledCompleter paces calls to an inner Completer with a token bucket.
// When the inner completer reports provider rate limit info, calls are also
// held until an exhausted request quota resets. It never retries; retry
// policy belongs to the caller.
type ThrottledCompleter struct {
	inner   Completer
	limiter *rate.Limiter

	fallback usage.Tracker
	nowFunc  func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewThrottledCompleter wraps inner with request pacing.
func NewThrottledCompleter(inner Completer, opts ThrottleOpts) *ThrottledCompleter {
	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(opts.RequestsPerMinute) / 60.0)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &ThrottledCompleter{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		nowFunc: time.Now,
		sleep:   sleepCtx,
	}
}

// Complete waits for a request slot, then delegates to the inner completer.
func (t *ThrottledCompleter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	if r, ok := t.inner.(RateLimitInfoReporter); ok {
		if d := r.LastRateLimitInfo().Backoff(t.nowFunc()); d > 0 {
			if err := t.sleep(ctx, d); err != nil {
				return message.Message{}, fmt.Errorf("throttle: %w", err)
			}
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return message.Message{}, fmt.Errorf("throttle: %w", err)
	}

	return t.inner.Complete(ctx, c, tools)
}

// UsageTracker forwards to the inner completer's tracker when it has one.
func (t *ThrottledCompleter) UsageTracker() *usage.Tracker {
	if r, ok := t.inner.(UsageReporter); ok {
		return r.UsageTracker()
	}
	return &t.fallback
}

// ModelMaxTokens forwards to the inner completer, or 0 when unknown.
func (t *ThrottledCompleter) ModelMaxTokens() int {
	if r, ok := t.inner.(UsageReporter); ok {
		return r.ModelMaxTokens()
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
