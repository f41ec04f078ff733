// Package usage accumulates token counts reported by model providers.
package usage

import "sync"

// TokenCount holds input and output token counts for a single LLM call.
type TokenCount struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the sum of input and output tokens.
func (tc TokenCount) Total() int {
	return tc.InputTokens + tc.OutputTokens
}

// Summary is a point-in-time view of a Tracker.
type Summary struct {
	Calls int
	TokenCount
}

// Tracker accumulates token usage across LLM calls. The zero value is ready
// to use and it is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	last  TokenCount
	total TokenCount
	calls int
}

// Add records the usage of one call.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = tc
	t.total.InputTokens += tc.InputTokens
	t.total.OutputTokens += tc.OutputTokens
	t.calls++
}

// Last returns the most recent entry. The bool is false when nothing was
// recorded yet.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last, t.calls > 0
}

// Total returns the aggregate token count across all calls.
func (t *Tracker) Total() TokenCount {
	return t.Summary().TokenCount
}

// Count returns the number of recorded calls.
func (t *Tracker) Count() int {
	return t.Summary().Calls
}

// Summary returns the call count and aggregate tokens together.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Summary{Calls: t.calls, TokenCount: t.total}
}

// Reset clears all recorded usage.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last, t.total, t.calls = TokenCount{}, TokenCount{}, 0
}
