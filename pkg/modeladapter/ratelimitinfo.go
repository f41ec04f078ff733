package modeladapter

import (
	"net/http"
	"strconv"
	"time"
)

// RateLimitInfo holds the provider's view of the caller's remaining quota, as
// reported in response headers.
type RateLimitInfo struct {
	RemainingRequests int
	RemainingTokens   int
	RequestsReset     time.Time
	TokensReset       time.Time
}

// Backoff returns how long to hold the next request when the provider reports
// the request quota as exhausted. It is zero otherwise.
func (i *RateLimitInfo) Backoff(now time.Time) time.Duration {
	if i == nil || i.RemainingRequests > 0 || i.RequestsReset.IsZero() {
		return 0
	}
	if d := i.RequestsReset.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RateLimitInfoReporter provides the most recently observed rate limit info.
type RateLimitInfoReporter interface {
	LastRateLimitInfo() *RateLimitInfo
}

// RateLimitHeaderParser extracts rate limit info from HTTP response headers.
// It receives the current time so tests can control the clock.
type RateLimitHeaderParser func(h http.Header, now time.Time) *RateLimitInfo

type rateLimitHeaders struct {
	requests, tokens, requestsReset, tokensReset string
}

var (
	anthropicHeaders = rateLimitHeaders{
		requests:      "anthropic-ratelimit-requests-remaining",
		tokens:        "anthropic-ratelimit-tokens-remaining",
		requestsReset: "anthropic-ratelimit-requests-reset",
		tokensReset:   "anthropic-ratelimit-tokens-reset",
	}
	openAIHeaders = rateLimitHeaders{
		requests:      "x-ratelimit-remaining-requests",
		tokens:        "x-ratelimit-remaining-tokens",
		requestsReset: "x-ratelimit-reset-requests",
		tokensReset:   "x-ratelimit-reset-tokens",
	}
)

// ParseAnthropicRateLimitHeaders parses anthropic-ratelimit-* headers.
func ParseAnthropicRateLimitHeaders(h http.Header, now time.Time) *RateLimitInfo {
	return anthropicHeaders.parse(h, now)
}

// ParseOpenAIRateLimitHeaders parses x-ratelimit-* headers, used by OpenAI
// and most compatible endpoints.
func ParseOpenAIRateLimitHeaders(h http.Header, now time.Time) *RateLimitInfo {
	return openAIHeaders.parse(h, now)
}

func (n rateLimitHeaders) parse(h http.Header, now time.Time) *RateLimitInfo {
	reqRemaining, tokRemaining := h.Get(n.requests), h.Get(n.tokens)
	if reqRemaining == "" && tokRemaining == "" {
		return nil
	}

	// A missing request counter must not read as "exhausted".
	info := &RateLimitInfo{RemainingRequests: -1, RemainingTokens: -1}
	if v, err := strconv.Atoi(reqRemaining); err == nil {
		info.RemainingRequests = v
	}
	if v, err := strconv.Atoi(tokRemaining); err == nil {
		info.RemainingTokens = v
	}
	info.RequestsReset = parseResetTime(h.Get(n.requestsReset), now)
	info.TokensReset = parseResetTime(h.Get(n.tokensReset), now)

	return info
}

// parseResetTime accepts RFC 3339 timestamps or Go durations ("6s", "1m30s")
// relative to now.
func parseResetTime(val string, now time.Time) time.Time {
	if val == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t
	}
	if d, err := time.ParseDuration(val); err == nil {
		return now.Add(d)
	}
	return time.Time{}
}
