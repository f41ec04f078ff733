// Package modeladapter defines the reasoning oracle contract used by the agent
// and the shared plumbing for HTTP-based LLM providers.
//
// It contains:
//   - [Completer] interface and embeddable [ModelAdapter] base struct with HTTP helpers, auth, and custom headers
//   - transport error types ([RateLimitError], [StatusError]) and [IsTransient] classification
//   - [ThrottledCompleter], optional request pacing in front of any Completer
//   - [github.com/germanamz/sleuth/pkg/modeladapter/usage]: thread-safe token usage tracker
//
// This package contains no provider-specific code: concrete adapters live in
// separate packages that import modeladapter.
package modeladapter
