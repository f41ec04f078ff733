// Package providers groups the concrete reasoning oracle adapters.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/sleuth/pkg/providers/openai]: OpenAI Chat Completions and compatible endpoints (Grok, Ollama) via base URL
//   - [github.com/germanamz/sleuth/pkg/providers/anthropic]: Anthropic Messages API
//
// Shared HTTP plumbing lives in [github.com/germanamz/sleuth/pkg/modeladapter].
package providers
