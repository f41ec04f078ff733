// Package chats provides the provider-agnostic conversation model used by the
// agent loop.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/sleuth/pkg/chats/role]: conversation roles (system, user, assistant, tool_result)
//   - [github.com/germanamz/sleuth/pkg/chats/content]: content parts (text, tool call, tool result)
//   - [github.com/germanamz/sleuth/pkg/chats/message]: messages composed of a role, sender, and content parts
//   - [github.com/germanamz/sleuth/pkg/chats/chat]: append-only conversation container
//
// No provider or API code is included: chats is a foundation layer
// that adapters can build on.
package chats
