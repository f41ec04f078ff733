// Package engine is the composition root: it assembles provider adapters,
// MCP tool sources and the agent from configuration and exposes them through
// Session and EventBus. Frontends (the CLI, the TUI, the MCP server) talk to
// Engine and never wire lower-level packages themselves.
package engine
