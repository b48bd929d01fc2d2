// Package driving lists what the CLI, the MCP server and the TUI may ask of
// the core. internal/core/services provides every implementation.
package driving
