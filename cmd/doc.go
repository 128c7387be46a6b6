// Package cmd implements the command-line interface for nextup.
//
// This package provides the following commands:
//   - serve: Start the HTTP API serving GET /api/events (default)
//   - auth login|status|logout: Manage the cached Google credential
//   - events: Print the next events to stdout
//   - mcp: Expose the events as an MCP tool over stdio
//   - version: Display version information
//
// Persistent flags override the configuration resolved by internal/config.
package cmd
