// Package tools exposes the upcoming events as an MCP tool.
//
// The calendar_upcoming_events tool runs the same credential and fetch path
// as GET /api/events and returns the event array as JSON, or as one
// "<start> <summary>" line per event when called with format "text".
// Credential failures become tool errors rather than protocol errors.
package tools
