// Package logging provides structured logging utilities for nextup.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Build the process logger from configuration:
//
//	logger, err := logging.New(os.Stderr, "info", "text")
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "calendar.list")
//	logger.Info("listing events",
//	    logging.Status("success"))
//
// # Security Considerations
//
// OAuth access and refresh tokens are never logged directly; use
// SanitizeToken to record that a token is present.
package logging
