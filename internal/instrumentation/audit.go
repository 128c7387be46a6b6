package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Credential lifecycle actions recorded by the audit log.
const (
	ActionResolve   = "resolve"
	ActionRefresh   = "refresh"
	ActionAuthorize = "authorize"
	ActionPersist   = "persist"
	ActionRevoke    = "revoke"
)

// CredentialEvent captures one step of the credential lifecycle for audit
// logging. Token material is never part of an event.
type CredentialEvent struct {
	// Action is one of the Action* constants.
	Action string

	// State is the state the stored credential was found in.
	State string

	// Path is the credential file involved.
	Path string

	// Scopes are the scopes requested or granted.
	Scopes []string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewCredentialEvent creates a CredentialEvent with timing started.
// Call Complete when the step finishes.
func NewCredentialEvent(action string) *CredentialEvent {
	return &CredentialEvent{
		Action:    action,
		StartTime: time.Now(),
	}
}

// WithState sets the credential state.
func (e *CredentialEvent) WithState(state string) *CredentialEvent {
	e.State = state
	return e
}

// WithPath sets the credential file path.
func (e *CredentialEvent) WithPath(path string) *CredentialEvent {
	e.Path = path
	return e
}

// WithScopes sets the scopes involved.
func (e *CredentialEvent) WithScopes(scopes []string) *CredentialEvent {
	e.Scopes = scopes
	return e
}

// WithSpanContext copies trace identifiers from the span in ctx.
func (e *CredentialEvent) WithSpanContext(ctx context.Context) *CredentialEvent {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}

// Complete stamps the duration and outcome.
func (e *CredentialEvent) Complete(err error) *CredentialEvent {
	e.Duration = time.Since(e.StartTime)
	e.Success = err == nil
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Status returns "success" or "error".
func (e *CredentialEvent) Status() string {
	if e.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the structured attributes of the event.
func (e *CredentialEvent) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", e.Action),
		slog.String("status", e.Status()),
		slog.Duration("duration", e.Duration),
	}

	if e.State != "" {
		attrs = append(attrs, slog.String("state", e.State))
	}
	if e.Path != "" {
		attrs = append(attrs, slog.String("path", e.Path))
	}
	if len(e.Scopes) > 0 {
		attrs = append(attrs, slog.String("scopes", strings.Join(e.Scopes, " ")))
	}
	if e.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.TraceID))
	}
	if e.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", e.SpanID))
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}

	return attrs
}

// AuditLogger writes credential lifecycle events to a slog.Logger.
// A nil *AuditLogger discards everything.
type AuditLogger struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditLogger creates an enabled AuditLogger.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger.With("component", "audit"),
		enabled: config.Enabled,
	}
}

// SetEnabled toggles audit logging.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogCredentialEvent logs a completed credential event. Failures are
// logged at warn level.
func (al *AuditLogger) LogCredentialEvent(ctx context.Context, e *CredentialEvent) {
	if al == nil || !al.enabled || e == nil {
		return
	}

	level := slog.LevelInfo
	if !e.Success {
		level = slog.LevelWarn
	}

	al.logger.LogAttrs(ctx, level, "credential_"+e.Action, e.LogAttrs()...)
}
