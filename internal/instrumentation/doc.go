// Package instrumentation provides OpenTelemetry instrumentation for nextup.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Google API Metrics:
//   - google_api_operations_total: Counter of Google API operations by service, operation, status
//   - google_api_operation_duration_seconds: Histogram of Google API operation durations
//
// Credential Metrics:
//   - oauth_auth_total: Counter of interactive authorizations by result
//   - oauth_token_refresh_total: Counter of token refresh attempts by result
//   - credential_resolutions_total: Counter of credential resolutions by stored state
//
// Calendar Metrics:
//   - calendar_events_returned_total: Counter of events handed to clients
//
// # Tracing
//
// Spans are created for credential resolution (credentials.obtain) and
// Google API calls (google.<service>.<operation>).
//
// # Audit
//
// AuditLogger records every credential lifecycle step (resolve, refresh,
// authorize, persist, revoke) as a structured log line.
//
// # Configuration
//
// Instrumentation is configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: nextup)
//   - AUDIT_LOGGING_ENABLED: Enable/disable credential audit logs (default: true)
package instrumentation
