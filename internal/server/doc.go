// Package server provides the HTTP surfaces of nextup.
//
// APIServer serves GET /api/events. Each request obtains a credential from a
// CredentialSource, which may block while an interactive authorization
// completes, and returns the upcoming events of an EventSource as a JSON
// array. A credential failure is answered with a plain-text 500; provider
// failures arrive as an empty list. CORS is open to every origin.
//
// HealthChecker adds /healthz, /readyz and /healthz/detailed to the API
// router. MetricsServer exposes the Prometheus scrape endpoint of an
// instrumentation.Provider on its own address.
package server
