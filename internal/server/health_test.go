package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker("1.2.3")
	h.SetReady(false)
	h.SetShuttingDown()

	rec, body := serve(t, h.LivenessHandler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, healthStatusOK, body["status"])
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*HealthChecker)
		wantCode     int
		wantStatus   string
		wantReady    string
		wantShutdown string
	}{
		{
			name:         "ready",
			setup:        func(*HealthChecker) {},
			wantCode:     http.StatusOK,
			wantStatus:   healthStatusOK,
			wantReady:    healthStatusOK,
			wantShutdown: healthStatusOK,
		},
		{
			name:         "not ready",
			setup:        func(h *HealthChecker) { h.SetReady(false) },
			wantCode:     http.StatusServiceUnavailable,
			wantStatus:   healthStatusNotReady,
			wantReady:    healthStatusNotReady,
			wantShutdown: healthStatusOK,
		},
		{
			name:         "shutting down",
			setup:        func(h *HealthChecker) { h.SetShuttingDown() },
			wantCode:     http.StatusServiceUnavailable,
			wantStatus:   healthStatusNotReady,
			wantReady:    healthStatusOK,
			wantShutdown: healthStatusShuttingDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker("")
			tt.setup(h)

			rec, body := serve(t, h.ReadinessHandler(), "/readyz")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, body["status"])

			checks, ok := body["checks"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantReady, checks["ready"])
			assert.Equal(t, tt.wantShutdown, checks["shutdown"])
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	h := NewHealthChecker("1.2.3")

	rec, body := serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, healthStatusOK, body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.NotEmpty(t, body["uptime"])

	h.SetShuttingDown()
	rec, body = serve(t, h.DetailedHealthHandler(), "/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, healthStatusShuttingDown, body["status"])
}

func TestHealthChecker_RegisterHealthEndpoints(t *testing.T) {
	h := NewHealthChecker("")
	r := chi.NewRouter()
	h.RegisterHealthEndpoints(r)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec, _ := serve(t, r, path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.True(t, h.IsReady())
}
