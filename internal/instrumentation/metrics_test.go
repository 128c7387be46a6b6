package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

// sumCounter returns the total of all int64 sum data points of the named metric
// whose attributes contain the given key/value (empty key matches everything).
func sumCounter(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if key != "" {
					v, found := dp.Attributes.Value(attribute.Key(key))
					if !found || v.AsString() != value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/api/events", 200, 100*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/api/events", 500, 50*time.Millisecond)

	assert.Equal(t, int64(2), sumCounter(t, reader, "http_requests_total", "", ""))
	assert.Equal(t, int64(1), sumCounter(t, reader, "http_requests_total", attrStatus, "500"))
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationList, StatusSuccess, 200*time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationList, StatusError, 500*time.Millisecond)

	assert.Equal(t, int64(1), sumCounter(t, reader, "google_api_operations_total", attrStatus, StatusError))
	assert.Equal(t, int64(2), sumCounter(t, reader, "google_api_operations_total", attrService, ServiceCalendar))
}

func TestMetrics_CredentialLifecycle(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthAuth(ctx, OAuthResultFailure)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultRejected)
	m.RecordCredentialResolution(ctx, "loaded_valid")
	m.RecordCredentialResolution(ctx, "loaded_valid")
	m.RecordCredentialResolution(ctx, "no_file")

	assert.Equal(t, int64(2), sumCounter(t, reader, "oauth_auth_total", "", ""))
	assert.Equal(t, int64(1), sumCounter(t, reader, "oauth_token_refresh_total", attrResult, OAuthResultRejected))
	assert.Equal(t, int64(2), sumCounter(t, reader, "credential_resolutions_total", attrState, "loaded_valid"))
	assert.Equal(t, int64(1), sumCounter(t, reader, "credential_resolutions_total", attrState, "no_file"))
}

func TestMetrics_RecordEventsReturned(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEventsReturned(ctx, 3)
	m.RecordEventsReturned(ctx, 0)

	assert.Equal(t, int64(3), sumCounter(t, reader, "calendar_events_returned_total", "", ""))
}

func TestMetrics_RecordToolInvocation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolInvocation(ctx, "calendar_upcoming_events", StatusSuccess, 10*time.Millisecond)
	m.RecordToolInvocation(ctx, "calendar_upcoming_events", StatusError, 10*time.Millisecond)

	assert.Equal(t, int64(2), sumCounter(t, reader, "mcp_tool_invocations_total", attrTool, "calendar_upcoming_events"))
	assert.Equal(t, int64(1), sumCounter(t, reader, "mcp_tool_invocations_total", attrStatus, StatusError))
}

func TestMetrics_NoOp_WhenUninitialized(t *testing.T) {
	ctx := context.Background()

	// Zero value and nil receivers must not panic
	for _, m := range []*Metrics{{}, nil} {
		m.RecordHTTPRequest(ctx, "GET", "/api/events", 200, time.Second)
		m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationList, StatusSuccess, time.Second)
		m.RecordOAuthAuth(ctx, OAuthResultSuccess)
		m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
		m.RecordCredentialResolution(ctx, "no_file")
		m.RecordEventsReturned(ctx, 1)
		m.RecordToolInvocation(ctx, "calendar_upcoming_events", StatusSuccess, time.Second)
	}
}
