package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersAllInstrumentsWithoutPanic(t *testing.T) {
	m := New()
	require.NotNil(t, m)

	m.TelemetryIngested.WithLabelValues("AUV-1").Inc()
	m.AlertsCreated.WithLabelValues("environmental", "critical").Inc()
	m.AlertsDeduplicated.WithLabelValues("zone_violation").Inc()
	m.DeadVehicleScans.Inc()
	m.DeadVehicleOverdue.Set(3)
	m.SubscriberCount.Set(2)
	m.UpstreamReconnects.Inc()
	m.UpstreamFramesBad.Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "deepseaguard_insight_engine_telemetry_points_ingested_total")
}
