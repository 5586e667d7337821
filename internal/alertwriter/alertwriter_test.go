package alertwriter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tritonminingco/deepseaguard/internal/models"
)

type fakeStore struct {
	nextID    int64
	active    map[string]int64 // vehicleID|kind -> id
	lastAlert models.Alert
}

func newFakeStore() *fakeStore {
	return &fakeStore{active: make(map[string]int64)}
}

func (f *fakeStore) CreateAlert(ctx context.Context, alert models.Alert, dedupe bool) (int64, bool, error) {
	key := alert.VehicleID + "|" + string(alert.Kind)
	if dedupe {
		if id, ok := f.active[key]; ok {
			return id, false, nil
		}
	}
	f.nextID++
	f.active[key] = f.nextID
	f.lastAlert = alert
	return f.nextID, true, nil
}

func TestWriteEnvironmentalDerivesCriticalSeverity(t *testing.T) {
	store := newFakeStore()
	w := New(store)

	report := models.EnvironmentalReport{
		VehicleID: "AUV-1",
		Timestamp: time.Now(),
		Alerts: []models.ParameterViolation{
			{Parameter: "temperature_c", Value: 5.0, Level: models.SeverityCritical},
		},
	}

	result, err := w.WriteEnvironmental(context.Background(), report)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, models.SeverityCritical, store.lastAlert.Severity)
}

func TestWriteEnvironmentalDedupesActiveAlert(t *testing.T) {
	store := newFakeStore()
	w := New(store)
	report := models.EnvironmentalReport{
		VehicleID: "AUV-1",
		Alerts: []models.ParameterViolation{
			{Parameter: "turbidity", Value: 0.5, Level: models.SeverityWarning},
		},
	}

	first, err := w.WriteEnvironmental(context.Background(), report)
	require.NoError(t, err)
	second, err := w.WriteEnvironmental(context.Background(), report)
	require.NoError(t, err)

	assert.True(t, first.Created)
	assert.False(t, second.Created)
	assert.Equal(t, first.AlertID, second.AlertID)
}

func TestWriteZoneViolationIsAlwaysCritical(t *testing.T) {
	store := newFakeStore()
	w := New(store)

	result, err := w.WriteZoneViolation(context.Background(), "AUV-2", "zone-a", 42)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, models.SeverityCritical, store.lastAlert.Severity)
	assert.Equal(t, models.AlertKindZoneViolation, store.lastAlert.Kind)
}

func TestWriteDeadVehicleIsAlwaysCritical(t *testing.T) {
	store := newFakeStore()
	w := New(store)

	result, err := w.WriteDeadVehicle(context.Background(), "AUV-3", time.Now().Format(time.RFC3339), 90)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, models.SeverityCritical, store.lastAlert.Severity)
	assert.Equal(t, models.AlertKindDeadAUV, store.lastAlert.Kind)
}

func TestDeriveSeverityPrefersWarningOverInfo(t *testing.T) {
	sev := deriveSeverity([]models.ParameterViolation{{Level: models.SeverityWarning}})
	assert.Equal(t, models.SeverityWarning, sev)
}

func TestDeriveSeverityDefaultsToInfo(t *testing.T) {
	sev := deriveSeverity(nil)
	assert.Equal(t, models.SeverityInfo, sev)
}
