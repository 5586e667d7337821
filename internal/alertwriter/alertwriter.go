// Package alertwriter creates alert rows with active-duplicate suppression,
// mirroring the reference service's app/services/alerts_ingest.py.
package alertwriter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tritonminingco/deepseaguard/internal/models"
)

// Store is the subset of the spatial store alertwriter needs, declared here
// (consumer-side) so this package never imports the concrete pgx-backed
// type.
type Store interface {
	CreateAlert(ctx context.Context, alert models.Alert, dedupe bool) (id int64, created bool, err error)
}

// Writer creates alerts for environmental, zone-violation, and dead-vehicle
// conditions.
type Writer struct {
	store Store
}

// New constructs a Writer over store.
func New(store Store) *Writer {
	return &Writer{store: store}
}

// Result reports the outcome of a write attempt.
type Result struct {
	AlertID  int64
	Created  bool
	Severity models.Severity
}

// WriteEnvironmental creates (or reuses) an environmental alert, deriving
// overall severity and a short message from the parameter violations.
func (w *Writer) WriteEnvironmental(ctx context.Context, report models.EnvironmentalReport) (Result, error) {
	severity := deriveSeverity(report.Alerts)
	message := buildMessage(report.Alerts)

	payload := map[string]any{
		"timestamp": report.Timestamp,
		"alerts":    report.Alerts,
	}

	id, created, err := w.store.CreateAlert(ctx, models.Alert{
		VehicleID: report.VehicleID,
		Kind:      models.AlertKindEnvironmental,
		Severity:  severity,
		Message:   message,
		Payload:   payload,
	}, true)
	if err != nil {
		return Result{}, fmt.Errorf("alertwriter: environmental: %w", err)
	}
	return Result{AlertID: id, Created: created, Severity: severity}, nil
}

// WriteZoneViolation creates (or reuses) a critical zone_violation alert.
func (w *Writer) WriteZoneViolation(ctx context.Context, vehicleID, zoneID string, telemetryID int64) (Result, error) {
	message := fmt.Sprintf("AUV %s outside allowed zone %s", vehicleID, zoneID)
	payload := map[string]any{
		"zone_id":      zoneID,
		"violation":    models.ZoneViolationOutside,
		"telemetry_id": telemetryID,
	}

	id, created, err := w.store.CreateAlert(ctx, models.Alert{
		VehicleID: vehicleID,
		Kind:      models.AlertKindZoneViolation,
		Severity:  models.SeverityCritical,
		Message:   message,
		Payload:   payload,
	}, true)
	if err != nil {
		return Result{}, fmt.Errorf("alertwriter: zone violation: %w", err)
	}
	return Result{AlertID: id, Created: created, Severity: models.SeverityCritical}, nil
}

// WriteDeadVehicle creates (or reuses) a critical dead_auv alert.
func (w *Writer) WriteDeadVehicle(ctx context.Context, vehicleID, lastSeenISO string, thresholdSeconds int64) (Result, error) {
	message := fmt.Sprintf("AUV %s silent beyond %ds", vehicleID, thresholdSeconds)
	payload := map[string]any{
		"last_seen":         lastSeenISO,
		"threshold_seconds": thresholdSeconds,
	}

	id, created, err := w.store.CreateAlert(ctx, models.Alert{
		VehicleID: vehicleID,
		Kind:      models.AlertKindDeadAUV,
		Severity:  models.SeverityCritical,
		Message:   message,
		Payload:   payload,
	}, true)
	if err != nil {
		return Result{}, fmt.Errorf("alertwriter: dead vehicle: %w", err)
	}
	return Result{AlertID: id, Created: created, Severity: models.SeverityCritical}, nil
}

func deriveSeverity(violations []models.ParameterViolation) models.Severity {
	hasWarning := false
	for _, v := range violations {
		if v.Level == models.SeverityCritical {
			return models.SeverityCritical
		}
		if v.Level == models.SeverityWarning {
			hasWarning = true
		}
	}
	if hasWarning {
		return models.SeverityWarning
	}
	return models.SeverityInfo
}

func buildMessage(violations []models.ParameterViolation) string {
	if len(violations) == 0 {
		return "environmental ok"
	}
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s=%v(%s)", v.Parameter, v.Value, v.Level))
	}
	return strings.Join(parts, ", ")
}
