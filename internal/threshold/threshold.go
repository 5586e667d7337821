// Package threshold evaluates telemetry parameters against configured
// warning/critical bands, mirroring the reference service's
// EnvironmentalMonitor.check_thresholds.
package threshold

import (
	"time"

	"github.com/tritonminingco/deepseaguard/internal/config"
	"github.com/tritonminingco/deepseaguard/internal/models"
)

// Evaluator checks telemetry against a fixed threshold table.
type Evaluator struct {
	bands map[string]config.Band
}

// New constructs an Evaluator over the given threshold bands.
func New(bands map[string]config.Band) *Evaluator {
	return &Evaluator{bands: bands}
}

// Evaluate checks temperature_c and turbidity (when present) against their
// configured bands, critical before warning for each parameter, and returns
// a report when at least one violation was found.
func (e *Evaluator) Evaluate(rec models.TelemetryRecord, now time.Time) *models.EnvironmentalReport {
	var violations []models.ParameterViolation

	if rec.TemperatureC != nil {
		if v, ok := e.check("temperature_c", "temperature", *rec.TemperatureC); ok {
			violations = append(violations, v)
		}
	}
	if rec.Turbidity != nil {
		if v, ok := e.check("turbidity", "turbidity", *rec.Turbidity); ok {
			violations = append(violations, v)
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &models.EnvironmentalReport{
		Timestamp: now,
		VehicleID: rec.VehicleID,
		Alerts:    violations,
	}
}

// check looks bands up by key (e.g. "temperature_c") but reports the
// violation under label (e.g. "temperature") — the threshold table and the
// reported parameter name diverge for temperature, matching the reference
// service's check_thresholds.
func (e *Evaluator) check(key, label string, value float64) (models.ParameterViolation, bool) {
	band, ok := e.bands[key]
	if !ok {
		return models.ParameterViolation{}, false
	}

	if value < band.Critical.Min || value > band.Critical.Max {
		return models.ParameterViolation{
			Parameter: label,
			Value:     value,
			Level:     models.SeverityCritical,
			Limits:    band.Critical,
		}, true
	}
	if value < band.Warning.Min || value > band.Warning.Max {
		return models.ParameterViolation{
			Parameter: label,
			Value:     value,
			Level:     models.SeverityWarning,
			Limits:    band.Warning,
		}, true
	}
	return models.ParameterViolation{}, false
}
