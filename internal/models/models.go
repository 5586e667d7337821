// Package models defines the entities persisted and exchanged by the insight
// engine: telemetry points, geofence zones, vehicle liveness, and alerts.
package models

import (
	"fmt"
	"time"
)

// AlertKind identifies what kind of condition produced an alert.
type AlertKind string

const (
	AlertKindEnvironmental AlertKind = "environmental"
	AlertKindZoneViolation AlertKind = "zone_violation"
	AlertKindDeadAUV       AlertKind = "dead_auv"
)

// KnownAlertKinds is the full set of alert kinds the system understands,
// used to validate the insights query's `kind` filter.
var KnownAlertKinds = map[AlertKind]struct{}{
	AlertKindEnvironmental: {},
	AlertKindZoneViolation: {},
	AlertKindDeadAUV:       {},
}

// Severity is the urgency level assigned to an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertStatus tracks whether an alert is still open. The current design never
// resolves alerts (see SPEC_FULL.md §9); Resolved exists for the data model's
// completeness but nothing in this codebase transitions a row to it.
type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

// ZoneViolationOutside is the only zone_violation_state value the Zone
// Evaluator ever writes; an empty string means "no violation / unknown".
const ZoneViolationOutside = "outside"

// LatLon is a decimal-degree point in EPSG:4326.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WKTOrEmpty renders "POINT(lon lat)" WKT, or "" for a nil receiver. WKT
// orders coordinates lon-then-lat even though the struct itself is
// lat-then-lon, matching the upstream feed's field order.
func (l *LatLon) WKTOrEmpty() string {
	if l == nil {
		return ""
	}
	return fmt.Sprintf("POINT(%v %v)", l.Lon, l.Lat)
}

// TelemetryRecord is one inbound frame from the upstream telemetry feed,
// before it has been persisted and assigned an id.
type TelemetryRecord struct {
	VehicleID     string    `json:"vehicle_id"`
	Timestamp     time.Time `json:"-"`
	TimestampRaw  string    `json:"timestamp"`
	AssignedZone  string    `json:"zone_id,omitempty"`
	DepthM        *float64  `json:"depth_m,omitempty"`
	VelocityKnots *float64  `json:"velocity_knots,omitempty"`
	TemperatureC  *float64  `json:"temperature_c,omitempty"`
	Turbidity     *float64  `json:"turbidity,omitempty"`
	Location      *LatLon   `json:"location,omitempty"`
}

// TelemetryPoint is a persisted telemetry observation.
type TelemetryPoint struct {
	ID                 int64
	VehicleID          string
	Timestamp          time.Time
	AssignedZoneID     string
	DepthM             *float64
	VelocityKnots      *float64
	TemperatureC       *float64
	Turbidity          *float64
	LocationWKT        string
	Raw                map[string]any
	ZoneViolationState string
}

// Zone is a geofenced area an AUV is contractually required to remain inside.
type Zone struct {
	ZoneID      string
	DisplayName string
	Kind        string
	GeometryWKT string
}

// VehicleStatus tracks when a vehicle was last heard from.
type VehicleStatus struct {
	VehicleID string
	LastSeen  time.Time
}

// Alert is a single active or historical alert row.
type Alert struct {
	ID         int64
	VehicleID  string
	Kind       AlertKind
	Severity   Severity
	Message    string
	Payload    map[string]any
	Status     AlertStatus
	StartedAt  time.Time
	EndedAt    *time.Time
}

// ParameterViolation is one threshold breach within an environmental report.
type ParameterViolation struct {
	Parameter string    `json:"parameter"`
	Value     float64   `json:"value"`
	Level     Severity  `json:"level"`
	Limits    Limits    `json:"limits"`
}

// Limits is the [min,max] band a parameter was checked against.
type Limits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// EnvironmentalReport is the output of the Threshold Evaluator when one or
// more parameters violate their configured bands.
type EnvironmentalReport struct {
	Timestamp time.Time            `json:"timestamp"`
	VehicleID string               `json:"vehicle_id"`
	Alerts    []ParameterViolation `json:"alerts"`
}

// IngestError wraps a failure encountered while processing one inbound
// telemetry frame, naming the vehicle and the stage that failed so logs and
// swallowed-error paths can attribute the fault without re-parsing a message
// string. Stage is "normalize_timestamp" or "persist" for malformed-input
// and transient-store-error failures respectively.
type IngestError struct {
	VehicleID string
	Stage     string
	Cause     error
}

// NewIngestError constructs an IngestError.
func NewIngestError(vehicleID, stage string, cause error) *IngestError {
	return &IngestError{VehicleID: vehicleID, Stage: stage, Cause: cause}
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s failed for vehicle %s: %v", e.Stage, e.VehicleID, e.Cause)
}

func (e *IngestError) Unwrap() error { return e.Cause }
