// Package zoneeval decides whether a telemetry point falls outside its
// vehicle's assigned zone, mirroring the reference service's
// app/services/zone_detector.py.
package zoneeval

import (
	"context"
	"fmt"

	"github.com/tritonminingco/deepseaguard/internal/models"
)

// Store is the subset of the spatial store the zone evaluator needs.
type Store interface {
	TelemetryVehicleZone(ctx context.Context, telemetryID int64) (vehicleID, zoneID string, err error)
	IsInsideZone(ctx context.Context, telemetryID int64, zoneID string) (*bool, error)
	UpdateZoneViolation(ctx context.Context, telemetryID int64, violation string) error
}

// Evaluator decides and records zone-violation state for telemetry points.
type Evaluator struct {
	store Store
}

// New constructs an Evaluator over store.
func New(store Store) *Evaluator {
	return &Evaluator{store: store}
}

// Decision is the outcome of evaluating one telemetry point.
type Decision struct {
	VehicleID string
	ZoneID    string
	Violation bool
	Skipped   bool // no zone assigned, or geometry missing on either side
}

// Evaluate reads the telemetry row's vehicle/zone assignment, checks
// containment, and writes the zone_violation marker back. It does not
// write an alert itself; callers use the returned Decision to invoke an
// alert writer, keeping this package free of the alertwriter dependency
// (consumer-defined interfaces avoid an import cycle between the two).
func (e *Evaluator) Evaluate(ctx context.Context, telemetryID int64) (Decision, error) {
	vehicleID, zoneID, err := e.store.TelemetryVehicleZone(ctx, telemetryID)
	if err != nil {
		return Decision{}, fmt.Errorf("zoneeval: read telemetry vehicle/zone: %w", err)
	}
	if zoneID == "" {
		return Decision{VehicleID: vehicleID, Skipped: true}, nil
	}

	inside, err := e.store.IsInsideZone(ctx, telemetryID, zoneID)
	if err != nil {
		return Decision{}, fmt.Errorf("zoneeval: containment check: %w", err)
	}
	if inside == nil {
		// Zone or point geometry missing: no decision, leave prior state.
		return Decision{VehicleID: vehicleID, ZoneID: zoneID, Skipped: true}, nil
	}

	if !*inside {
		if err := e.store.UpdateZoneViolation(ctx, telemetryID, models.ZoneViolationOutside); err != nil {
			return Decision{}, fmt.Errorf("zoneeval: record violation: %w", err)
		}
		return Decision{VehicleID: vehicleID, ZoneID: zoneID, Violation: true}, nil
	}

	if err := e.store.UpdateZoneViolation(ctx, telemetryID, ""); err != nil {
		return Decision{}, fmt.Errorf("zoneeval: clear violation: %w", err)
	}
	return Decision{VehicleID: vehicleID, ZoneID: zoneID}, nil
}
