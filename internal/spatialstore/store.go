package spatialstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tritonminingco/deepseaguard/internal/models"
)

// Store is the insight engine's spatial persistence layer. Every operation
// opens or reuses a short-lived session bounded by the session limiter, the
// same transaction-boundary-at-the-caller discipline the reference service
// follows: callers decide commit/rollback scope, Store methods never span
// more than one logical unit of work.
type Store struct {
	pool    *pgxpool.Pool
	limiter *sessionLimiter
}

// Config controls the pooling façade in front of the pgx pool.
type Config struct {
	MaxInFlightSessions int
}

// New wraps an already-connected pool. Call Bootstrap separately to create
// schema.
func New(pool *pgxpool.Pool, cfg Config) *Store {
	return &Store{pool: pool, limiter: newSessionLimiter(cfg.MaxInFlightSessions)}
}

// InFlightSessions reports sessions currently checked out of the façade.
func (s *Store) InFlightSessions() int { return s.limiter.InFlight() }

// Ping verifies connectivity, used by the health aggregator.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.limiter.acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.release()
	return s.pool.Ping(ctx)
}

// InsertTelemetry inserts a telemetry row and returns its id. It does not
// set geom or upsert vehicle status; callers compose those as a unit via
// IngestTelemetryTx.
func (s *Store) InsertTelemetry(ctx context.Context, tx pgx.Tx, rec models.TelemetryRecord, locationWKT string) (int64, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("spatialstore: marshal raw telemetry: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO telemetry
			(auv_id, timestamp, zone_id, depth_m, velocity_knots, temperature_c, turbidity, location_wkt, raw, zone_violation)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, ''), $9, NULL)
		RETURNING id
	`, rec.VehicleID, rec.Timestamp, rec.AssignedZone, rec.DepthM, rec.VelocityKnots, rec.TemperatureC, rec.Turbidity, locationWKT, raw).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("spatialstore: insert telemetry: %w", err)
	}
	return id, nil
}

// SetGeometry derives geom from a WKT string for an already-inserted row.
func (s *Store) SetGeometry(ctx context.Context, tx pgx.Tx, telemetryID int64, wkt string) error {
	if wkt == "" {
		return nil
	}
	_, err := tx.Exec(ctx, `UPDATE telemetry SET geom = ST_GeomFromText($1, 4326) WHERE id = $2`, wkt, telemetryID)
	if err != nil {
		return fmt.Errorf("spatialstore: set geometry: %w", err)
	}
	return nil
}

// UpsertVehicleStatus records the most recent contact time for a vehicle.
func (s *Store) UpsertVehicleStatus(ctx context.Context, tx pgx.Tx, vehicleID string, lastSeen time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO auv_status (auv_id, last_seen)
		VALUES ($1, $2)
		ON CONFLICT (auv_id) DO UPDATE SET last_seen = EXCLUDED.last_seen
	`, vehicleID, lastSeen)
	if err != nil {
		return fmt.Errorf("spatialstore: upsert vehicle status: %w", err)
	}
	return nil
}

// IngestTelemetryTx runs the full per-point ingest write: insert row, derive
// geom, upsert last-seen, all inside one transaction, following the
// reference service's "caller owns the transaction boundary" discipline.
func (s *Store) IngestTelemetryTx(ctx context.Context, rec models.TelemetryRecord) (int64, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.limiter.release()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("spatialstore: begin ingest tx: %w", err)
	}
	defer tx.Rollback(ctx)

	wkt := rec.Location.WKTOrEmpty()
	id, err := s.InsertTelemetry(ctx, tx, rec, wkt)
	if err != nil {
		return 0, err
	}
	if err := s.SetGeometry(ctx, tx, id, wkt); err != nil {
		return 0, err
	}
	if err := s.UpsertVehicleStatus(ctx, tx, rec.VehicleID, rec.Timestamp); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("spatialstore: commit ingest tx: %w", err)
	}
	return id, nil
}

// TelemetryVehicleZone reads back the vehicle and assigned-zone for a
// telemetry row, used by the zone evaluator's read phase.
func (s *Store) TelemetryVehicleZone(ctx context.Context, telemetryID int64) (vehicleID, zoneID string, err error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return "", "", err
	}
	defer s.limiter.release()

	err = s.pool.QueryRow(ctx, `SELECT auv_id, COALESCE(zone_id, '') FROM telemetry WHERE id = $1`, telemetryID).
		Scan(&vehicleID, &zoneID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("spatialstore: read telemetry vehicle/zone: %w", err)
	}
	return vehicleID, zoneID, nil
}

// IsInsideZone reports whether a telemetry point falls inside the named
// zone's geometry. Returns nil if either geometry is missing, matching the
// reference service's "no decision" behavior for incomplete data.
func (s *Store) IsInsideZone(ctx context.Context, telemetryID int64, zoneID string) (*bool, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.release()

	var inside bool
	err := s.pool.QueryRow(ctx, `
		SELECT ST_Contains(z.geom, t.geom)
		FROM zones z
		JOIN telemetry t ON t.id = $1
		WHERE z.zone_id = $2 AND z.geom IS NOT NULL AND t.geom IS NOT NULL
	`, telemetryID, zoneID).Scan(&inside)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spatialstore: containment check: %w", err)
	}
	return &inside, nil
}

// UpdateZoneViolation sets (or clears, with violation == "") the
// zone_violation marker on a telemetry row.
func (s *Store) UpdateZoneViolation(ctx context.Context, telemetryID int64, violation string) error {
	if err := s.limiter.acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.release()

	_, err := s.pool.Exec(ctx, `UPDATE telemetry SET zone_violation = NULLIF($1, '') WHERE id = $2`, violation, telemetryID)
	if err != nil {
		return fmt.Errorf("spatialstore: update zone violation: %w", err)
	}
	return nil
}

// CreateAlert inserts an alert, or, when dedupe is true and an active alert
// of the same (vehicle, kind) already exists, returns that alert's id
// without inserting. The second return reports whether a new row was
// created.
func (s *Store) CreateAlert(ctx context.Context, alert models.Alert, dedupe bool) (id int64, created bool, err error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return 0, false, err
	}
	defer s.limiter.release()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("spatialstore: begin alert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if dedupe {
		var existing int64
		err := tx.QueryRow(ctx, `
			SELECT id FROM alerts WHERE auv_id = $1 AND type = $2 AND status = $3
			LIMIT 1
		`, alert.VehicleID, string(alert.Kind), string(models.AlertStatusActive)).Scan(&existing)
		if err == nil {
			return existing, false, tx.Commit(ctx)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("spatialstore: dedupe lookup: %w", err)
		}
	}

	payload, err := json.Marshal(alert.Payload)
	if err != nil {
		return 0, false, fmt.Errorf("spatialstore: marshal alert payload: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO alerts (auv_id, type, severity, message, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, alert.VehicleID, string(alert.Kind), string(alert.Severity), alert.Message, payload, string(models.AlertStatusActive)).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("spatialstore: insert alert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("spatialstore: commit alert tx: %w", err)
	}
	return id, true, nil
}

// OverdueVehicles returns the last-seen time of every vehicle whose most
// recent contact is at least timeout old.
func (s *Store) OverdueVehicles(ctx context.Context, timeout time.Duration) (map[string]time.Time, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.release()

	rows, err := s.pool.Query(ctx, `
		SELECT auv_id, last_seen FROM auv_status
		WHERE now() - last_seen >= ($1 || ' seconds')::interval
	`, fmt.Sprintf("%d", int64(timeout.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("spatialstore: overdue vehicles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var vehicleID string
		var lastSeen time.Time
		if err := rows.Scan(&vehicleID, &lastSeen); err != nil {
			return nil, fmt.Errorf("spatialstore: scan overdue vehicle: %w", err)
		}
		out[vehicleID] = lastSeen
	}
	return out, rows.Err()
}

// UpsertZone inserts or replaces a zone definition and its geometry, used
// by the zone loader on startup and hot-reload.
func (s *Store) UpsertZone(ctx context.Context, zone models.Zone) error {
	if err := s.limiter.acquire(ctx); err != nil {
		return err
	}
	defer s.limiter.release()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO zones (zone_id, name, geom_wkt, geom, kind)
		VALUES ($1, $2, $3, ST_GeomFromText($3, 4326), $4)
		ON CONFLICT (zone_id) DO UPDATE SET
			name = EXCLUDED.name,
			geom_wkt = EXCLUDED.geom_wkt,
			geom = EXCLUDED.geom,
			kind = EXCLUDED.kind
	`, zone.ZoneID, zone.DisplayName, zone.GeometryWKT, zone.Kind)
	if err != nil {
		return fmt.Errorf("spatialstore: upsert zone: %w", err)
	}
	return nil
}

// AlertFilter narrows the alert listing and stats queries.
type AlertFilter struct {
	VehicleID string
	Kind      string
}

// ListAlerts returns the most recent alerts matching filter, newest first.
func (s *Store) ListAlerts(ctx context.Context, filter AlertFilter, limit int) ([]models.Alert, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.release()

	where, args := buildAlertWhere(filter)
	args = append(args, limit)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT auv_id, type, severity, status, message, started_at
		FROM alerts
		%s
		ORDER BY started_at DESC, id DESC
		LIMIT $%d
	`, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("spatialstore: list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		var severity, message *string
		if err := rows.Scan(&a.VehicleID, &a.Kind, &severity, &a.Status, &message, &a.StartedAt); err != nil {
			return nil, fmt.Errorf("spatialstore: scan alert: %w", err)
		}
		if severity != nil {
			a.Severity = models.Severity(*severity)
		}
		if message != nil {
			a.Message = *message
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Timeseries returns telemetry points for a vehicle within a window.
func (s *Store) Timeseries(ctx context.Context, vehicleID string, windowStart time.Time, limit int) ([]models.TelemetryPoint, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.release()

	rows, err := s.pool.Query(ctx, `
		SELECT timestamp, temperature_c, depth_m, velocity_knots, location_wkt
		FROM telemetry
		WHERE auv_id = $1 AND timestamp >= $2
		ORDER BY timestamp ASC
		LIMIT $3
	`, vehicleID, windowStart, limit)
	if err != nil {
		return nil, fmt.Errorf("spatialstore: timeseries: %w", err)
	}
	defer rows.Close()

	var out []models.TelemetryPoint
	for rows.Next() {
		var pt models.TelemetryPoint
		var wkt *string
		if err := rows.Scan(&pt.Timestamp, &pt.TemperatureC, &pt.DepthM, &pt.VelocityKnots, &wkt); err != nil {
			return nil, fmt.Errorf("spatialstore: scan timeseries point: %w", err)
		}
		pt.VehicleID = vehicleID
		if wkt != nil {
			pt.LocationWKT = *wkt
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// AlertStats is the aggregate counters behind the insights "stats" summary.
type AlertStats struct {
	TotalAlerts         int64
	AlertsInWindow      int64
	LatestAlertAt       *time.Time
	AlertsByKind        map[string]int64
}

// Stats computes alert aggregates matching filter, windowed by windowStart.
func (s *Store) Stats(ctx context.Context, filter AlertFilter, windowStart time.Time) (AlertStats, error) {
	if err := s.limiter.acquire(ctx); err != nil {
		return AlertStats{}, err
	}
	defer s.limiter.release()

	where, args := buildAlertWhere(filter)
	args = append(args, windowStart)
	windowIdx := len(args)

	var stats AlertStats
	var latest *time.Time
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN started_at >= $%d THEN 1 ELSE 0 END),
			MAX(started_at)
		FROM alerts
		%s
	`, windowIdx, where), args...).Scan(&stats.TotalAlerts, &stats.AlertsInWindow, &latest)
	if err != nil {
		return AlertStats{}, fmt.Errorf("spatialstore: stats: %w", err)
	}
	stats.LatestAlertAt = latest

	byKindWhere, byKindArgs := buildAlertWhere(filter)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT type, COUNT(*) FROM alerts %s GROUP BY type
	`, byKindWhere), byKindArgs...)
	if err != nil {
		return AlertStats{}, fmt.Errorf("spatialstore: stats by kind: %w", err)
	}
	defer rows.Close()

	stats.AlertsByKind = make(map[string]int64)
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return AlertStats{}, fmt.Errorf("spatialstore: scan stats by kind: %w", err)
		}
		stats.AlertsByKind[kind] = count
	}
	return stats, rows.Err()
}

func buildAlertWhere(filter AlertFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.VehicleID != "" {
		args = append(args, filter.VehicleID)
		clauses = append(clauses, fmt.Sprintf("auv_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	where := "WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}
