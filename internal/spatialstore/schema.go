package spatialstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements mirrors the table shapes of the reference service's
// SQLAlchemy models (telemetry, zones, auv_status, alerts), adding the
// PostGIS geometry columns and spatial index the ORM left to a separate
// migration.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS telemetry (
		id SERIAL PRIMARY KEY,
		auv_id VARCHAR(64) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		zone_id VARCHAR(128),
		depth_m DOUBLE PRECISION,
		velocity_knots DOUBLE PRECISION,
		temperature_c DOUBLE PRECISION,
		turbidity DOUBLE PRECISION,
		location_wkt VARCHAR(128),
		geom geometry(Point, 4326),
		raw JSONB,
		zone_violation VARCHAR(64)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_telemetry_auv_time ON telemetry (auv_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS ix_telemetry_geom ON telemetry USING GIST (geom)`,
	`CREATE TABLE IF NOT EXISTS zones (
		id SERIAL PRIMARY KEY,
		zone_id VARCHAR(128) UNIQUE NOT NULL,
		name VARCHAR(256),
		geom_wkt TEXT NOT NULL,
		geom geometry(Geometry, 4326),
		kind VARCHAR(64)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_zones_geom ON zones USING GIST (geom)`,
	`CREATE TABLE IF NOT EXISTS auv_status (
		auv_id VARCHAR(64) PRIMARY KEY,
		last_seen TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_auv_status_last_seen ON auv_status (last_seen)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id SERIAL PRIMARY KEY,
		auv_id VARCHAR(64) NOT NULL,
		type VARCHAR(64) NOT NULL,
		severity VARCHAR(32),
		message TEXT,
		payload JSONB,
		status VARCHAR(16) NOT NULL DEFAULT 'active',
		started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		ended_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS ix_alerts_auv_id ON alerts (auv_id)`,
	`CREATE INDEX IF NOT EXISTS ix_alerts_type ON alerts (type)`,
}

// Bootstrap creates the insight engine's tables and indexes if they do not
// already exist. It is idempotent and safe to call on every startup.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("spatialstore: bootstrap statement failed (%s): %w", shortStmt(stmt), err)
		}
	}
	return nil
}

func shortStmt(stmt string) string {
	if len(stmt) > 48 {
		return stmt[:48] + "..."
	}
	return stmt
}
