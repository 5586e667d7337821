// Package spatialstore wraps a PostGIS-backed connection pool with the
// schema bootstrap and query operations the insight engine needs: telemetry
// ingestion, geofence containment checks, vehicle last-seen tracking, alert
// writes with active-duplicate suppression, and rollup queries.
package spatialstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool builds a pgxpool.Pool configured so PgBouncer transaction pooling
// cannot serve a stale cached plan after a schema change. The driver's
// default exec mode, QueryExecModeCacheStatement, caches prepared
// statements per-connection; under PgBouncer's transaction pooling a
// logical session is multiplexed across physical connections, so a plan
// cached against one connection can outlive a schema migration applied
// through another and the query fails with "cached plan must not change
// result type". QueryExecModeDescribeExec still describes each query
// (needed to get correct parameter OIDs for JSONB/complex types) but never
// caches the result, which is what the engine's original NullPool +
// statement_cache_size=0 setup achieved on the Python side.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("spatialstore: parse connection string: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("spatialstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("spatialstore: ping: %w", err)
	}
	return pool, nil
}
