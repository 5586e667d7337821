// Package config loads the insight engine's runtime configuration from
// environment variables, following the flat env-driven settings layout of
// the original reference service rather than the teacher's heavier
// strategy/policy configuration layer (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully validated runtime configuration.
type Config struct {
	DatabaseConnectionString      string
	AsyncDatabaseConnectionString string

	DeadAUVTimeout      time.Duration
	DeadAUVScanInterval time.Duration

	TelemetryWSURL string

	ZonesFilePath string
	HTTPAddr      string
	MetricsAddr   string
}

// Load reads and validates configuration from the process environment.
// Every field required by a downstream component is fatal-checked here so
// misconfiguration is caught at startup rather than on first use.
func Load() (Config, error) {
	var cfg Config
	var missing []string

	cfg.DatabaseConnectionString = os.Getenv("DATABASE_CONNECTION_STRING")
	if cfg.DatabaseConnectionString == "" {
		missing = append(missing, "DATABASE_CONNECTION_STRING")
	}

	cfg.AsyncDatabaseConnectionString = os.Getenv("ASYNC_DATABASE_CONNECTION_STRING")
	if cfg.AsyncDatabaseConnectionString == "" {
		cfg.AsyncDatabaseConnectionString = cfg.DatabaseConnectionString
	}

	timeoutSeconds, err := intEnv("DEAD_AUV_TIMEOUT_SECONDS", 90)
	if err != nil {
		return Config{}, err
	}
	cfg.DeadAUVTimeout = time.Duration(timeoutSeconds) * time.Second

	scanSeconds, err := intEnv("DEAD_AUV_SCAN_INTERVAL_SECONDS", 15)
	if err != nil {
		return Config{}, err
	}
	cfg.DeadAUVScanInterval = time.Duration(scanSeconds) * time.Second

	cfg.TelemetryWSURL = os.Getenv("TELEMETRY_WS_URL")
	if cfg.TelemetryWSURL == "" {
		missing = append(missing, "TELEMETRY_WS_URL")
	}

	cfg.ZonesFilePath = envOr("ZONES_FILE_PATH", "zones.yaml")
	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.MetricsAddr = envOr("METRICS_ADDR", ":9090")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment variables: %v", missing)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", key, raw, err)
	}
	return v, nil
}
