package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_CONNECTION_STRING", "ASYNC_DATABASE_CONNECTION_STRING",
		"DEAD_AUV_TIMEOUT_SECONDS", "DEAD_AUV_SCAN_INTERVAL_SECONDS",
		"TELEMETRY_WS_URL", "ZONES_FILE_PATH", "HTTP_ADDR", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFailsWhenRequiredVarsMissing(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAppliesDefaultsAndFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_CONNECTION_STRING", "postgres://db/insight")
	t.Setenv("TELEMETRY_WS_URL", "wss://feed.example/telemetry")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://db/insight", cfg.AsyncDatabaseConnectionString)
	assert.Equal(t, "zones.yaml", cfg.ZonesFilePath)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, int64(90), int64(cfg.DeadAUVTimeout.Seconds()))
	assert.Equal(t, int64(15), int64(cfg.DeadAUVScanInterval.Seconds()))
}

func TestLoadRejectsNonIntegerTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_CONNECTION_STRING", "postgres://db/insight")
	t.Setenv("TELEMETRY_WS_URL", "wss://feed.example/telemetry")
	t.Setenv("DEAD_AUV_TIMEOUT_SECONDS", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvironmentalThresholdsHasBothParameters(t *testing.T) {
	_, okTemp := EnvironmentalThresholds["temperature_c"]
	_, okTurb := EnvironmentalThresholds["turbidity"]
	assert.True(t, okTemp)
	assert.True(t, okTurb)
}
