package zonefile

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
)

type fakeStore struct {
	upserted []models.Zone
}

func (f *fakeStore) UpsertZone(ctx context.Context, zone models.Zone) error {
	f.upserted = append(f.upserted, zone)
	return nil
}

func writeZonesFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadOnceUpsertsWellFormedEntries(t *testing.T) {
	path := writeZonesFile(t, `
zones:
  - zone_id: Z1
    name: Parcel 1
    geom_wkt: "POLYGON((-126 10, -125 10, -125 11, -126 11, -126 10))"
    kind: contract
`)
	store := &fakeStore{}
	l := New(path, store, logging.New(slog.Default()))

	err := l.LoadOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "Z1", store.upserted[0].ZoneID)
}

func TestLoadOnceSkipsMalformedEntries(t *testing.T) {
	path := writeZonesFile(t, `
zones:
  - zone_id: ""
    geom_wkt: "POLYGON((0 0, 1 0, 1 1, 0 0))"
  - zone_id: Z2
    geom_wkt: ""
  - zone_id: Z3
    geom_wkt: "POLYGON((0 0, 1 0, 1 1, 0 0))"
`)
	store := &fakeStore{}
	l := New(path, store, logging.New(slog.Default()))

	err := l.LoadOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	assert.Equal(t, "Z3", store.upserted[0].ZoneID)
}

func TestLoadOnceFailsWhenFileMissing(t *testing.T) {
	store := &fakeStore{}
	l := New(filepath.Join(t.TempDir(), "missing.yaml"), store, logging.New(slog.Default()))

	err := l.LoadOnce(context.Background())
	assert.Error(t, err)
}
