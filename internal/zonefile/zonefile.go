// Package zonefile loads geofence zone definitions from a YAML file and
// keeps the spatial store in sync, watching the file for changes. This
// supplements the distilled spec: the original service's zones were
// seeded by a one-off script; the original_source tree's zone records
// (zone_id, name, geom_wkt, kind) are preserved here as the file schema.
package zonefile

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
)

// Entry is one zone definition as it appears in the YAML file.
type Entry struct {
	ZoneID      string `yaml:"zone_id"`
	DisplayName string `yaml:"name"`
	GeometryWKT string `yaml:"geom_wkt"`
	Kind        string `yaml:"kind"`
}

type fileSchema struct {
	Zones []Entry `yaml:"zones"`
}

// Store is the subset of the spatial store the zone loader needs.
type Store interface {
	UpsertZone(ctx context.Context, zone models.Zone) error
}

// Loader parses the zones file and upserts entries into the store,
// optionally watching the file for subsequent changes.
type Loader struct {
	path  string
	store Store
	log   logging.Logger
}

// New constructs a Loader over path.
func New(path string, store Store, log logging.Logger) *Loader {
	return &Loader{path: path, store: store, log: log}
}

// LoadOnce parses the file and upserts every well-formed entry.
// Malformed entries (missing zone_id or geometry) are logged and
// skipped; the loader never aborts the whole file over one bad entry.
func (l *Loader) LoadOnce(ctx context.Context) error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("zonefile: read %s: %w", l.path, err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("zonefile: parse %s: %w", l.path, err)
	}

	for _, entry := range schema.Zones {
		if entry.ZoneID == "" || entry.GeometryWKT == "" {
			l.log.WarnCtx(ctx, "skipping malformed zone entry", "zone_id", entry.ZoneID)
			continue
		}
		zone := models.Zone{
			ZoneID:      entry.ZoneID,
			DisplayName: entry.DisplayName,
			Kind:        entry.Kind,
			GeometryWKT: entry.GeometryWKT,
		}
		if err := l.store.UpsertZone(ctx, zone); err != nil {
			l.log.WarnCtx(ctx, "upsert zone failed", "zone_id", entry.ZoneID, "error", err)
			continue
		}
	}
	return nil
}

// Watch reloads the file whenever it changes on disk, until ctx is
// cancelled. Errors during reload are logged and the watch continues.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("zonefile: new watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.path); err != nil {
		return fmt.Errorf("zonefile: watch %s: %w", l.path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := l.LoadOnce(ctx); err != nil {
				l.log.WarnCtx(ctx, "zone file reload failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.WarnCtx(ctx, "zone file watch error", "error", err)
		}
	}
}
