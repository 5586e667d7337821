package deadvehicle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tritonminingco/deepseaguard/internal/alertwriter"
	"github.com/tritonminingco/deepseaguard/internal/hub"
	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
)

type fakeStore struct {
	overdue map[string]time.Time
	err     error
}

func (f *fakeStore) OverdueVehicles(ctx context.Context, timeout time.Duration) (map[string]time.Time, error) {
	return f.overdue, f.err
}

type fakeAlertStore struct {
	nextID  int64
	active  map[string]int64
	writes  int
}

func newFakeAlertStore() *fakeAlertStore { return &fakeAlertStore{active: map[string]int64{}} }

func (f *fakeAlertStore) CreateAlert(ctx context.Context, alert models.Alert, dedupe bool) (int64, bool, error) {
	f.writes++
	key := alert.VehicleID + "|" + string(alert.Kind)
	if dedupe {
		if id, ok := f.active[key]; ok {
			return id, false, nil
		}
	}
	f.nextID++
	f.active[key] = f.nextID
	return f.nextID, true, nil
}

type fakeHub struct {
	events []hub.Event
}

func (h *fakeHub) Broadcast(e hub.Event) { h.events = append(h.events, e) }

func TestTickCreatesOneAlertPerOverdueVehicle(t *testing.T) {
	store := &fakeStore{overdue: map[string]time.Time{
		"AUV-1": time.Now().Add(-time.Hour),
		"AUV-2": time.Now().Add(-2 * time.Hour),
	}}
	alertStore := newFakeAlertStore()
	alerts := alertwriter.New(alertStore)
	hub := &fakeHub{}
	s := New(store, alerts, hub, logging.New(slog.Default()), nil, 90*time.Second, time.Second, nil)

	s.tick(context.Background())

	assert.Len(t, hub.events, 2)
	assert.Equal(t, 2, alertStore.writes)
}

func TestTickBroadcastsEveryTickButNeverResurrectsAlreadyActiveAlert(t *testing.T) {
	store := &fakeStore{overdue: map[string]time.Time{"AUV-1": time.Now()}}
	alertStore := newFakeAlertStore()
	alerts := alertwriter.New(alertStore)
	hub := &fakeHub{}
	s := New(store, alerts, hub, logging.New(slog.Default()), nil, 90*time.Second, time.Second, nil)

	s.tick(context.Background())
	s.tick(context.Background())

	assert.Len(t, hub.events, 2)
	assert.Equal(t, int64(1), alertStore.nextID)
}

func TestTickSwallowsStoreError(t *testing.T) {
	store := &fakeStore{err: assert.AnError}
	alerts := alertwriter.New(newFakeAlertStore())
	hub := &fakeHub{}
	s := New(store, alerts, hub, logging.New(slog.Default()), nil, 90*time.Second, time.Second, nil)

	assert.NotPanics(t, func() { s.tick(context.Background()) })
	assert.Empty(t, hub.events)
	assert.True(t, s.LastTick().IsZero())
}

func TestTickRecordsLastTickOnlyOnSuccess(t *testing.T) {
	store := &fakeStore{overdue: map[string]time.Time{}}
	alerts := alertwriter.New(newFakeAlertStore())
	hub := &fakeHub{}
	fixedNow := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(store, alerts, hub, logging.New(slog.Default()), nil, 90*time.Second, time.Second, func() time.Time { return fixedNow })

	s.tick(context.Background())

	assert.True(t, fixedNow.Equal(s.LastTick()))
}
