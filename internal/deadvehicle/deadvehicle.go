// Package deadvehicle periodically scans for vehicles that have gone
// silent, mirroring the reference service's
// app/services/dead_auv_monitor.py dead_auv_scanner generator.
package deadvehicle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tritonminingco/deepseaguard/internal/alertwriter"
	"github.com/tritonminingco/deepseaguard/internal/hub"
	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/metrics"
)

// Store is the subset of the spatial store the scanner needs.
type Store interface {
	OverdueVehicles(ctx context.Context, timeout time.Duration) (map[string]time.Time, error)
}

// Hub is the subset of the fan-out hub the scanner needs.
type Hub interface {
	Broadcast(event hub.Event)
}

// Scanner ticks on an interval, reads overdue vehicles, and writes one
// dead_auv alert per overdue vehicle.
type Scanner struct {
	store    Store
	alerts   *alertwriter.Writer
	hub      Hub
	log      logging.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time

	lastTick atomic.Int64 // unix nanos of the last successful tick; 0 before the first
}

// New constructs a Scanner. now defaults to time.Now when nil. m may be nil,
// in which case no metrics are recorded.
func New(store Store, alerts *alertwriter.Writer, hub Hub, log logging.Logger, m *metrics.Metrics, timeout, interval time.Duration, now func() time.Time) *Scanner {
	if now == nil {
		now = time.Now
	}
	return &Scanner{store: store, alerts: alerts, hub: hub, log: log, metrics: m, timeout: timeout, interval: interval, now: now}
}

// LastTick reports when the scanner last completed an overdue-vehicle read
// successfully. The zero Time means it has never completed one.
func (s *Scanner) LastTick() time.Time {
	nanos := s.lastTick.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// Run ticks until ctx is cancelled. Each tick's errors are logged and
// swallowed so one bad scan never stops future scans, matching the
// reference scanner's try/except-and-continue loop.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	overdue, err := s.store.OverdueVehicles(ctx, s.timeout)
	if err != nil {
		s.log.WarnCtx(ctx, "dead vehicle scan failed", "error", err)
		return
	}
	s.lastTick.Store(s.now().UnixNano())
	if s.metrics != nil {
		s.metrics.DeadVehicleScans.Inc()
		s.metrics.DeadVehicleOverdue.Set(float64(len(overdue)))
	}

	for vehicleID, lastSeen := range overdue {
		result, err := s.alerts.WriteDeadVehicle(ctx, vehicleID, lastSeen.Format(time.RFC3339), int64(s.timeout.Seconds()))
		if err != nil {
			s.log.WarnCtx(ctx, "dead vehicle alert write failed", "vehicle_id", vehicleID, "error", err)
			continue
		}
		s.countAlert(result.Severity, result.Created)

		// Broadcast every tick the vehicle remains overdue, not just the
		// tick that first created the alert row: the Fan-out Hub reflects
		// the scanner's finding, not the store's de-duplication.
		s.hub.Broadcast(hub.Event{
			Kind: "dead_auv_alert",
			Data: map[string]any{
				"type":              "dead_auv",
				"vehicle_id":        vehicleID,
				"last_seen":         lastSeen.Format(time.RFC3339),
				"threshold_seconds": int64(s.timeout.Seconds()),
			},
			EmittedAt: s.now(),
		})
	}
}

// countAlert records an alert write outcome, distinguishing a newly created
// row from one short-circuited by active-duplicate suppression.
func (s *Scanner) countAlert(severity models.Severity, created bool) {
	if s.metrics == nil {
		return
	}
	if created {
		s.metrics.AlertsCreated.WithLabelValues("dead_auv", string(severity)).Inc()
		return
	}
	s.metrics.AlertsDeduplicated.WithLabelValues("dead_auv").Inc()
}
