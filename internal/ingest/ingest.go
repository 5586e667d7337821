// Package ingest drives one inbound telemetry frame through persistence,
// threshold evaluation, and zone evaluation, mirroring the reference
// service's main.py handler that chains telemetry_ingest, environmental
// checks, and zone_detector together.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tritonminingco/deepseaguard/internal/alertwriter"
	"github.com/tritonminingco/deepseaguard/internal/hub"
	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/metrics"
	"github.com/tritonminingco/deepseaguard/internal/threshold"
	"github.com/tritonminingco/deepseaguard/internal/zoneeval"
)

// Store is the subset of the spatial store the ingestor needs.
type Store interface {
	IngestTelemetryTx(ctx context.Context, rec models.TelemetryRecord) (int64, error)
}

// Hub is the subset of the fan-out hub the ingestor needs.
type Hub interface {
	Broadcast(event hub.Event)
}

// Ingestor persists telemetry and runs the downstream evaluators.
type Ingestor struct {
	store     Store
	threshold *threshold.Evaluator
	zone      *zoneeval.Evaluator
	alerts    *alertwriter.Writer
	hub       Hub
	log       logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New constructs an Ingestor. now defaults to time.Now when nil. m may be
// nil, in which case no metrics are recorded.
func New(store Store, thresholdEval *threshold.Evaluator, zoneEval *zoneeval.Evaluator, alerts *alertwriter.Writer, hub Hub, log logging.Logger, m *metrics.Metrics, now func() time.Time) *Ingestor {
	if now == nil {
		now = time.Now
	}
	return &Ingestor{store: store, threshold: thresholdEval, zone: zoneEval, alerts: alerts, hub: hub, log: log, metrics: m, now: now}
}

// Ingest persists rec, then runs threshold evaluation (broadcasting an
// environmental_alert when the evaluator reports a violation) and zone
// evaluation (broadcasting a zone_alert when the point is outside its
// zone), in that order. Each broadcast follows a successful alert write,
// whether that write created a new row or returned an active duplicate. Evaluator
// failures are logged and swallowed: a malformed or unlucky evaluation
// never loses the underlying telemetry write, which already committed.
func (in *Ingestor) Ingest(ctx context.Context, rec models.TelemetryRecord) (int64, error) {
	ts, err := normalizeTimestamp(rec)
	if err != nil {
		return 0, models.NewIngestError(rec.VehicleID, "normalize_timestamp", err)
	}
	rec.Timestamp = ts

	telemetryID, err := in.store.IngestTelemetryTx(ctx, rec)
	if err != nil {
		return 0, models.NewIngestError(rec.VehicleID, "persist", err)
	}
	if in.metrics != nil {
		in.metrics.TelemetryIngested.WithLabelValues(rec.VehicleID).Inc()
	}

	in.runThresholdEval(ctx, rec)
	in.runZoneEval(ctx, telemetryID)

	return telemetryID, nil
}

func (in *Ingestor) runThresholdEval(ctx context.Context, rec models.TelemetryRecord) {
	report := in.threshold.Evaluate(rec, in.now())
	if report == nil {
		return
	}
	result, err := in.alerts.WriteEnvironmental(ctx, *report)
	if err != nil {
		in.log.WarnCtx(ctx, "environmental alert write failed", "vehicle_id", rec.VehicleID, "error", err)
		return
	}
	in.countAlert("environmental", result.Severity, result.Created)

	// Broadcast whether or not the row was newly created: the Fan-out Hub
	// reflects the evaluator's finding, not the store's de-duplication.
	in.hub.Broadcast(hub.Event{Kind: "environmental_alert", Data: report, EmittedAt: in.now()})
}

func (in *Ingestor) runZoneEval(ctx context.Context, telemetryID int64) {
	decision, err := in.zone.Evaluate(ctx, telemetryID)
	if err != nil {
		in.log.WarnCtx(ctx, "zone evaluation failed", "telemetry_id", telemetryID, "error", err)
		return
	}
	if decision.Skipped || !decision.Violation {
		return
	}

	result, err := in.alerts.WriteZoneViolation(ctx, decision.VehicleID, decision.ZoneID, telemetryID)
	if err != nil {
		in.log.WarnCtx(ctx, "zone violation alert write failed", "vehicle_id", decision.VehicleID, "error", err)
		return
	}
	in.countAlert("zone_violation", result.Severity, result.Created)

	in.hub.Broadcast(hub.Event{
		Kind: "zone_alert",
		Data: map[string]any{
			"type":         "zone_violation",
			"violation":    models.ZoneViolationOutside,
			"zone_id":      decision.ZoneID,
			"telemetry_id": telemetryID,
			"vehicle_id":   decision.VehicleID,
		},
		EmittedAt: in.now(),
	})
}

// countAlert records an alert write outcome, distinguishing a newly created
// row from one short-circuited by active-duplicate suppression.
func (in *Ingestor) countAlert(kind string, severity models.Severity, created bool) {
	if in.metrics == nil {
		return
	}
	if created {
		in.metrics.AlertsCreated.WithLabelValues(kind, string(severity)).Inc()
		return
	}
	in.metrics.AlertsDeduplicated.WithLabelValues(kind).Inc()
}

func normalizeTimestamp(rec models.TelemetryRecord) (time.Time, error) {
	if rec.TimestampRaw == "" {
		return time.Time{}, fmt.Errorf("ingest: missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339, rec.TimestampRaw)
	if err != nil {
		return time.Time{}, fmt.Errorf("ingest: parse timestamp %q: %w", rec.TimestampRaw, err)
	}
	return ts, nil
}
