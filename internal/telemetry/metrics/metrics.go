// Package metrics exposes the insight engine's operational counters and
// gauges through a Prometheus registry, mirroring the provider-style wiring
// used throughout the reference codebase's telemetry stack (simplified here
// to a single Prometheus-backed type since the engine only ever needs one
// fixed, known set of instruments — see DESIGN.md).
package metrics

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every instrument the insight engine records against.
type Metrics struct {
	reg *prom.Registry

	TelemetryIngested    *prom.CounterVec
	AlertsCreated        *prom.CounterVec
	AlertsDeduplicated   *prom.CounterVec
	DeadVehicleScans     prom.Counter
	DeadVehicleOverdue   prom.Gauge
	SubscriberCount      prom.Gauge
	UpstreamReconnects   prom.Counter
	UpstreamFramesBad    prom.Counter

	handler http.Handler
}

// New constructs a Metrics instance registered against its own registry.
func New() *Metrics {
	reg := prom.NewRegistry()

	m := &Metrics{
		reg: reg,
		TelemetryIngested: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "telemetry_points_ingested_total",
			Help:      "Total telemetry points successfully persisted.",
		}, []string{"vehicle_id"}),
		AlertsCreated: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "alerts_created_total",
			Help:      "Total alerts newly inserted, by kind and severity.",
		}, []string{"kind", "severity"}),
		AlertsDeduplicated: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "alerts_deduplicated_total",
			Help:      "Total alert creations short-circuited by active-duplicate suppression.",
		}, []string{"kind"}),
		DeadVehicleScans: prom.NewCounter(prom.CounterOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "dead_vehicle_scan_ticks_total",
			Help:      "Total dead-vehicle scanner ticks completed.",
		}),
		DeadVehicleOverdue: prom.NewGauge(prom.GaugeOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "dead_vehicle_overdue_count",
			Help:      "Number of vehicles overdue as of the most recent scan.",
		}),
		SubscriberCount: prom.NewGauge(prom.GaugeOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "hub_subscribers",
			Help:      "Current number of connected alert subscribers.",
		}),
		UpstreamReconnects: prom.NewCounter(prom.CounterOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "upstream_reconnects_total",
			Help:      "Total reconnect attempts made to the telemetry feed.",
		}),
		UpstreamFramesBad: prom.NewCounter(prom.CounterOpts{
			Namespace: "deepseaguard",
			Subsystem: "insight_engine",
			Name:      "upstream_malformed_frames_total",
			Help:      "Total inbound frames dropped for failing to parse as JSON.",
		}),
	}

	for _, c := range []prom.Collector{
		m.TelemetryIngested, m.AlertsCreated, m.AlertsDeduplicated,
		m.DeadVehicleScans, m.DeadVehicleOverdue, m.SubscriberCount,
		m.UpstreamReconnects, m.UpstreamFramesBad,
	} {
		_ = reg.Register(c) // best-effort; duplicate registration is a programmer error we'd rather not crash on
	}

	m.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m
}

// Handler returns the HTTP handler serving /metrics.
func (m *Metrics) Handler() http.Handler { return m.handler }
