// Package insights assembles the alerts listing plus optional timeseries
// and statistics rollups, mirroring app/services/insights.py fetch_insights.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/spatialstore"
)

const (
	defaultLimit           = 20
	minLimit               = 1
	maxLimit               = 100
	defaultWindowMinutes   = 20
	minWindowMinutes       = 1
	maxWindowMinutes       = 1440
	defaultTimeseriesLimit = 30
	minTimeseriesLimit     = 10
	maxTimeseriesLimit     = 200
)

var allowedSummaryModes = map[string]struct{}{"timeseries": {}, "stats": {}}

var allowedTimeseriesFields = map[string]struct{}{
	"temperature_c":  {},
	"depth_m":        {},
	"velocity_knots": {},
	"location":       {},
}

// Params is the validated, clamped request shape for one insights query.
type Params struct {
	VehicleID        string
	Kind             string
	Limit            int
	Summary          bool
	SummaryModes     []string
	WindowMinutes    int
	TimeseriesLimit  int
	TimeseriesFields []string
}

// ParamsInput is the raw, unvalidated request shape as parsed from query
// string values.
type ParamsInput struct {
	VehicleID        string
	Kind             string
	Limit            *int
	Summary          bool
	SummaryModes     []string
	WindowMinutes    *int
	TimeseriesLimit  *int
	TimeseriesFields []string
}

// ParseParams validates and clamps a raw request. Unknown kind or unknown
// summary_modes entries are rejected; clamp-table fields are clamped, never
// rejected, and unknown timeseries_fields entries are silently dropped.
func ParseParams(in ParamsInput) (Params, error) {
	if in.Kind != "" {
		if _, ok := models.KnownAlertKinds[models.AlertKind(in.Kind)]; !ok {
			return Params{}, fmt.Errorf("unknown kind %q: allowed are environmental, zone_violation, dead_auv", in.Kind)
		}
	}

	modes := in.SummaryModes
	if modes == nil {
		modes = []string{"timeseries"}
	}
	for _, m := range modes {
		if _, ok := allowedSummaryModes[m]; !ok {
			return Params{}, fmt.Errorf("unknown summary mode %q: allowed are timeseries, stats", m)
		}
	}

	p := Params{
		VehicleID:       in.VehicleID,
		Kind:            in.Kind,
		Limit:           clamp(valueOr(in.Limit, defaultLimit), minLimit, maxLimit),
		Summary:         in.Summary,
		SummaryModes:    dedupeStrings(modes),
		WindowMinutes:   clamp(valueOr(in.WindowMinutes, defaultWindowMinutes), minWindowMinutes, maxWindowMinutes),
		TimeseriesLimit: clamp(valueOr(in.TimeseriesLimit, defaultTimeseriesLimit), minTimeseriesLimit, maxTimeseriesLimit),
	}

	if in.TimeseriesFields == nil {
		for f := range allowedTimeseriesFields {
			p.TimeseriesFields = append(p.TimeseriesFields, f)
		}
	} else {
		for _, f := range in.TimeseriesFields {
			if _, ok := allowedTimeseriesFields[f]; ok {
				p.TimeseriesFields = append(p.TimeseriesFields, f)
			}
		}
	}

	return p, nil
}

func valueOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Store is the subset of the spatial store the insights query needs.
type Store interface {
	ListAlerts(ctx context.Context, filter spatialstore.AlertFilter, limit int) ([]models.Alert, error)
	Timeseries(ctx context.Context, vehicleID string, windowStart time.Time, limit int) ([]models.TelemetryPoint, error)
	Stats(ctx context.Context, filter spatialstore.AlertFilter, windowStart time.Time) (spatialstore.AlertStats, error)
}

// Query runs insights requests against a store.
type Query struct {
	store Store
	now   func() time.Time
}

// New constructs a Query. now defaults to time.Now when nil.
func New(store Store, now func() time.Time) *Query {
	if now == nil {
		now = time.Now
	}
	return &Query{store: store, now: now}
}

// Result is the JSON-serializable shape returned to HTTP clients.
type Result struct {
	Alerts     []AlertView         `json:"alerts"`
	Summaries  map[string]any      `json:"summaries,omitempty"`
}

// AlertView is the projected alert shape the listing returns.
type AlertView struct {
	VehicleID string    `json:"vehicle_id"`
	Kind      string    `json:"kind"`
	Severity  string    `json:"severity"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"started_at"`
}

// Fetch executes p against the store.
func (q *Query) Fetch(ctx context.Context, p Params) (Result, error) {
	filter := spatialstore.AlertFilter{VehicleID: p.VehicleID, Kind: p.Kind}

	alerts, err := q.store.ListAlerts(ctx, filter, p.Limit)
	if err != nil {
		return Result{}, fmt.Errorf("insights: list alerts: %w", err)
	}

	result := Result{Alerts: projectAlerts(alerts)}
	if !p.Summary {
		return result, nil
	}

	summaries := make(map[string]any)
	windowStart := q.now().Add(-time.Duration(p.WindowMinutes) * time.Minute)

	for _, mode := range p.SummaryModes {
		switch mode {
		case "timeseries":
			summaries["timeseries"] = q.timeseriesSummary(ctx, p, windowStart)
		case "stats":
			stats, err := q.store.Stats(ctx, filter, windowStart)
			if err != nil {
				return Result{}, fmt.Errorf("insights: stats: %w", err)
			}
			summaries["stats"] = projectStats(stats, p.WindowMinutes)
		}
	}

	result.Summaries = summaries
	return result, nil
}

func (q *Query) timeseriesSummary(ctx context.Context, p Params, windowStart time.Time) map[string]any {
	if p.VehicleID == "" {
		return map[string]any{"timeseries_error": "timeseries summary requires vehicle_id"}
	}

	points, err := q.store.Timeseries(ctx, p.VehicleID, windowStart, p.TimeseriesLimit)
	if err != nil {
		return map[string]any{"timeseries_error": err.Error()}
	}

	projected := make([]map[string]any, 0, len(points))
	for _, pt := range points {
		entry := map[string]any{"timestamp": pt.Timestamp}
		for _, field := range p.TimeseriesFields {
			switch field {
			case "temperature_c":
				entry["temperature_c"] = pt.TemperatureC
			case "depth_m":
				entry["depth_m"] = pt.DepthM
			case "velocity_knots":
				entry["velocity_knots"] = pt.VelocityKnots
			case "location":
				entry["location"] = parsePointWKT(pt.LocationWKT)
			}
		}
		projected = append(projected, entry)
	}

	return map[string]any{
		"vehicle_id":     p.VehicleID,
		"window_minutes": p.WindowMinutes,
		"fields":         p.TimeseriesFields,
		"points":         projected,
		"count":          len(projected),
	}
}

func projectAlerts(alerts []models.Alert) []AlertView {
	out := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertView{
			VehicleID: a.VehicleID,
			Kind:      string(a.Kind),
			Severity:  string(a.Severity),
			Status:    string(a.Status),
			Message:   a.Message,
			StartedAt: a.StartedAt,
		})
	}
	return out
}

func projectStats(stats spatialstore.AlertStats, windowMinutes int) map[string]any {
	var latest any
	if stats.LatestAlertAt != nil {
		latest = *stats.LatestAlertAt
	}
	return map[string]any{
		"window_minutes":          windowMinutes,
		"total_alerts":            stats.TotalAlerts,
		"alerts_in_window":        stats.AlertsInWindow,
		"latest_alert_timestamp":  latest,
		"alerts_by_type":          stats.AlertsByKind,
	}
}

// parsePointWKT extracts {lon, lat} from a "POINT(lon lat)" string,
// returning nil for anything else.
func parsePointWKT(wkt string) map[string]float64 {
	w := strings.TrimSpace(wkt)
	if w == "" || !strings.HasPrefix(strings.ToUpper(w), "POINT(") || !strings.HasSuffix(w, ")") {
		return nil
	}
	inner := w[strings.Index(w, "(")+1 : len(w)-1]
	parts := strings.Fields(strings.ReplaceAll(inner, ",", " "))
	if len(parts) != 2 {
		return nil
	}
	var lon, lat float64
	if _, err := fmt.Sscanf(parts[0], "%g", &lon); err != nil {
		return nil
	}
	if _, err := fmt.Sscanf(parts[1], "%g", &lat); err != nil {
		return nil
	}
	return map[string]float64{"lon": lon, "lat": lat}
}
