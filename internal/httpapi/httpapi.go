// Package httpapi exposes the insight engine's request surface: liveness,
// the insights query, the alert subscriber websocket, health, and metrics.
// Handler composition follows the reference codebase's health/readiness
// handler style in engine/adapters/telemetryhttp/handlers.go.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tritonminingco/deepseaguard/internal/hub"
	"github.com/tritonminingco/deepseaguard/internal/insights"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/health"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
)

// InsightsQuery is the subset of the insights query the HTTP layer needs.
type InsightsQuery interface {
	Fetch(ctx context.Context, p insights.Params) (insights.Result, error)
}

// Hub is the subset of the fan-out hub the subscriber endpoint needs.
type Hub interface {
	Register(sub hub.Subscriber)
	Unregister(id string)
	Count() int
}

// Health is the subset of the health aggregator the health endpoint needs.
type Health interface {
	Snapshot() health.Snapshot
}

// Server bundles the handlers backing the insight engine's HTTP surface.
type Server struct {
	insights InsightsQuery
	hub      Hub
	health   Health
	metrics  http.Handler
	log      logging.Logger
	upgrader websocket.Upgrader
}

// New constructs a Server. metrics may be nil, in which case /metrics 404s.
func New(insightsQuery InsightsQuery, h Hub, hea Health, metrics http.Handler, log logging.Logger) *Server {
	return &Server{
		insights: insightsQuery,
		hub:      h,
		health:   hea,
		metrics:  metrics,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the chi router for the full request surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/insights", s.handleInsights)
	r.Get("/ws/alert", s.handleWebsocket)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "deepseaguard insight engine"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.health.Snapshot()
	status := http.StatusOK
	if snap.Overall == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	input, err := parseParamsInput(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := insights.ParseParams(input)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.insights.Fetch(r.Context(), params)
	if err != nil {
		s.log.ErrorCtx(r.Context(), "insights query failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "insights query failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

func parseParamsInput(r *http.Request) (insights.ParamsInput, error) {
	q := r.URL.Query()

	var in insights.ParamsInput
	in.VehicleID = q.Get("vehicle_id")
	if in.VehicleID == "" {
		in.VehicleID = q.Get("auv_id")
	}
	in.Kind = q.Get("kind")
	in.Summary = q.Get("summary") == "true" || q.Get("summary") == "1"

	if v := q.Get("summary_modes"); v != "" {
		in.SummaryModes = splitCSV(v)
	}
	if v := q.Get("timeseries_fields"); v != "" {
		in.TimeseriesFields = splitCSV(v)
	}

	var err error
	if in.Limit, err = parseIntParam(q, "limit"); err != nil {
		return insights.ParamsInput{}, err
	}
	if in.WindowMinutes, err = parseIntParam(q, "window_minutes"); err != nil {
		return insights.ParamsInput{}, err
	}
	if in.TimeseriesLimit, err = parseIntParam(q, "timeseries_limit"); err != nil {
		return insights.ParamsInput{}, err
	}
	return in, nil
}

func parseIntParam(q map[string][]string, key string) (*int, error) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 || vals[0] == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(vals[0])
	if err != nil {
		return nil, &paramError{key: key, value: vals[0]}
	}
	return &n, nil
}

type paramError struct {
	key, value string
}

func (e *paramError) Error() string {
	return e.key + " must be an integer, got " + e.value
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// wsSubscriber adapts one websocket connection to hub.Subscriber.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex // serialises broadcast sends and echo replies on conn
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Send(event hub.Event) error { return s.write(event) }

func (s *wsSubscriber) write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteJSON(v)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnCtx(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{id: uuid.NewString(), conn: conn}
	s.hub.Register(sub)
	defer s.hub.Unregister(sub.id)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var payload any
		if err := json.Unmarshal(raw, &payload); err != nil {
			_ = sub.write(map[string]string{"type": "error", "message": "Invalid JSON format"})
			continue
		}
		_ = sub.write(map[string]any{
			"type":      "echo",
			"data":      payload,
			"timestamp": time.Now(),
		})
	}
}
