package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tritonminingco/deepseaguard/internal/hub"
	"github.com/tritonminingco/deepseaguard/internal/insights"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/health"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
)

type fakeInsights struct {
	result insights.Result
	err    error
}

func (f *fakeInsights) Fetch(ctx context.Context, p insights.Params) (insights.Result, error) {
	return f.result, f.err
}

type fakeHealth struct{ status health.Status }

func (f *fakeHealth) Snapshot() health.Snapshot {
	return health.Snapshot{Overall: f.status, Generated: time.Unix(0, 0)}
}

func newTestServer(insightsImpl InsightsQuery) *Server {
	return New(insightsImpl, hub.New(nil), &fakeHealth{status: health.StatusHealthy}, nil, logging.New(slog.Default()))
}

func TestHandleRootReturns200(t *testing.T) {
	s := newTestServer(&fakeInsights{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleInsightsRejectsUnknownKind(t *testing.T) {
	s := newTestServer(&fakeInsights{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/insights?kind=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleInsightsAcceptsAuvIDAlias(t *testing.T) {
	s := newTestServer(&fakeInsights{result: insights.Result{Alerts: []insights.AlertView{}}})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/insights?auv_id=AUV-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleInsightsRejectsNonIntegerLimit(t *testing.T) {
	s := newTestServer(&fakeInsights{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/insights?limit=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleHealthReturns503WhenUnhealthy(t *testing.T) {
	s := New(&fakeInsights{}, hub.New(nil), &fakeHealth{status: health.StatusUnhealthy}, nil, logging.New(slog.Default()))
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebsocketEchoesValidJSONAndRegistersSubscriber(t *testing.T) {
	h := hub.New(nil)
	s := New(&fakeInsights{}, h, &fakeHealth{status: health.StatusHealthy}, nil, logging.New(slog.Default()))
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alert"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.Count())

	require.NoError(t, conn.WriteJSON(map[string]string{"hello": "world"}))

	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "echo", reply["type"])
}

func TestWebsocketRepliesErrorOnInvalidJSON(t *testing.T) {
	s := newTestServer(&fakeInsights{})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alert"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["type"])
	assert.Equal(t, "Invalid JSON format", reply["message"])
}

var _ = json.Marshal
