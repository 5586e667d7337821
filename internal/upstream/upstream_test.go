package upstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
)

func TestDecodeFrameRejectsMissingVehicleID(t *testing.T) {
	_, err := decodeFrame([]byte(`{"timestamp":"2026-01-01T00:00:00Z"}`))
	assert.Error(t, err)
}

func TestDecodeFrameRejectsMalformedJSON(t *testing.T) {
	_, err := decodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeFrameAcceptsValidFrame(t *testing.T) {
	rec, err := decodeFrame([]byte(`{"vehicle_id":"AUV-1","timestamp":"2026-01-01T00:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "AUV-1", rec.VehicleID)
}

func TestSleepOrDoneReturnsFalseWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepOrDone(ctx, time.Second))
}

func TestSleepOrDoneReturnsTrueAfterDelay(t *testing.T) {
	assert.True(t, sleepOrDone(context.Background(), time.Millisecond))
}

type fakeIngestor struct {
	count int32
}

func (f *fakeIngestor) Ingest(ctx context.Context, rec models.TelemetryRecord) (int64, error) {
	atomic.AddInt32(&f.count, 1)
	return 1, nil
}

func TestRunProcessesFramesFromServerAndStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		frame, _ := json.Marshal(models.TelemetryRecord{VehicleID: "AUV-1", TimestampRaw: "2026-01-01T00:00:00Z"})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	ingestor := &fakeIngestor{}
	c := New(wsURL, ingestor, logging.New(slog.Default()), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&ingestor.count), int32(1))
}
