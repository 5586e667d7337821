// Package upstream maintains a long-lived websocket connection to the
// telemetry feed, reconnecting with a fixed backoff and handing each
// decoded frame to the ingestor one at a time. Mirrors the reconnect
// contract of app/main.py's upstream websocket consumer loop.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tritonminingco/deepseaguard/internal/models"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/metrics"
)

// ReconnectDelay is the fixed wait between connection attempts.
const ReconnectDelay = 5 * time.Second

// HeartbeatInterval is the expected application-level keepalive cadence;
// a read that goes silent for two intervals is treated as a dead
// connection and triggers reconnection.
const HeartbeatInterval = 30 * time.Second

// DialTimeout bounds how long establishing one connection may take.
const DialTimeout = 60 * time.Second

// Ingestor is the subset of the telemetry ingestor the client needs.
type Ingestor interface {
	Ingest(ctx context.Context, rec models.TelemetryRecord) (int64, error)
}

// Client consumes the upstream telemetry feed.
type Client struct {
	url       string
	ingestor  Ingestor
	log       logging.Logger
	metrics   *metrics.Metrics
	dial      func(ctx context.Context, url string) (*websocket.Conn, error)
	connected atomic.Bool
}

// New constructs a Client targeting url.
func New(url string, ingestor Ingestor, log logging.Logger, m *metrics.Metrics) *Client {
	return &Client{
		url:      url,
		ingestor: ingestor,
		log:      log,
		metrics:  m,
		dial:     dialContext,
	}
}

// Connected reports whether the client currently holds a live connection to
// the upstream feed.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func dialContext(ctx context.Context, url string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Run connects and consumes frames until ctx is cancelled, reconnecting
// with ReconnectDelay after any error.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx, c.url)
		if err != nil {
			c.log.WarnCtx(ctx, "upstream dial failed", "error", err)
			if c.metrics != nil {
				c.metrics.UpstreamReconnects.Inc()
			}
			if !sleepOrDone(ctx, ReconnectDelay) {
				return
			}
			continue
		}

		c.connected.Store(true)
		c.readLoop(ctx, conn)
		c.connected.Store(false)
		conn.Close()
		if c.metrics != nil {
			c.metrics.UpstreamReconnects.Inc()
		}
		if !sleepOrDone(ctx, ReconnectDelay) {
			return
		}
	}
}

// readLoop processes frames one at a time until the connection errs or
// goes silent past two heartbeat intervals.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(2 * HeartbeatInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * HeartbeatInterval))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.log.WarnCtx(ctx, "upstream read failed", "error", err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * HeartbeatInterval))

		rec, err := decodeFrame(raw)
		if err != nil {
			c.log.WarnCtx(ctx, "upstream frame malformed, dropping", "error", err)
			if c.metrics != nil {
				c.metrics.UpstreamFramesBad.Inc()
			}
			continue
		}

		if _, err := c.ingestor.Ingest(ctx, rec); err != nil {
			c.log.WarnCtx(ctx, "ingest failed for upstream frame", "vehicle_id", rec.VehicleID, "error", err)
		}
	}
}

func decodeFrame(raw []byte) (models.TelemetryRecord, error) {
	var rec models.TelemetryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.TelemetryRecord{}, fmt.Errorf("upstream: decode frame: %w", err)
	}
	if rec.VehicleID == "" {
		return models.TelemetryRecord{}, fmt.Errorf("upstream: frame missing vehicle_id")
	}
	return rec, nil
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
