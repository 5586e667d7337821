// Command insight-engine runs the DeepSeaGuard insight engine: it ingests
// AUV telemetry from the upstream feed, persists it to the spatial store,
// evaluates environmental and geofence thresholds, scans for silent
// vehicles, and serves the insights/alert-subscriber HTTP surface.
//
// Signal handling follows the reference CLI's double-signal shutdown: the
// first SIGINT/SIGTERM starts a graceful drain, the second forces exit.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tritonminingco/deepseaguard/internal/alertwriter"
	"github.com/tritonminingco/deepseaguard/internal/config"
	"github.com/tritonminingco/deepseaguard/internal/deadvehicle"
	"github.com/tritonminingco/deepseaguard/internal/hub"
	"github.com/tritonminingco/deepseaguard/internal/httpapi"
	"github.com/tritonminingco/deepseaguard/internal/ingest"
	"github.com/tritonminingco/deepseaguard/internal/insights"
	"github.com/tritonminingco/deepseaguard/internal/spatialstore"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/health"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/logging"
	"github.com/tritonminingco/deepseaguard/internal/telemetry/metrics"
	"github.com/tritonminingco/deepseaguard/internal/threshold"
	"github.com/tritonminingco/deepseaguard/internal/upstream"
	"github.com/tritonminingco/deepseaguard/internal/zoneeval"
	"github.com/tritonminingco/deepseaguard/internal/zonefile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(slog.Default())
	met := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := spatialstore.NewPool(ctx, cfg.AsyncDatabaseConnectionString)
	if err != nil {
		log.Fatalf("connect spatial store: %v", err)
	}
	defer pool.Close()

	if err := spatialstore.Bootstrap(ctx, pool); err != nil {
		log.Fatalf("bootstrap schema: %v", err)
	}

	store := spatialstore.New(pool, spatialstore.Config{MaxInFlightSessions: 32})

	thresholdEval := threshold.New(config.EnvironmentalThresholds)
	zoneEval := zoneeval.New(store)
	alerts := alertwriter.New(store)
	broadcaster := hub.New(met)

	ingestor := ingest.New(store, thresholdEval, zoneEval, alerts, broadcaster, logger, met, time.Now)
	scanner := deadvehicle.New(store, alerts, broadcaster, logger, met, cfg.DeadAUVTimeout, cfg.DeadAUVScanInterval, time.Now)
	zoneLoader := zonefile.New(cfg.ZonesFilePath, store, logger)
	upstreamClient := upstream.New(cfg.TelemetryWSURL, ingestor, logger, met)
	insightsQuery := insights.New(store, time.Now)

	if err := zoneLoader.LoadOnce(ctx); err != nil {
		logger.WarnCtx(ctx, "initial zone load failed, continuing with whatever zones already exist", "error", err)
	}

	healthAgg := health.NewAggregator(time.Now,
		storeProbe{store: store},
		upstreamProbe{client: upstreamClient},
		scannerProbe{scanner: scanner, staleAfter: 3 * cfg.DeadAUVScanInterval, now: time.Now},
	)

	server := httpapi.New(insightsQuery, broadcaster, healthAgg, met.Handler(), logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); scanner.Run(ctx) }()
	go func() {
		defer wg.Done()
		if err := zoneLoader.Watch(ctx); err != nil {
			logger.WarnCtx(ctx, "zone file watch exited", "error", err)
		}
	}()
	go func() { defer wg.Done(); upstreamClient.Run(ctx) }()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: met.Handler()}
	go func() {
		logger.InfoCtx(ctx, "metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCtx(ctx, "metrics server failed", "error", err)
		}
	}()

	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: server.Router()}
	go func() {
		logger.InfoCtx(ctx, "insight engine listening", "addr", cfg.HTTPAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCtx(ctx, "http server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Fprintln(os.Stderr, "signal received; initiating graceful shutdown...")
	cancel()

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "second signal received; forcing exit")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)

	wg.Wait()
}

// storeProbe adapts the spatial store's Ping into a health.Prober.
type storeProbe struct {
	store *spatialstore.Store
}

func (p storeProbe) Probe() health.ProbeResult {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.store.Ping(ctx); err != nil {
		return health.ProbeResult{Name: "spatial_store", Status: health.StatusUnhealthy, Message: err.Error()}
	}
	return health.ProbeResult{Name: "spatial_store", Status: health.StatusHealthy}
}

// upstreamProbe adapts the upstream client's connection state into a
// health.Prober.
type upstreamProbe struct {
	client *upstream.Client
}

func (p upstreamProbe) Probe() health.ProbeResult {
	if !p.client.Connected() {
		return health.ProbeResult{Name: "upstream_feed", Status: health.StatusDegraded, Message: "not connected"}
	}
	return health.ProbeResult{Name: "upstream_feed", Status: health.StatusHealthy}
}

// scannerProbe reports the dead-vehicle scanner unhealthy once it has gone
// longer than staleAfter since its last completed tick.
type scannerProbe struct {
	scanner    *deadvehicle.Scanner
	staleAfter time.Duration
	now        func() time.Time
}

func (p scannerProbe) Probe() health.ProbeResult {
	last := p.scanner.LastTick()
	if last.IsZero() {
		return health.ProbeResult{Name: "dead_vehicle_scanner", Status: health.StatusUnknown, Message: "no tick yet"}
	}
	if age := p.now().Sub(last); age > p.staleAfter {
		return health.ProbeResult{Name: "dead_vehicle_scanner", Status: health.StatusUnhealthy, Message: fmt.Sprintf("no tick in %s", age.Round(time.Second))}
	}
	return health.ProbeResult{Name: "dead_vehicle_scanner", Status: health.StatusHealthy}
}
