// Command driftwatch runs the drift-detection engine: an HTTP ingestion
// and query surface backed by the statistical kernel, baseline manager,
// drift detector, and health state machine. Flag handling and graceful
// shutdown follow the teacher's root main.go (flag.Parse, a cancelable
// context, SIGINT/SIGTERM handling). A signal cancels the context and
// starts a graceful shutdown; a second signal does not force an exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/driftwatch/driftwatch/internal/clock"
	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/healthstate"
	"github.com/driftwatch/driftwatch/internal/httpapi"
	"github.com/driftwatch/driftwatch/internal/ingestion"
	"github.com/driftwatch/driftwatch/internal/logging"
	"github.com/driftwatch/driftwatch/internal/metrics"
	"github.com/driftwatch/driftwatch/internal/simulator"
	"github.com/driftwatch/driftwatch/internal/store/sqlitestore"
	"github.com/driftwatch/driftwatch/internal/tracing"
)

func main() {
	var (
		configPath  string
		watchConfig bool
		simulate    bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to YAML config file (defaults applied if empty)")
	flag.BoolVar(&watchConfig, "watch-config", false, "Watch -config for changes and log each reload (reloaded values are not applied to the running engine)")
	flag.BoolVar(&simulate, "simulate", false, "Also run the synthetic traffic generator in-process against the ingestion pipeline while serving")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("driftwatch drift-detection engine")
		return
	}

	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}

	logger := logging.New(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	// Registers the process-wide TracerProvider used for httpapi's
	// per-request spans. httpapi itself writes no log lines, so those span
	// IDs reach logging only through code that logs with the span's ctx.
	tracer := tracing.New(cfg.ServiceName, cfg.Environment)

	provider, metricsMux := buildMetricsProvider(cfg)

	st, err := sqlitestore.Open(cfg.StoragePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	realClock := clock.Real{}
	health := healthstate.New(st, realClock)
	pipeline := ingestion.New(health, realClock, cfg.IngestionConfig())

	mux := httpapi.NewMux(httpapi.Options{Pipeline: pipeline, Health: health, Metrics: provider, Logger: logger, Tracer: tracer})
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return pipeline.Run(gctx)
	})

	g.Go(func() error {
		logger.InfoCtx(gctx, "driftwatch listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if metricsMux != nil && cfg.PrometheusListenAddr != cfg.ListenAddr {
		metricsServer := &http.Server{Addr: cfg.PrometheusListenAddr, Handler: metricsMux}
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if watchConfig && configPath != "" {
		runConfigWatcher(gctx, logger, configPath)
	}

	if simulate {
		g.Go(func() error {
			runSimulation(gctx, pipeline, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.InfoCtx(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("driftwatch exited with error: %v", err)
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// buildMetricsProvider selects the metrics backend per cfg.MetricsBackend.
// The Prometheus backend also returns a ServeMux for its exposition
// endpoint; other backends return nil (handled at /metrics via the noop
// 501 path in httpapi).
func buildMetricsProvider(cfg config.Config) (metrics.Provider, *http.ServeMux) {
	if !cfg.MetricsEnabled {
		return metrics.NewNoopProvider(), nil
	}
	switch cfg.MetricsBackend {
	case "otel":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{ServiceName: cfg.ServiceName}), nil
	case "prom":
		p := metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{Registry: prom.NewRegistry()})
		mux := http.NewServeMux()
		mux.Handle("/metrics", p.MetricsHandler())
		return p, mux
	default:
		return metrics.NewNoopProvider(), nil
	}
}

func runConfigWatcher(ctx context.Context, logger logging.Logger, path string) {
	watcher, err := config.NewWatcher(path)
	if err != nil {
		logger.WarnCtx(ctx, "config watcher unavailable", "error", err)
		return
	}
	changes, errs := watcher.Watch(ctx)
	go func() {
		defer func() { _ = watcher.Stop() }()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				logger.InfoCtx(ctx, "config reloaded")
			case err, ok := <-errs:
				if !ok {
					return
				}
				logger.WarnCtx(ctx, "config reload failed", "error", err)
			}
		}
	}()
}

// runSimulation drives synthetic load against the pipeline directly (the
// in-process Sink), useful for smoke-testing a fresh deployment without a
// separate load-generation process.
func runSimulation(ctx context.Context, pipeline *ingestion.Pipeline, logger logging.Logger) {
	accepted := simulator.Run(ctx, pipeline, simulator.Config{
		Profiles: []simulator.ServiceProfile{
			{ServiceID: "checkout-svc", LatencyMeanMs: 120, LatencyStddev: 15, PayloadMeanKB: 4, PayloadStddev: 0.5, DriftAfter: 400, DriftShiftMs: 250},
			{ServiceID: "catalog-svc", LatencyMeanMs: 40, LatencyStddev: 5, PayloadMeanKB: 2, PayloadStddev: 0.2},
		},
		SamplesTotal: 2000,
		Interval:     5 * time.Millisecond,
	})
	logger.InfoCtx(ctx, "simulation complete", "accepted", accepted)
}
