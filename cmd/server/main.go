package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmagar/glances-mcp/internal/alerting"
	"github.com/jmagar/glances-mcp/internal/api"
	"github.com/jmagar/glances-mcp/internal/baseline"
	"github.com/jmagar/glances-mcp/internal/capacity"
	"github.com/jmagar/glances-mcp/internal/config"
	"github.com/jmagar/glances-mcp/internal/glances"
	"github.com/jmagar/glances-mcp/internal/logging"
	"github.com/jmagar/glances-mcp/internal/metrics"
	"github.com/jmagar/glances-mcp/internal/otel"
	"github.com/jmagar/glances-mcp/internal/tools"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP server address")
	configPath := flag.String("config", "servers.yaml", "Path to the fleet configuration file")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logJSON := flag.Bool("log-json", false, "Emit logs as JSON")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for baseline snapshots (empty to disable persistence)")
	sampleInterval := flag.Duration("sample-interval", 5*time.Minute, "Baseline sampling interval")
	evalInterval := flag.Duration("eval-interval", time.Minute, "Alert rule evaluation interval")
	retryAttempts := flag.Int("retry-attempts", 3, "Retry attempts per Glances API call")
	rateLimit := flag.Int("rate-limit", 60, "Glances API calls per minute per server")
	traceExporter := flag.String("trace-exporter", "none", "Trace exporter: none, stdout, otlp-grpc, otlp-http")
	otlpEndpoint := flag.String("otlp-endpoint", "localhost:4317", "OTLP collector endpoint")
	flag.Parse()

	logger := logging.New(*logLevel, *logJSON)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		"path", *configPath,
		"servers", len(cfg.Servers),
		"alert_rules", len(cfg.AlertRules))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering metrics: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerCfg := otel.DefaultConfig()
	if *traceExporter != string(otel.ExporterNone) {
		tracerCfg.Enabled = true
		tracerCfg.ExporterType = otel.ExporterType(*traceExporter)
		tracerCfg.OTLPEndpoint = *otlpEndpoint
	}
	tracer, err := otel.NewTracer(ctx, tracerCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing tracer: %v\n", err)
		os.Exit(1)
	}

	pool := glances.NewPool(cfg, glances.ClientConfig{
		RetryAttempts:      *retryAttempts,
		RateLimitPerMinute: *rateLimit,
	}, logger)
	pool.SetTracer(tracer)

	store := baseline.NewStore(baseline.StoreConfig{
		SampleInterval: *sampleInterval,
		SnapshotDir:    *snapshotDir,
	}, logger)
	if *snapshotDir != "" {
		if err := store.LoadSnapshots(*snapshotDir); err != nil {
			logger.Warn("snapshot load failed", "dir", *snapshotDir, "error", err)
		}
	}

	engine := alerting.NewEngine(pool, cfg, logger)
	projector := capacity.NewProjector(store, logger)

	svc := tools.NewService(cfg, pool, store, engine, projector, logger)
	svc.SetTracer(tracer)

	go store.Run(ctx, pool)
	go engine.Run(ctx, *evalInterval)

	server := api.NewServer(*addr, svc, store, prometheus.DefaultGatherer, logger)
	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting server: %v\n", err)
		os.Exit(1)
	}
	logger.Info("glances-mcp listening", "url", server.URL())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	if *snapshotDir != "" {
		if err := store.SaveSnapshots(*snapshotDir); err != nil {
			logger.Warn("final snapshot write failed", "error", err)
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
