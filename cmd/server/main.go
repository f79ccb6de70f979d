package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/vinodismyname/mcpsales/config"
	"github.com/vinodismyname/mcpsales/internal/datasets"
	"github.com/vinodismyname/mcpsales/internal/ingest"
	"github.com/vinodismyname/mcpsales/internal/registry"
	"github.com/vinodismyname/mcpsales/internal/runtime"
	"github.com/vinodismyname/mcpsales/internal/security"
	"github.com/vinodismyname/mcpsales/internal/telemetry"
	"github.com/vinodismyname/mcpsales/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		useStdio        bool
		shutdownTimeout time.Duration
		metricsAddr     string
		maxRequests     int
		maxDatasets     int
		datasetTTL      time.Duration
		modelName       string
	)

	flag.BoolVar(&useStdio, "stdio", false, "Run server over stdio transport")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address (disabled when empty)")
	flag.IntVar(&maxRequests, "max-requests", config.DefaultMaxConcurrentRequests, "Max concurrent tool calls")
	flag.IntVar(&maxDatasets, "max-datasets", config.DefaultMaxOpenDatasets, "Max datasets held in memory")
	flag.DurationVar(&datasetTTL, "dataset-ttl", config.DefaultDatasetIdleTTL, "Idle time before a dataset handle expires")
	flag.StringVar(&modelName, "model", "gpt-4o", "Client model name used to report its context window")
	flag.Parse()

	logger := zlog.With().Str("service", "mcpsales-server").Logger()
	ctx := logger.WithContext(context.Background())

	sources := config.SourcesFromEnv()

	// Security: validate allow-list directories on startup (fail-safe on error)
	secMgr, err := security.NewManagerFromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("security: failed to initialize manager from env")
		fmt.Fprintf(os.Stderr, "invalid security configuration; set %s\n", config.EnvAllowedDirs)
		os.Exit(1)
	}
	if err := secMgr.ValidateConfig(); err != nil {
		logger.Error().Err(err).Msg("security: invalid allow-list configuration")
		fmt.Fprintf(os.Stderr, "no allowed directories configured; set %s\n", config.EnvAllowedDirs)
		os.Exit(1)
	}
	logger.Info().Strs("allowed_dirs", secMgr.AllowedDirectories()).Bool("exports_enabled", sources.ExportsEnabled).Msg("security allow-list configured")

	limits := runtime.NewLimits(maxRequests, maxDatasets)
	runtimeController := runtime.NewController(limits)
	runtimeMW := runtime.NewMiddleware(runtimeController, logger)

	datasetMgr := datasets.NewManager(datasetTTL, config.DefaultEvictInterval, runtimeController, nil)

	metrics := telemetry.NewMetrics(datasetMgr.Count)
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(promRegistry)

	datasetMgr.OnEvict(func(d *datasets.Dataset) {
		metrics.DatasetEvicted()
		logger.Info().Str("dataset_id", d.ID).Str("origin", d.Origin).Msg("dataset expired")
	})
	datasetMgr.Start()

	toolRegistry := registry.New()
	exportFilter := registry.NewExportToolFilter(sources, toolRegistry)

	srv := server.NewMCPServer(
		"MCP Sales Analytics Server",
		version.Version(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(telemetry.BuildHooks(logger)),
		server.WithToolHandlerMiddleware(metrics.ToolMiddleware),
		server.WithToolHandlerMiddleware(runtimeMW.ToolMiddleware),
		server.WithToolFilter(func(ctx context.Context, tools []mcp.Tool) []mcp.Tool { return exportFilter.FilterTools(ctx, tools) }),
	)

	registry.RegisterSalesTools(srv, toolRegistry, registry.Deps{
		Limits:   runtimeController.LimitsSnapshot(),
		Sources:  sources,
		Loader:   ingest.NewLoader(secMgr, limits, logger),
		Datasets: datasetMgr,
		Security: secMgr,
		Metrics:  metrics,
		Logger:   logger,
	})

	logger.Info().
		Ctx(ctx).
		Str("version", version.Version()).
		Int("max_concurrent_requests", limits.MaxConcurrentRequests).
		Int("max_open_datasets", limits.MaxOpenDatasets).
		Dur("dataset_ttl", datasetTTL).
		Str("default_file", sources.DefaultFile).
		Bool("sheet_url_configured", sources.SheetCSVURL != "").
		Int("model_context_size", toolRegistry.ModelContextSize(modelName)).
		Bool("stdio", useStdio).
		Msg("server bootstrap configured")

	if !useStdio {
		// If no transport flags provided, print usage and exit non-zero
		fmt.Fprintln(os.Stderr, "no transport selected; use --stdio to run over stdio")
		os.Exit(2)
	}

	var metricsSrv *http.Server
	if metricsAddr != "" {
		metricsSrv = &http.Server{Addr: metricsAddr, Handler: opsRouter(promRegistry, datasetMgr, runtimeController), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", metricsAddr).Msg("metrics listener stopped")
			}
		}()
		logger.Info().Str("addr", metricsAddr).Msg("metrics listener started")
	}

	serveErr := server.ServeStdio(srv)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := datasetMgr.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("dataset manager shutdown incomplete")
	}

	if serveErr != nil {
		// Use stderr for transport errors so clients don't misinterpret output
		fmt.Fprintf(os.Stderr, "Server error: %v\n", serveErr)
		os.Exit(1)
	}
}

// opsRouter serves Prometheus metrics and a liveness probe.
func opsRouter(gatherer prometheus.Gatherer, mgr *datasets.Manager, ctrl *runtime.Controller) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ok datasets=%d inflight=%d\n", mgr.Count(), ctrl.InFlight())
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
