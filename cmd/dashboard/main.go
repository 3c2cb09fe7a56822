// Package main provides the entrypoint for the Tokyo rail ridership dashboard.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/tokyotraffic/tokyotraffic/internal/api"
	"github.com/tokyotraffic/tokyotraffic/internal/api/middleware"
	"github.com/tokyotraffic/tokyotraffic/internal/config"
	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/provider/resilience"
	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership/feed"
	"github.com/tokyotraffic/tokyotraffic/internal/telemetry"
	"github.com/tokyotraffic/tokyotraffic/internal/views"
	"github.com/tokyotraffic/tokyotraffic/internal/worker"

	// Asia/Tokyo must resolve on hosts without a zone database.
	_ "time/tzdata"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "tokyotraffic-dashboard"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting Tokyo ridership dashboard")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	upstreamMetrics, err := middleware.NewUpstreamMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize upstream metrics")
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	dashboardMetrics := dashboard.NewMetrics(promRegistry)

	providers := resilience.NewRegistry()
	observer := resilience.Observers{dashboardMetrics, upstreamMetrics}
	newClient := func(name string, retries uint64) *resilience.Client {
		c := resilience.DefaultClientConfig(name)
		c.Timeout = cfg.FetchTimeout
		c.MaxRetries = retries
		c.Registry = providers
		c.Observer = observer
		c.Logger = log.With().Str("provider", name).Logger()
		return resilience.NewClient(c)
	}

	feedClient := feed.NewClient(feed.ClientConfig{
		AnalysisURL: cfg.AnalysisURL,
		StationsURL: cfg.StationsURL,
		Analysis:    newClient(string(feed.SourceAnalysis), 2),
		Stations:    newClient(string(feed.SourceStations), 2),
		Logger:      log,
	})

	// The chart probe is polled by the controller, so its client never retries.
	chartProbe := render.NewAssetProbe(render.AssetProbeConfig{
		URL:    cfg.ChartLibraryURL,
		Client: newClient("chart-library", 0),
		Logger: log,
	})
	mapProbe := render.NewAssetProbe(render.AssetProbeConfig{
		URL:    cfg.MapLibraryURL,
		Client: newClient("map-library", 1),
		Logger: log,
	})

	minBusy := cfg.RefreshMinBusy
	if minBusy == 0 {
		minBusy = -1
	}

	controller := dashboard.NewController(dashboard.Config{
		Fetcher:       feedClient,
		Builder:       ridership.NewBuilder(ridership.BuilderConfig{Aliases: cfg.OperatorAliases}),
		List:          render.NewLister(),
		Charts:        render.NewChartJS(),
		ChartFallback: render.NewFallbackCharts(),
		ChartProbe:    chartProbe,
		Map:           render.NewLeaflet(render.LeafletConfig{}),
		MapFallback:   render.NewFallbackMap(),
		MapProbe:      mapProbe,
		ErrorDisplay: dashboard.ErrorDisplayFunc(func(message string) {
			log.Warn().Str("message", message).Msg("dashboard error shown")
		}),
		PollAttempts:   cfg.ChartPollAttempts,
		PollInterval:   cfg.ChartPollInterval,
		MinBusy:        minBusy,
		ResizeDebounce: cfg.ResizeDebounce,
		Metrics:        dashboardMetrics,
		Tracer:         tp.Tracer,
		Logger:         log,
	})
	defer controller.Close()

	loc, err := dashboard.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Msg("using fixed JST offset for the clock")
	}
	clock := dashboard.NewClock(dashboard.ClockConfig{Location: loc})
	go clock.Run(ctx)

	templates, err := views.Parse()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse page templates")
	}

	// The page serves a loading view until the first cycle finishes.
	go func() {
		if loadErr := controller.Load(ctx); loadErr != nil {
			log.Error().Err(loadErr).Msg("initial load failed")
		}
	}()

	if cfg.PubSubEnabled() {
		startTrigger(ctx, cfg, controller, log)
	}

	router := api.NewRouter(api.RouterConfig{
		Version:         Version,
		BuildTime:       BuildTime,
		Logger:          log,
		ServiceName:     serviceName,
		Metrics:         httpMetrics,
		Dashboard:       controller,
		Clock:           clock,
		Templates:       templates,
		Registry:        providers,
		Gatherer:        promRegistry,
		ChartLibraryURL: cfg.ChartLibraryURL,
		MapLibraryURL:   cfg.MapLibraryURL,
		RequireTLS:      cfg.RequireTLS,

		ChartPollAttempts: cfg.ChartPollAttempts,
		ChartPollInterval: cfg.ChartPollInterval,
		ResizeDebounce:    cfg.ResizeDebounce,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// startTrigger runs the Pub/Sub refresh trigger until ctx is cancelled.
// A trigger that cannot start is logged; the dashboard keeps serving.
func startTrigger(ctx context.Context, cfg config.Config, controller *dashboard.Controller, log zerolog.Logger) {
	logger := log.With().Str("component", "pubsub").Logger()

	pcfg := worker.DefaultPubSubConfig(cfg.PubSubProjectID, cfg.PubSubSubscription)
	pcfg.Job = worker.NewRefreshJob(worker.RefreshJobConfig{
		Refresher: controller,
		Logger:    logger,
	})
	pcfg.Health = controller
	pcfg.Logger = logger

	handler, err := worker.NewPubSubHandler(ctx, pcfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start pubsub refresh trigger")
		return
	}

	go func() {
		defer handler.Close()
		if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("pubsub refresh trigger stopped")
		}
	}()
}
