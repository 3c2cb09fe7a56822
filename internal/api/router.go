// Package api provides the HTTP surface of the Tokyo ridership dashboard.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tokyotraffic/tokyotraffic/internal/api/handler"
	"github.com/tokyotraffic/tokyotraffic/internal/api/middleware"
	"github.com/tokyotraffic/tokyotraffic/internal/api/response"
	"github.com/tokyotraffic/tokyotraffic/internal/provider/resilience"
	"github.com/tokyotraffic/tokyotraffic/internal/views"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Dashboard is the controller behind the page (required).
	Dashboard handler.Dashboard

	// Clock supplies the display time (required).
	Clock handler.ClockSource

	// Templates renders the page (required, see views.Parse).
	Templates response.TemplateExecutor

	// Registry reports upstream health on /v1/ops/status (optional).
	Registry *resilience.Registry

	// Gatherer is exposed on /metrics when set.
	Gatherer prometheus.Gatherer

	Title           string
	ChartLibraryURL string
	MapLibraryURL   string

	// Browser timings handed to the page (optional).
	ChartPollAttempts int
	ChartPollInterval time.Duration
	ResizeDebounce    time.Duration

	// RequireTLS rejects plain HTTP behind a load balancer.
	RequireTLS bool
}

// NewRouter creates a new chi router with all dashboard routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tokyotraffic-dashboard"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders(middleware.ContentSecurityPolicy(cfg.ChartLibraryURL, cfg.MapLibraryURL)))
	r.Use(middleware.RequireTLS(cfg.RequireTLS))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such page")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r, r.Method+" is not supported here")
	})

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Dashboard: cfg.Dashboard,
		Registry:  cfg.Registry,
	})
	dashboardHandler := handler.NewDashboardHandler(handler.DashboardHandlerConfig{
		Dashboard:       cfg.Dashboard,
		Clock:           cfg.Clock,
		Templates:       cfg.Templates,
		Title:           cfg.Title,
		ChartLibraryURL: cfg.ChartLibraryURL,
		MapLibraryURL:   cfg.MapLibraryURL,

		ChartPollAttempts: cfg.ChartPollAttempts,
		ChartPollInterval: cfg.ChartPollInterval,
		ResizeDebounce:    cfg.ResizeDebounce,

		Logger: cfg.Logger,
	})

	r.Get("/", dashboardHandler.Page)
	r.Handle("/static/*", http.StripPrefix("/static/", views.Static()))

	// Every accepted refresh fetches both feed documents
	r.With(middleware.RateLimitByIP(middleware.RefreshRateLimit)).Post("/refresh", dashboardHandler.Refresh)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(middleware.APIRateLimit))
		r.Get("/snapshot", dashboardHandler.Snapshot)
		r.Get("/clock", dashboardHandler.Clock)
		r.Post("/resize", dashboardHandler.Resize)
	})

	r.Route("/v1/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/ready", opsHandler.ReadinessCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
