// Package config loads the dashboard server configuration from the
// environment, after merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership/feed"
)

// Library script locations the page loads by default.
const (
	DefaultChartLibraryURL = "https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"
	DefaultMapLibraryURL   = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
)

// Config is the complete server configuration.
type Config struct {
	Port        string
	Environment string
	RequireTLS  bool

	AnalysisURL string
	StationsURL string

	// FetchTimeout bounds each document request.
	FetchTimeout time.Duration

	ChartLibraryURL string
	MapLibraryURL   string

	ChartPollAttempts int
	ChartPollInterval time.Duration
	RefreshMinBusy    time.Duration
	ResizeDebounce    time.Duration

	OperatorAliases []ridership.OperatorAlias
	Timezone        string

	OTelEnabled  bool
	OTLPEndpoint string

	// PubSubProjectID and PubSubSubscription enable the remote refresh
	// trigger when both are set.
	PubSubProjectID    string
	PubSubSubscription string
}

// PubSubEnabled reports whether the remote refresh trigger is configured.
func (c Config) PubSubEnabled() bool {
	return c.PubSubProjectID != "" && c.PubSubSubscription != ""
}

// Load reads the given .env files (default ".env") into the process
// environment without overriding variables already set, then builds the
// Config. A missing file is not an error; a malformed value is.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the Config from the current environment.
func FromEnv() (Config, error) {
	p := parser{}

	cfg := Config{
		Port:        getEnvOrDefault("APP_PORT", "8080"),
		Environment: getEnvOrDefault("APP_ENV", "development"),
		RequireTLS:  p.bool("REQUIRE_TLS", false),

		AnalysisURL:  getEnvOrDefault("ANALYSIS_DATA_URL", feed.DefaultAnalysisURL),
		StationsURL:  getEnvOrDefault("STATION_DATA_URL", feed.DefaultStationsURL),
		FetchTimeout: p.duration("FETCH_TIMEOUT", 10*time.Second),

		ChartLibraryURL: getEnvOrDefault("CHART_LIBRARY_URL", DefaultChartLibraryURL),
		MapLibraryURL:   getEnvOrDefault("MAP_LIBRARY_URL", DefaultMapLibraryURL),

		ChartPollAttempts: p.int("CHART_POLL_ATTEMPTS", dashboard.DefaultPollAttempts),
		ChartPollInterval: p.duration("CHART_POLL_INTERVAL", dashboard.DefaultPollInterval),
		RefreshMinBusy:    p.duration("REFRESH_MIN_BUSY", dashboard.DefaultMinBusy),
		ResizeDebounce:    p.duration("RESIZE_DEBOUNCE", dashboard.DefaultResizeDebounce),

		OperatorAliases: ridership.DefaultOperatorAliases(),
		Timezone:        getEnvOrDefault("DISPLAY_TIMEZONE", dashboard.DefaultTimezone),

		OTelEnabled:  p.bool("OTEL_ENABLED", false),
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	if raw := os.Getenv("OPERATOR_ALIASES"); raw != "" {
		aliases, err := ridership.ParseOperatorAliases(raw)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("OPERATOR_ALIASES: %w", err))
		} else {
			cfg.OperatorAliases = append(cfg.OperatorAliases, aliases...)
		}
	}

	if cfg.ChartPollAttempts < 1 {
		p.errs = append(p.errs, fmt.Errorf("CHART_POLL_ATTEMPTS: must be at least 1, got %d", cfg.ChartPollAttempts))
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parser collects every malformed value so one run reports them all.
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func (p *parser) bool(key string, defaultValue bool) bool {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnvOrDefault(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	if d < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: must not be negative", key))
		return defaultValue
	}
	return d
}
