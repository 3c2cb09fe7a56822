package render

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tokyotraffic/tokyotraffic/internal/provider/resilience"
)

// Default library asset locations.
const (
	DefaultChartLibraryURL = "https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js"
	DefaultMapLibraryURL   = "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"
)

// CapabilityProbe reports whether a rendering library can be used right now.
type CapabilityProbe interface {
	Available(ctx context.Context) bool
}

// StaticProbe always answers with its own value.
type StaticProbe bool

// Available implements CapabilityProbe.
func (p StaticProbe) Available(context.Context) bool {
	return bool(p)
}

// ProbeFunc adapts a function to CapabilityProbe.
type ProbeFunc func(ctx context.Context) bool

// Available implements CapabilityProbe.
func (f ProbeFunc) Available(ctx context.Context) bool {
	return f(ctx)
}

// AssetProbeConfig holds configuration for an asset probe.
type AssetProbeConfig struct {
	// URL is the library script the page loads.
	URL string

	// Client performs the HEAD request (required).
	Client *resilience.Client

	// Logger for probe operations.
	Logger zerolog.Logger
}

// AssetProbe checks that a library script is being served.
type AssetProbe struct {
	url    string
	client *resilience.Client
	logger zerolog.Logger
}

// NewAssetProbe creates a new asset probe.
func NewAssetProbe(cfg AssetProbeConfig) *AssetProbe {
	return &AssetProbe{
		url:    cfg.URL,
		client: cfg.Client,
		logger: cfg.Logger,
	}
}

// Available issues a HEAD request and reports whether it returned 2xx.
func (p *AssetProbe) Available(ctx context.Context) bool {
	resp, err := p.client.Head(ctx, p.url)
	if err != nil {
		p.logger.Debug().Err(err).Str("url", p.url).Msg("library asset unreachable")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		p.logger.Debug().Int("status", resp.StatusCode).Str("url", p.url).Msg("library asset unavailable")
		return false
	}
	return true
}
