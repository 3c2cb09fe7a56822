// Package feed fetches the two ridership documents a dashboard cycle is
// built from.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tokyotraffic/tokyotraffic/internal/provider/resilience"
)

// Default document locations.
const (
	DefaultAnalysisURL = "https://raw.githubusercontent.com/Tatsuru-Kikuchi/MCP-traffic/main/data/examples/sample_analysis_results.json"
	DefaultStationsURL = "https://raw.githubusercontent.com/Tatsuru-Kikuchi/MCP-traffic/main/data/examples/sample_station_data.json"
)

// maxBodyBytes bounds a single document.
const maxBodyBytes = 16 << 20

// Documents holds the decoded bodies of one fetch pair. Numbers are decoded
// as json.Number.
type Documents struct {
	Analysis any
	Stations any
}

// ClientConfig holds configuration for the feed client.
type ClientConfig struct {
	// AnalysisURL is the analysis document URL (optional).
	AnalysisURL string

	// StationsURL is the station document URL (optional).
	StationsURL string

	// Analysis and Stations are the HTTP clients for each document.
	// If nil, resilient clients with defaults are used.
	Analysis *resilience.Client
	Stations *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches ridership documents.
type Client struct {
	analysisURL string
	stationsURL string
	analysis    *resilience.Client
	stations    *resilience.Client
	logger      zerolog.Logger
}

// NewClient creates a new feed client.
func NewClient(cfg ClientConfig) *Client {
	analysisURL := cfg.AnalysisURL
	if analysisURL == "" {
		analysisURL = DefaultAnalysisURL
	}
	stationsURL := cfg.StationsURL
	if stationsURL == "" {
		stationsURL = DefaultStationsURL
	}

	analysis := cfg.Analysis
	if analysis == nil {
		analysis = resilience.NewClient(resilience.DefaultClientConfig(string(SourceAnalysis)))
	}
	stations := cfg.Stations
	if stations == nil {
		stations = resilience.NewClient(resilience.DefaultClientConfig(string(SourceStations)))
	}

	return &Client{
		analysisURL: analysisURL,
		stationsURL: stationsURL,
		analysis:    analysis,
		stations:    stations,
		logger:      cfg.Logger,
	}
}

// Fetch retrieves both documents concurrently. Either failing fails the pair;
// the returned error is a *LoadError naming the first failing source.
func (c *Client) Fetch(ctx context.Context) (*Documents, error) {
	var docs Documents

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.fetch(gctx, SourceAnalysis, c.analysis, c.analysisURL)
		docs.Analysis = v
		return err
	})
	g.Go(func() error {
		v, err := c.fetch(gctx, SourceStations, c.stations, c.stationsURL)
		docs.Stations = v
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &docs, nil
}

func (c *Client) fetch(ctx context.Context, src Source, client *resilience.Client, url string) (any, error) {
	resp, err := client.Get(ctx, url, "application/json")
	if err != nil {
		return nil, &LoadError{Kind: KindNetwork, Source: src, Err: fmt.Errorf("executing request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{
			Kind:       KindNetwork,
			Source:     src,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	v, err := decode(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NewParseError(src, fmt.Errorf("decoding response: %w", err))
	}

	c.logger.Debug().Str("source", string(src)).Str("url", url).Msg("document fetched")
	return v, nil
}

func decode(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after document")
	}
	return v, nil
}
