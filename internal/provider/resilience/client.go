package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Outcome labels passed to an Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeServerError = "server_error"
	OutcomeNetwork     = "network_error"
	OutcomeCircuitOpen = "circuit_open"
)

// Observer receives the result of every request made through a Client.
type Observer interface {
	ObserveUpstream(provider, outcome string, elapsed time.Duration)
}

// Observers fans one outcome out to several observers; nil entries are skipped.
type Observers []Observer

// ObserveUpstream implements Observer.
func (o Observers) ObserveUpstream(provider, outcome string, elapsed time.Duration) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveUpstream(provider, outcome, elapsed)
		}
	}
}

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies this client for circuit breaker naming.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for GET and HEAD.
	// Other methods are never retried. Zero means no retries.
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 100ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 2 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses DefaultCircuitBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, if set, receives this client and its success/failure records.
	Registry *Registry

	// Observer, if set, is told about every request outcome.
	Observer Observer

	// Transport overrides the HTTP transport (optional).
	Transport http.RoundTripper

	// Logger for retry and breaker events.
	Logger zerolog.Logger
}

// DefaultClientConfig returns sensible defaults for the resilient client.
func DefaultClientConfig(name string) ClientConfig {
	cbConfig := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CircuitBreaker:  &cbConfig,
		Logger:          zerolog.Nop(),
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
	logger         zerolog.Logger
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	cbConfig := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.Name == "" {
		cbConfig.Name = cfg.Name
	}
	if cbConfig.OnStateChange == nil {
		cbConfig.OnStateChange = LogStateChange(cfg.Logger)
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:         cfg,
		logger:         cfg.Logger.With().Str("provider", cfg.Name).Logger(),
	}

	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}

	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// Get issues a GET request for url with the given Accept header.
func (c *Client) Get(ctx context.Context, url, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.Do(req)
}

// Head issues a HEAD request for url.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.Do(req)
}

// Do executes an HTTP request with circuit breaker protection and retry logic.
// GET and HEAD are retried on transient failures (5xx, network errors) with
// exponential backoff. Returns immediately with ErrCircuitOpen if the circuit
// breaker is open.
//
// When retries are exhausted on a 5xx, the last response is returned with a
// nil error so callers can report the status code.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()

	maxRetries := c.config.MaxRetries
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		maxRetries = 0
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // retries are bounded by WithMaxRetries
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx)

	var lastResp *http.Response

	operation := func() error {
		// 5xx responses are returned as errors so they count against the breaker.
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller is responsible for closing
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if r.StatusCode >= 500 {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		if lastResp != nil && lastResp != resp {
			drain(lastResp)
		}
		lastResp = resp

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrCircuitOpen)
			}
			return err
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Dur("wait", wait).Str("url", req.URL.Redacted()).Msg("retrying upstream request")
	}

	err := backoff.RetryNotify(operation, policy, notify)

	var serverErr *ServerError
	switch {
	case err == nil:
		c.record(lastResp.StatusCode, nil, start)
		return lastResp, nil
	case errors.As(err, &serverErr) && lastResp != nil:
		c.record(lastResp.StatusCode, err, start)
		return lastResp, nil
	default:
		if lastResp != nil {
			drain(lastResp)
		}
		c.record(0, err, start)
		return nil, err
	}
}

func (c *Client) record(status int, err error, start time.Time) {
	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, ErrCircuitOpen):
		outcome = OutcomeCircuitOpen
	case status >= 500:
		outcome = OutcomeServerError
	case err != nil:
		outcome = OutcomeNetwork
	case status >= 400:
		outcome = OutcomeClientError
	}

	if c.config.Observer != nil {
		c.config.Observer.ObserveUpstream(c.config.Name, outcome, time.Since(start))
	}

	if c.config.Registry == nil {
		return
	}
	switch outcome {
	case OutcomeSuccess:
		c.config.Registry.RecordSuccess(c.config.Name)
	case OutcomeClientError:
		c.config.Registry.RecordFailure(c.config.Name, fmt.Errorf("unexpected status code: %d", status))
	default:
		c.config.Registry.RecordFailure(c.config.Name, err)
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// ServerError represents an HTTP 5xx server error.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
