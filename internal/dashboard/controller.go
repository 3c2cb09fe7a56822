// Package dashboard owns the dashboard lifecycle: it fetches the ridership
// documents, builds a snapshot, hands it to the renderers and publishes the
// resulting view.
package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership/feed"
)

const tracerName = "github.com/tokyotraffic/tokyotraffic/internal/dashboard"

// Defaults for Config.
const (
	DefaultPollAttempts   = 5
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultMinBusy        = time.Second
	DefaultResizeDebounce = 100 * time.Millisecond
)

// Cycle triggers, used in logs and metrics.
const (
	triggerLoad    = "load"
	triggerRefresh = "refresh"
)

// Fetcher retrieves the two documents of a cycle.
type Fetcher interface {
	Fetch(ctx context.Context) (*feed.Documents, error)
}

// SnapshotBuilder turns fetched documents into a snapshot.
type SnapshotBuilder interface {
	Build(analysis, stations any) (*ridership.Snapshot, error)
}

// Config holds configuration for the controller.
type Config struct {
	// Fetcher retrieves documents (required).
	Fetcher Fetcher

	// Builder builds snapshots (default: ridership.NewBuilder with default aliases).
	Builder SnapshotBuilder

	// List renders the station list (default: render.Lister).
	List render.ListRenderer

	// Charts is the library chart renderer (default: render.ChartJS).
	// ChartFallback is used when Charts is unavailable or fails
	// (default: render.FallbackCharts).
	Charts        render.ChartRenderer
	ChartFallback render.ChartRenderer

	// ChartProbe reports whether the chart library loaded (default: always).
	ChartProbe render.CapabilityProbe

	// Map is the library map renderer (default: render.Leaflet).
	// MapFallback is used when Map is unavailable or fails
	// (default: render.FallbackMap).
	Map         render.MapRenderer
	MapFallback render.MapRenderer

	// MapProbe reports whether the map library loaded (default: always).
	MapProbe render.CapabilityProbe

	// ErrorDisplay is told about every failed cycle (optional).
	ErrorDisplay ErrorDisplay

	// PollAttempts bounds how often ChartProbe is asked before the
	// fallback is used. Default: 5
	PollAttempts int

	// PollInterval is the wait between probe attempts. Default: 500ms
	PollInterval time.Duration

	// MinBusy is the shortest time the refresh control stays disabled.
	// Default: 1 second
	MinBusy time.Duration

	// ResizeDebounce is the quiet period before a map relayout. Default: 100ms
	ResizeDebounce time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time

	// Metrics records Prometheus metrics (optional).
	Metrics *Metrics

	// Tracer for cycle spans (default: global tracer).
	Tracer trace.Tracer

	// Logger for controller operations.
	Logger zerolog.Logger
}

// Controller runs load and refresh cycles and owns every piece of mutable
// dashboard state. It is safe for concurrent use.
type Controller struct {
	fetcher       Fetcher
	builder       SnapshotBuilder
	list          render.ListRenderer
	charts        render.ChartRenderer
	chartFallback render.ChartRenderer
	chartProbe    render.CapabilityProbe
	maps          render.MapRenderer
	mapFallback   render.MapRenderer
	mapProbe      render.CapabilityProbe
	display       ErrorDisplay
	pollAttempts  int
	pollInterval  time.Duration
	minBusy       time.Duration
	now           func() time.Time
	metrics       *Metrics
	tracer        trace.Tracer
	logger        zerolog.Logger

	// busy is the overlap guard; it is held from trigger until the busy
	// indicator is released.
	busy atomic.Bool

	// chartsReady latches once the chart probe has succeeded.
	chartsReady atomic.Bool

	view atomic.Pointer[View]

	mu              sync.Mutex // guards the fields below and view publication
	state           State
	operatorHandle  render.Handle
	passengerHandle render.Handle
	mapHandle       render.MapHandle
	notifications   int64

	resize *Debouncer
	wg     sync.WaitGroup
}

// NewController creates a new controller in the Uninitialized state.
func NewController(cfg Config) *Controller {
	c := &Controller{
		fetcher:       cfg.Fetcher,
		builder:       cfg.Builder,
		list:          cfg.List,
		charts:        cfg.Charts,
		chartFallback: cfg.ChartFallback,
		chartProbe:    cfg.ChartProbe,
		maps:          cfg.Map,
		mapFallback:   cfg.MapFallback,
		mapProbe:      cfg.MapProbe,
		display:       cfg.ErrorDisplay,
		pollAttempts:  cfg.PollAttempts,
		pollInterval:  cfg.PollInterval,
		minBusy:       cfg.MinBusy,
		now:           cfg.Now,
		metrics:       cfg.Metrics,
		tracer:        cfg.Tracer,
		logger:        cfg.Logger,
	}

	if c.builder == nil {
		c.builder = ridership.NewBuilder(ridership.BuilderConfig{})
	}
	if c.list == nil {
		c.list = render.NewLister()
	}
	if c.charts == nil {
		c.charts = render.NewChartJS()
	}
	if c.chartFallback == nil {
		c.chartFallback = render.NewFallbackCharts()
	}
	if c.chartProbe == nil {
		c.chartProbe = render.StaticProbe(true)
	}
	if c.maps == nil {
		c.maps = render.NewLeaflet(render.LeafletConfig{})
	}
	if c.mapFallback == nil {
		c.mapFallback = render.NewFallbackMap()
	}
	if c.mapProbe == nil {
		c.mapProbe = render.StaticProbe(true)
	}
	if c.pollAttempts <= 0 {
		c.pollAttempts = DefaultPollAttempts
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.minBusy < 0 {
		c.minBusy = 0
	} else if c.minBusy == 0 {
		c.minBusy = DefaultMinBusy
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}

	debounce := cfg.ResizeDebounce
	if debounce <= 0 {
		debounce = DefaultResizeDebounce
	}
	c.resize = NewDebouncer(debounce, c.relayout)

	v := loadingView()
	v.UpdatedAt = c.now()
	c.view.Store(v)

	return c
}

// View returns the currently published view.
func (c *Controller) View() *View {
	return c.view.Load()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a cycle holds the refresh control.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Load runs a load cycle and blocks until it completes. It returns
// ErrCycleInProgress if a cycle is already running, or the *feed.LoadError
// of a failed cycle.
func (c *Controller) Load(ctx context.Context) error {
	if !c.acquire() {
		return ErrCycleInProgress
	}
	start := c.now()
	return c.runCycle(ctx, triggerLoad, c.begin(false), start)
}

// Refresh runs a refresh cycle and blocks until it completes, including the
// minimum busy period. Without a displayed snapshot it performs a load.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.acquire() {
		return ErrCycleInProgress
	}
	start := c.now()
	return c.runCycle(ctx, triggerRefresh, c.begin(true), start)
}

// TriggerRefresh starts a refresh cycle in the background and returns once
// the view shows the cycle as in progress. ctx must outlive the cycle.
func (c *Controller) TriggerRefresh(ctx context.Context) error {
	if !c.acquire() {
		return ErrCycleInProgress
	}
	start := c.now()
	phase := c.begin(true)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.runCycle(ctx, triggerRefresh, phase, start) //nolint:errcheck // outcome is published in the view
	}()
	return nil
}

// NotifyResize schedules a debounced map relayout.
func (c *Controller) NotifyResize() {
	c.resize.Trigger()
}

// Close stops pending relayouts and waits for background cycles.
func (c *Controller) Close() {
	c.resize.Stop()
	c.wg.Wait()
}

func (c *Controller) acquire() bool {
	if c.busy.CompareAndSwap(false, true) {
		return true
	}
	c.metrics.cycleRejected()
	c.logger.Debug().Msg("cycle already in progress, request ignored")
	return false
}

// begin publishes the in-progress phase of a cycle. The caller holds busy.
func (c *Controller) begin(refresh bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	phase := StateLoading
	if c.state.HasSnapshot() {
		phase = StateRefreshing
	}
	c.state = phase
	c.publish(func(v *View) {
		v.State = phase
		v.Busy = refresh
	})
	return phase
}

// outcome is the result of a cycle, published once the refresh control is
// released.
type outcome struct {
	state State
	apply func(v *View)
}

// runCycle fetches, builds and renders, then publishes the outcome. The
// in-progress phase stays visible until the minimum busy period has passed,
// and busy is released only after the final view is published.
func (c *Controller) runCycle(ctx context.Context, trigger string, phase State, start time.Time) error {
	refresh := trigger == triggerRefresh
	defer c.busy.Store(false)

	ctx, span := c.tracer.Start(ctx, "dashboard.cycle", trace.WithAttributes(
		attribute.String("dashboard.trigger", trigger),
		attribute.String("dashboard.phase", phase.String()),
	))
	defer span.End()

	logger := c.logger.With().Str("trigger", trigger).Str("phase", phase.String()).Logger()

	snap, err := c.fetchAndBuild(ctx)
	var out outcome
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle failed")
		out = c.fail(phase, refresh, err, logger)
	} else {
		out = c.succeed(ctx, snap, refresh, logger)
	}

	if refresh {
		c.holdBusy(ctx, start)
	}

	c.mu.Lock()
	c.state = out.state
	c.publish(func(v *View) {
		out.apply(v)
		v.State = out.state
		v.Busy = false
		if c.mapHandle != nil {
			// a relayout may have run during the busy period
			v.Map.Revision = c.mapHandle.View().Revision
		}
	})
	c.mu.Unlock()

	elapsed := c.now().Sub(start)
	span.SetAttributes(attribute.String("dashboard.state", out.state.String()))
	c.metrics.cycleFinished(trigger, out.state, elapsed)
	logger.Info().Str("state", out.state.String()).Dur("duration", elapsed).Msg("dashboard cycle finished")

	return err
}

func (c *Controller) fetchAndBuild(ctx context.Context) (*ridership.Snapshot, error) {
	docs, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, asLoadError(err)
	}

	snap, err := c.builder.Build(docs.Analysis, docs.Stations)
	if err != nil {
		return nil, asLoadError(err)
	}
	return snap, nil
}

// fail reports a failed cycle. A failed initial load replaces every region
// with its own message without invoking any renderer; a failed refresh
// keeps the previous snapshot on display.
func (c *Controller) fail(phase State, refresh bool, err error, logger zerolog.Logger) outcome {
	loadErr := asLoadError(err)
	msg := errorMessage(loadErr)

	logger.Error().Err(err).
		Str("source", string(loadErr.Source)).
		Str("kind", loadErr.Kind.String()).
		Msg("dashboard cycle failed")

	final := StateLoadFailed
	if phase == StateRefreshing {
		final = StateRefreshFailed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if final == StateLoadFailed {
		c.disposeAll()
	}
	var note *Notification
	if refresh {
		note = c.notification(NotifyRefreshFailed, false)
	}

	if c.display != nil {
		c.display.ShowError(msg)
	}
	return outcome{state: final, apply: func(v *View) {
		v.Error = msg
		if final == StateLoadFailed {
			applyLoadFailure(v)
		}
		if note != nil {
			v.Notification = note
		}
	}}
}

func (c *Controller) succeed(ctx context.Context, snap *ridership.Snapshot, refresh bool, logger zerolog.Logger) outcome {
	// Probing can wait on the chart library, so it happens before the lock.
	charts := c.chartAttempts(ctx, snap, logger)
	maps := c.mapAttempts(ctx, snap)

	c.mu.Lock()
	defer c.mu.Unlock()

	stations := c.renderList(snap, logger)
	operator := renderSlot(c, render.SlotOperatorChart, &c.operatorHandle, logger, charts.operator...)
	passenger := renderSlot(c, render.SlotPassengerChart, &c.passengerHandle, logger, charts.passenger...)
	mapRegion := renderSlot(c, render.SlotMap, &c.mapHandle, logger, maps...)

	var note *Notification
	if refresh {
		note = c.notification(NotifyRefreshed, true)
	}
	c.metrics.snapshotStations(len(snap.Stations))

	return outcome{state: StateReady, apply: func(v *View) {
		v.Snapshot = snap
		v.Metrics = metricsPanel(snap)
		v.Stations = stations
		v.OperatorChart = operator
		v.PassengerChart = passenger
		v.Map = mapRegion
		v.Error = ""
		if note != nil {
			v.Notification = note
		}
	}}
}

// holdBusy keeps the refresh control disabled until minBusy has passed
// since start.
func (c *Controller) holdBusy(ctx context.Context, start time.Time) {
	wait := c.minBusy - c.now().Sub(start)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// publish swaps in a modified copy of the current view. c.mu must be held.
func (c *Controller) publish(mutate func(v *View)) {
	next := *c.view.Load()
	mutate(&next)
	next.UpdatedAt = c.now()
	c.view.Store(&next)
}

func (c *Controller) notification(msg string, success bool) *Notification {
	c.notifications++
	return &Notification{
		ID:      c.notifications,
		Message: msg,
		Success: success,
		At:      c.now(),
	}
}

// relayout recomputes the map layout after a resize. It only bumps the
// revision of the published map region.
func (c *Controller) relayout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mapHandle == nil {
		return
	}
	c.mapHandle.Relayout()
	revision := c.mapHandle.View().Revision
	c.publish(func(v *View) { v.Map.Revision = revision })
}

// disposeAll releases every chart and map handle. c.mu must be held.
func (c *Controller) disposeAll() {
	if c.operatorHandle != nil {
		c.operatorHandle.Dispose()
		c.operatorHandle = nil
	}
	if c.passengerHandle != nil {
		c.passengerHandle.Dispose()
		c.passengerHandle = nil
	}
	if c.mapHandle != nil {
		c.mapHandle.Dispose()
		c.mapHandle = nil
	}
}
