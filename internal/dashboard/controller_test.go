package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership/feed"
)

const analysisJSON = `{
	"executive_summary": {"total_daily_passengers": 8500000},
	"real_time_analysis": {"system_performance": {"overall_punctuality": 96.5, "average_delay": 0.8, "cancelled_services": 3}},
	"station_analysis": {
		"operator_breakdown": {"JR East": {"total_passengers": 5000000}, "Tokyo Metro": {"total_passengers": 3500000}},
		"busiest_stations": [
			{"rank": 2, "name_en": "Shibuya Station", "operator": "Tokyo Metro", "railway": "Ginza", "daily_passengers": 600000},
			{"rank": 1, "name_en": "Shinjuku Station", "operator": "JR East", "railway": "Yamanote", "daily_passengers": 770000,
				"coordinates": {"lat": 35.6896, "lng": 139.7006}}
		]
	}
}`

const stationsJSON = `{"stations": [{"name_en": "Shibuya Station", "name_jp": "渋谷駅", "lat": 35.658, "lng": 139.7016}]}`

func documents(t *testing.T) *feed.Documents {
	t.Helper()
	var analysis, stations any
	require.NoError(t, json.Unmarshal([]byte(analysisJSON), &analysis))
	require.NoError(t, json.Unmarshal([]byte(stationsJSON), &stations))
	return &feed.Documents{Analysis: analysis, Stations: stations}
}

// fakeFetcher returns queued results in order, repeating the last one.
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   atomic.Int32
	gate    chan struct{}
}

type fetchResult struct {
	docs *feed.Documents
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*feed.Documents, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return r.docs, r.err
}

func okFetcher(t *testing.T) *fakeFetcher {
	return &fakeFetcher{results: []fetchResult{{docs: documents(t)}}}
}

// fakeHandle records disposal.
type fakeHandle struct {
	region   render.Region
	disposed atomic.Bool
	layouts  atomic.Int64
}

func (h *fakeHandle) View() render.Region {
	r := h.region
	r.Revision = h.layouts.Load()
	return r
}
func (h *fakeHandle) Dispose()  { h.disposed.Store(true) }
func (h *fakeHandle) Relayout() { h.layouts.Add(1) }

// fakeCharts is a ChartRenderer whose behaviour is set per test.
type fakeCharts struct {
	name      string
	operator  func() (render.Handle, error)
	passenger func() (render.Handle, error)

	mu      sync.Mutex
	handles []*fakeHandle
	opCalls atomic.Int32
	paCalls atomic.Int32
}

func newFakeCharts(name string) *fakeCharts {
	return &fakeCharts{name: name}
}

func (f *fakeCharts) handle(slot render.Slot) *fakeHandle {
	h := &fakeHandle{region: render.Region{Slot: slot, Renderer: f.name}}
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	return h
}

func (f *fakeCharts) RenderOperatorChart([]ridership.OperatorShare) (render.Handle, error) {
	f.opCalls.Add(1)
	if f.operator != nil {
		return f.operator()
	}
	return f.handle(render.SlotOperatorChart), nil
}

func (f *fakeCharts) RenderPassengerChart([]ridership.Station) (render.Handle, error) {
	f.paCalls.Add(1)
	if f.passenger != nil {
		return f.passenger()
	}
	return f.handle(render.SlotPassengerChart), nil
}

type fakeMap struct {
	name  string
	err   error
	calls atomic.Int32
	last  atomic.Pointer[fakeHandle]
}

func (f *fakeMap) RenderStations([]ridership.Station) (render.MapHandle, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	h := &fakeHandle{region: render.Region{Slot: render.SlotMap, Renderer: f.name}}
	f.last.Store(h)
	return h, nil
}

type countingProbe struct {
	available bool
	calls     atomic.Int32
}

func (p *countingProbe) Available(context.Context) bool {
	p.calls.Add(1)
	return p.available
}

type recordingDisplay struct {
	mu       sync.Mutex
	messages []string
}

func (d *recordingDisplay) ShowError(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
}

func (d *recordingDisplay) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.messages...)
}

func fastConfig(fetcher dashboard.Fetcher) dashboard.Config {
	return dashboard.Config{
		Fetcher:        fetcher,
		PollInterval:   time.Millisecond,
		MinBusy:        -1,
		ResizeDebounce: time.Millisecond,
	}
}

func TestController_InitialView(t *testing.T) {
	c := dashboard.NewController(fastConfig(okFetcher(t)))
	defer c.Close()

	v := c.View()
	assert.Equal(t, dashboard.StateUninitialized, v.State)
	assert.Equal(t, "Loading...", v.Metrics.TotalPassengers)
	assert.Nil(t, v.Snapshot)
}

func TestController_Load(t *testing.T) {
	c := dashboard.NewController(fastConfig(okFetcher(t)))
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))

	v := c.View()
	assert.Equal(t, dashboard.StateReady, v.State)
	assert.False(t, v.Busy)
	require.NotNil(t, v.Snapshot)
	assert.Equal(t, "8,500,000", v.Metrics.TotalPassengers)
	assert.Equal(t, "96.5%", v.Metrics.Punctuality)
	assert.Equal(t, "0.8", v.Metrics.AverageDelay)
	assert.Equal(t, "3", v.Metrics.CancelledServices)
	assert.True(t, v.Metrics.Reported)

	require.Len(t, v.Stations.Items, 2)
	assert.Equal(t, "Shinjuku Station", v.Stations.Items[0].Name)
	assert.Equal(t, "渋谷駅", v.Stations.Items[1].NameJp)

	assert.Equal(t, render.RendererChartJS, v.OperatorChart.Renderer)
	assert.Equal(t, render.RendererChartJS, v.PassengerChart.Renderer)
	assert.Equal(t, render.RendererLeaflet, v.Map.Renderer)
	require.NotNil(t, v.Map.Map)
	assert.Len(t, v.Map.Map.Markers, 2)
	assert.Empty(t, v.Error)
	assert.Nil(t, v.Notification)
}

func TestController_LoadFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "analysis status",
			err:     &feed.LoadError{Kind: feed.KindNetwork, Source: feed.SourceAnalysis, StatusCode: 500},
			message: "Failed to load analysis data: 500",
		},
		{
			name:    "stations status",
			err:     &feed.LoadError{Kind: feed.KindNetwork, Source: feed.SourceStations, StatusCode: 404},
			message: "Failed to load station data: 404",
		},
		{
			name:    "unreachable",
			err:     &feed.LoadError{Kind: feed.KindNetwork, Source: feed.SourceAnalysis, Err: errors.New("dial tcp: refused")},
			message: "Failed to load analysis data: upstream unreachable",
		},
		{
			name:    "malformed stations",
			err:     feed.NewParseError(feed.SourceStations, errors.New("invalid character")),
			message: "Failed to parse station data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charts := newFakeCharts(render.RendererChartJS)
			fallback := newFakeCharts(render.RendererFallback)
			maps := &fakeMap{name: render.RendererLeaflet}
			display := &recordingDisplay{}

			cfg := fastConfig(&fakeFetcher{results: []fetchResult{{err: tt.err}}})
			cfg.Charts = charts
			cfg.ChartFallback = fallback
			cfg.Map = maps
			cfg.MapFallback = maps
			cfg.ErrorDisplay = display
			c := dashboard.NewController(cfg)
			defer c.Close()

			err := c.Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			v := c.View()
			assert.Equal(t, dashboard.StateLoadFailed, v.State)
			assert.Equal(t, tt.message, v.Error)
			assert.Nil(t, v.Snapshot)
			assert.True(t, v.Metrics.IsError)
			assert.Equal(t, dashboard.MsgMetricsError, v.Metrics.TotalPassengers)

			// every region carries its own message
			messages := []string{
				v.Stations.Message,
				v.OperatorChart.Message,
				v.PassengerChart.Message,
				v.Map.Message,
			}
			seen := map[string]bool{}
			for _, m := range messages {
				assert.NotEmpty(t, m)
				assert.False(t, seen[m], "duplicate region message %q", m)
				seen[m] = true
			}
			assert.True(t, v.OperatorChart.IsError)
			assert.True(t, v.Map.IsError)

			assert.Zero(t, charts.opCalls.Load()+charts.paCalls.Load())
			assert.Zero(t, fallback.opCalls.Load()+fallback.paCalls.Load())
			assert.Zero(t, maps.calls.Load())
			assert.Equal(t, []string{tt.message}, display.all())
		})
	}
}

func TestController_BuildErrorIsParseError(t *testing.T) {
	var analysis any
	require.NoError(t, json.Unmarshal([]byte(`{"executive_summary": {}}`), &analysis))

	display := &recordingDisplay{}
	cfg := fastConfig(&fakeFetcher{results: []fetchResult{{docs: &feed.Documents{Analysis: analysis}}}})
	cfg.ErrorDisplay = display
	c := dashboard.NewController(cfg)
	defer c.Close()

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrParse)
	assert.ErrorIs(t, err, ridership.ErrMissingRequired)
	assert.Equal(t, dashboard.StateLoadFailed, c.State())
	assert.Equal(t, []string{"Failed to parse analysis data"}, display.all())
}

func TestController_ChartFallbackAfterPolling(t *testing.T) {
	probe := &countingProbe{}
	charts := newFakeCharts(render.RendererChartJS)
	fallback := newFakeCharts(render.RendererFallback)

	cfg := fastConfig(okFetcher(t))
	cfg.ChartProbe = probe
	cfg.Charts = charts
	cfg.ChartFallback = fallback
	c := dashboard.NewController(cfg)
	defer c.Close()

	start := time.Now()
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, int32(dashboard.DefaultPollAttempts), probe.calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), time.Duration(dashboard.DefaultPollAttempts-1)*time.Millisecond)
	assert.Zero(t, charts.opCalls.Load())
	assert.Zero(t, charts.paCalls.Load())
	assert.Equal(t, int32(1), fallback.opCalls.Load())
	assert.Equal(t, int32(1), fallback.paCalls.Load())

	v := c.View()
	assert.Equal(t, render.RendererFallback, v.OperatorChart.Renderer)
	assert.Equal(t, render.RendererFallback, v.PassengerChart.Renderer)
}

func TestController_ChartProbeRemembered(t *testing.T) {
	probe := &countingProbe{available: true}
	cfg := fastConfig(okFetcher(t))
	cfg.ChartProbe = probe
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, int32(1), probe.calls.Load())
}

func TestController_MapUnavailable(t *testing.T) {
	probe := &countingProbe{}
	maps := &fakeMap{name: render.RendererLeaflet}
	cfg := fastConfig(okFetcher(t))
	cfg.MapProbe = probe
	cfg.Map = maps
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, int32(1), probe.calls.Load())
	assert.Zero(t, maps.calls.Load())
	v := c.View()
	assert.Equal(t, render.RendererFallback, v.Map.Renderer)
	require.NotNil(t, v.Map.Plot)
	assert.Len(t, v.Map.Plot.Markers, 2)
}

func TestController_RendererFailureDegradesOnlyItsSlot(t *testing.T) {
	charts := newFakeCharts(render.RendererChartJS)
	charts.operator = func() (render.Handle, error) { panic("canvas exploded") }
	fallback := newFakeCharts(render.RendererFallback)
	fallback.operator = func() (render.Handle, error) { return nil, errors.New("no layout") }
	maps := &fakeMap{name: render.RendererLeaflet, err: errors.New("tiles")}

	cfg := fastConfig(okFetcher(t))
	cfg.Charts = charts
	cfg.ChartFallback = fallback
	cfg.Map = maps
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))

	v := c.View()
	assert.Equal(t, dashboard.StateReady, v.State)
	assert.Equal(t, render.RendererMessage, v.OperatorChart.Renderer)
	assert.Equal(t, "Failed to create operator chart", v.OperatorChart.Message)
	assert.True(t, v.OperatorChart.IsError)

	assert.Equal(t, render.RendererChartJS, v.PassengerChart.Renderer)
	assert.Equal(t, render.RendererFallback, v.Map.Renderer)
	assert.Len(t, v.Stations.Items, 2)
	assert.Equal(t, "8,500,000", v.Metrics.TotalPassengers)
}

func TestController_DisposesBeforeRerender(t *testing.T) {
	charts := newFakeCharts(render.RendererChartJS)
	var previous *fakeHandle
	var disposedFirst atomic.Bool
	charts.operator = func() (render.Handle, error) {
		if previous != nil {
			disposedFirst.Store(previous.disposed.Load())
		}
		previous = charts.handle(render.SlotOperatorChart)
		return previous, nil
	}
	maps := &fakeMap{name: render.RendererLeaflet}

	cfg := fastConfig(okFetcher(t))
	cfg.Charts = charts
	cfg.Map = maps
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	firstMap := maps.last.Load()
	require.NoError(t, c.Refresh(context.Background()))

	assert.True(t, disposedFirst.Load())
	assert.True(t, firstMap.disposed.Load())
	assert.False(t, maps.last.Load().disposed.Load())
	assert.Equal(t, int32(2), charts.opCalls.Load())
}

func TestController_RefreshFailureKeepsSnapshot(t *testing.T) {
	display := &recordingDisplay{}
	fetcher := &fakeFetcher{results: []fetchResult{
		{docs: documents(t)},
		{err: &feed.LoadError{Kind: feed.KindNetwork, Source: feed.SourceStations, StatusCode: 503}},
		{docs: documents(t)},
	}}
	cfg := fastConfig(fetcher)
	cfg.ErrorDisplay = display
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	loaded := c.View()

	require.Error(t, c.Refresh(context.Background()))
	v := c.View()
	assert.Equal(t, dashboard.StateRefreshFailed, v.State)
	assert.Same(t, loaded.Snapshot, v.Snapshot)
	assert.Equal(t, loaded.Stations, v.Stations)
	assert.Equal(t, loaded.OperatorChart, v.OperatorChart)
	assert.Equal(t, "Failed to load station data: 503", v.Error)
	require.NotNil(t, v.Notification)
	assert.Equal(t, dashboard.NotifyRefreshFailed, v.Notification.Message)
	assert.False(t, v.Notification.Success)
	assert.Equal(t, []string{"Failed to load station data: 503"}, display.all())

	require.NoError(t, c.Refresh(context.Background()))
	v = c.View()
	assert.Equal(t, dashboard.StateReady, v.State)
	assert.Empty(t, v.Error)
	require.NotNil(t, v.Notification)
	assert.Equal(t, dashboard.NotifyRefreshed, v.Notification.Message)
	assert.True(t, v.Notification.Success)
	assert.Equal(t, int64(2), v.Notification.ID)
	assert.NotSame(t, loaded.Snapshot, v.Snapshot)
}

func TestController_RefreshAfterLoadFailure(t *testing.T) {
	fetcher := &fakeFetcher{results: []fetchResult{
		{err: &feed.LoadError{Kind: feed.KindNetwork, Source: feed.SourceAnalysis, StatusCode: 500}},
		{docs: documents(t)},
	}}
	c := dashboard.NewController(fastConfig(fetcher))
	defer c.Close()

	require.Error(t, c.Load(context.Background()))
	require.NoError(t, c.Refresh(context.Background()))

	v := c.View()
	assert.Equal(t, dashboard.StateReady, v.State)
	assert.False(t, v.Metrics.IsError)
	assert.Equal(t, render.RendererChartJS, v.OperatorChart.Renderer)
}

func TestController_OverlappingRequestsIgnored(t *testing.T) {
	fetcher := okFetcher(t)
	fetcher.gate = make(chan struct{})
	c := dashboard.NewController(fastConfig(fetcher))

	ctx := context.Background()
	require.NoError(t, c.TriggerRefresh(ctx))
	assert.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, time.Millisecond)

	assert.True(t, c.Busy())
	assert.ErrorIs(t, c.TriggerRefresh(ctx), dashboard.ErrCycleInProgress)
	assert.ErrorIs(t, c.Refresh(ctx), dashboard.ErrCycleInProgress)
	assert.ErrorIs(t, c.Load(ctx), dashboard.ErrCycleInProgress)
	assert.Equal(t, dashboard.StateLoading, c.State())
	assert.True(t, c.View().Busy)

	close(fetcher.gate)
	c.Close()

	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.False(t, c.Busy())
	assert.Equal(t, dashboard.StateReady, c.State())
	assert.False(t, c.View().Busy)
}

func TestController_MinBusy(t *testing.T) {
	cfg := fastConfig(okFetcher(t))
	cfg.MinBusy = 50 * time.Millisecond
	c := dashboard.NewController(cfg)
	defer c.Close()

	start := time.Now()
	require.NoError(t, c.Load(context.Background()))
	loadTook := time.Since(start)

	start = time.Now()
	require.NoError(t, c.Refresh(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Less(t, loadTook, 50*time.Millisecond)
}

func TestController_StateInProgressUntilControlReleased(t *testing.T) {
	fetcher := okFetcher(t)
	cfg := fastConfig(fetcher)
	cfg.MinBusy = 100 * time.Millisecond
	c := dashboard.NewController(cfg)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	fetcher.gate = make(chan struct{})
	start := time.Now()
	require.NoError(t, c.TriggerRefresh(ctx))

	// the trigger returns with the cycle already visible
	v := c.View()
	assert.Equal(t, dashboard.StateRefreshing, v.State)
	assert.True(t, v.Busy)
	close(fetcher.gate)

	deadline := time.Now().Add(time.Second)
	for {
		v = c.View()
		if !v.State.InProgress() {
			break
		}
		require.True(t, v.Busy, "in-progress view must keep the control disabled")
		require.True(t, time.Now().Before(deadline), "cycle did not finish")
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, dashboard.StateReady, v.State)
	assert.False(t, v.Busy)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.NotNil(t, v.Notification)
	assert.Equal(t, dashboard.NotifyRefreshed, v.Notification.Message)
}

func TestController_BusyMatchesPublishedView(t *testing.T) {
	c := dashboard.NewController(fastConfig(okFetcher(t)))
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	done := make(chan struct{})
	var mismatches atomic.Int32
	var watcher sync.WaitGroup
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			v := c.View()
			if v.State.InProgress() != v.Busy {
				mismatches.Add(1)
			}
		}
	}()

	var triggers sync.WaitGroup
	for i := 0; i < 4; i++ {
		triggers.Add(1)
		go func() {
			defer triggers.Done()
			for j := 0; j < 200; j++ {
				_ = c.TriggerRefresh(ctx)
			}
		}()
	}
	triggers.Wait()
	c.Close()
	close(done)
	watcher.Wait()

	assert.Zero(t, mismatches.Load())
	v := c.View()
	assert.Equal(t, dashboard.StateReady, v.State)
	assert.False(t, v.Busy)
	assert.False(t, c.Busy())
}

func TestController_LibraryRegionsCarryStandby(t *testing.T) {
	c := dashboard.NewController(fastConfig(okFetcher(t)))
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	v := c.View()

	require.NotNil(t, v.OperatorChart.Standby)
	assert.Equal(t, render.RendererFallback, v.OperatorChart.Standby.Renderer)
	assert.NotNil(t, v.OperatorChart.Standby.Doughnut)

	require.NotNil(t, v.PassengerChart.Standby)
	assert.NotNil(t, v.PassengerChart.Standby.Bars)

	require.NotNil(t, v.Map.Standby)
	require.NotNil(t, v.Map.Standby.Plot)
	assert.Len(t, v.Map.Standby.Plot.Markers, 2)
}

func TestController_StandbyMessageWhenFallbackFails(t *testing.T) {
	fallback := newFakeCharts(render.RendererFallback)
	fallback.operator = func() (render.Handle, error) { return nil, errors.New("no layout") }

	cfg := fastConfig(okFetcher(t))
	cfg.ChartFallback = fallback
	cfg.MapFallback = &fakeMap{name: render.RendererFallback, err: errors.New("no plot")}
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	v := c.View()

	assert.Equal(t, render.RendererChartJS, v.OperatorChart.Renderer)
	require.NotNil(t, v.OperatorChart.Standby)
	assert.Equal(t, "Chart library not loaded", v.OperatorChart.Standby.Message)
	assert.True(t, v.OperatorChart.Standby.IsError)

	require.NotNil(t, v.PassengerChart.Standby)
	assert.Equal(t, render.RendererFallback, v.PassengerChart.Standby.Renderer)

	assert.Equal(t, render.RendererLeaflet, v.Map.Renderer)
	require.NotNil(t, v.Map.Standby)
	assert.Equal(t, "Map library not loaded", v.Map.Standby.Message)
}

func TestController_NoStandbyForFallbackRegions(t *testing.T) {
	cfg := fastConfig(okFetcher(t))
	cfg.ChartProbe = render.StaticProbe(false)
	cfg.MapProbe = render.StaticProbe(false)
	c := dashboard.NewController(cfg)
	defer c.Close()

	require.NoError(t, c.Load(context.Background()))
	v := c.View()

	assert.Equal(t, render.RendererFallback, v.OperatorChart.Renderer)
	assert.Nil(t, v.OperatorChart.Standby)
	assert.Equal(t, render.RendererFallback, v.Map.Renderer)
	assert.Nil(t, v.Map.Standby)
}

func TestController_NotifyResize(t *testing.T) {
	maps := &fakeMap{name: render.RendererLeaflet}
	cfg := fastConfig(okFetcher(t))
	cfg.Map = maps
	cfg.ResizeDebounce = 20 * time.Millisecond
	c := dashboard.NewController(cfg)
	defer c.Close()

	// no map yet
	c.NotifyResize()

	require.NoError(t, c.Load(context.Background()))
	for i := 0; i < 5; i++ {
		c.NotifyResize()
	}

	assert.Eventually(t, func() bool { return c.View().Map.Revision == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), maps.last.Load().layouts.Load())
}

func TestController_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	fetcher := okFetcher(t)
	fetcher.gate = make(chan struct{})

	cfg := fastConfig(fetcher)
	cfg.Metrics = dashboard.NewMetrics(reg)
	c := dashboard.NewController(cfg)

	require.NoError(t, c.TriggerRefresh(context.Background()))
	assert.Eventually(t, c.Busy, time.Second, time.Millisecond)
	assert.ErrorIs(t, c.TriggerRefresh(context.Background()), dashboard.ErrCycleInProgress)
	close(fetcher.gate)
	c.Close()

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				values[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}

	assert.Equal(t, float64(1), values["tokyotraffic_cycles_total"])
	assert.Equal(t, float64(1), values["tokyotraffic_cycles_rejected_total"])
	assert.Equal(t, float64(4), values["tokyotraffic_renders_total"])
	assert.Equal(t, float64(2), values["tokyotraffic_snapshot_stations"])
}
