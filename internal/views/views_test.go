package views_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
	"github.com/tokyotraffic/tokyotraffic/internal/views"
)

func stations() []ridership.Station {
	return []ridership.Station{
		{Rank: 1, NameEn: "Shinjuku", NameJp: "新宿", Operator: "JR East", Railway: "Yamanote", DailyPassengers: 3590000,
			Coordinates: &ridership.Coordinates{Lat: 35.6896, Lng: 139.7006}},
		{Rank: 2, NameEn: "<b>Shibuya</b>", Operator: "Tokyu", Railway: "Toyoko", DailyPassengers: 2400000,
			Coordinates: &ridership.Coordinates{Lat: 35.6580, Lng: 139.7016}},
	}
}

func breakdown() []ridership.OperatorShare {
	return []ridership.OperatorShare{
		{Label: "JR East", TotalPassengers: 3590000},
		{Label: "Tokyu", TotalPassengers: 2400000},
	}
}

func renderPage(t *testing.T, page views.Page) string {
	t.Helper()
	tmpl, err := views.Parse()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, views.PageTemplate, page))
	return buf.String()
}

func readyView(t *testing.T, operator, passenger, station render.Handle) *dashboard.View {
	t.Helper()
	list := render.NewLister().RenderStations(stations())
	return &dashboard.View{
		State:          dashboard.StateReady,
		Snapshot:       &ridership.Snapshot{ID: "snap_1", BuiltAt: time.Now(), Stations: stations()},
		Metrics:        dashboard.MetricsPanel{TotalPassengers: "5,990,000", Punctuality: "98.5%", AverageDelay: "1.2", CancelledServices: "3", Reported: true},
		Stations:       list,
		OperatorChart:  operator.View(),
		PassengerChart: passenger.View(),
		Map:            station.View(),
	}
}

func TestParse(t *testing.T) {
	tmpl, err := views.Parse()
	require.NoError(t, err)

	for _, name := range []string{"dashboard", "metrics", "stations", "region", "drawing", "doughnut", "bars", "plot"} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestPage_Failed(t *testing.T) {
	view := &dashboard.View{
		State: dashboard.StateLoadFailed,
		Metrics: dashboard.MetricsPanel{
			TotalPassengers: dashboard.MsgMetricsError, Punctuality: dashboard.MsgMetricsError,
			AverageDelay: dashboard.MsgMetricsError, CancelledServices: dashboard.MsgMetricsError, IsError: true,
		},
		Stations:       render.StationList{Message: dashboard.MsgListFailed},
		OperatorChart:  render.MessageRegion(render.SlotOperatorChart, dashboard.MsgOperatorFailed, true),
		PassengerChart: render.MessageRegion(render.SlotPassengerChart, dashboard.MsgPassengerFailed, true),
		Map:            render.MessageRegion(render.SlotMap, dashboard.MsgMapFailed, true),
		Error:          "Failed to fetch data: HTTP 500",
	}

	html := renderPage(t, views.Page{Title: "Tokyo Rail Ridership", Clock: "09:00:00 JST", View: view})

	assert.Contains(t, html, `data-state="load_failed"`)
	assert.Contains(t, html, "Failed to fetch data: HTTP 500")
	assert.Contains(t, html, dashboard.MsgOperatorFailed)
	assert.Contains(t, html, dashboard.MsgPassengerFailed)
	assert.Contains(t, html, dashboard.MsgMapFailed)
	assert.Contains(t, html, dashboard.MsgListFailed)
	assert.Contains(t, html, "09:00:00 JST")
	assert.NotContains(t, html, "Performance figures are defaults")
}

func TestPage_LibraryRenderers(t *testing.T) {
	charts := render.NewChartJS()
	operator, err := charts.RenderOperatorChart(breakdown())
	require.NoError(t, err)
	passenger, err := charts.RenderPassengerChart(stations())
	require.NoError(t, err)
	station, err := render.NewLeaflet(render.LeafletConfig{}).RenderStations(stations())
	require.NoError(t, err)

	html := renderPage(t, views.Page{
		Title:           "Tokyo Rail Ridership",
		ChartLibraryURL: "https://cdn.jsdelivr.net/npm/chart.js@4.4.0/dist/chart.umd.min.js",
		MapLibraryURL:   "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js",
		View:            readyView(t, operator, passenger, station),
	})

	assert.Contains(t, html, `<script type="application/json" class="chart-config">{`)
	assert.Contains(t, html, `<script type="application/json" class="map-config">{`)
	assert.Contains(t, html, `href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css"`)
	assert.Contains(t, html, `data-renderer="chartjs"`)
	assert.Contains(t, html, `data-renderer="leaflet"`)
	assert.Contains(t, html, "新宿")

	// feed text never reaches the page unescaped
	assert.NotContains(t, html, "<b>Shibuya</b>")
	assert.Contains(t, html, "&lt;b&gt;Shibuya&lt;/b&gt;")
}

func TestPage_FallbackRenderers(t *testing.T) {
	charts := render.NewFallbackCharts()
	operator, err := charts.RenderOperatorChart(breakdown())
	require.NoError(t, err)
	passenger, err := charts.RenderPassengerChart(stations())
	require.NoError(t, err)
	station, err := render.NewFallbackMap().RenderStations(stations())
	require.NoError(t, err)

	html := renderPage(t, views.Page{Title: "Tokyo Rail Ridership", View: readyView(t, operator, passenger, station)})

	assert.Contains(t, html, `class="doughnut" style="background: conic-gradient(`)
	assert.Contains(t, html, `class="bar-fill" style="height: 100%; background: #667eea"`)
	assert.Contains(t, html, `class="plot-marker" style="left: `)
	assert.NotContains(t, html, "ZgotmplZ")
	assert.NotContains(t, html, "chart-config")
	assert.NotContains(t, html, "leaflet.css")
}

func TestPage_LibraryRegionsEmbedHiddenStandby(t *testing.T) {
	operator, err := render.NewChartJS().RenderOperatorChart(breakdown())
	require.NoError(t, err)
	passenger, err := render.NewChartJS().RenderPassengerChart(stations())
	require.NoError(t, err)
	station, err := render.NewLeaflet(render.LeafletConfig{}).RenderStations(stations())
	require.NoError(t, err)
	doughnut, err := render.NewFallbackCharts().RenderOperatorChart(breakdown())
	require.NoError(t, err)

	view := readyView(t, operator, passenger, station)
	standby := doughnut.View()
	view.OperatorChart.Standby = &standby
	missing := render.MessageRegion(render.SlotMap, "Map library not loaded", true)
	view.Map.Standby = &missing

	html := renderPage(t, views.Page{Title: "Tokyo Rail Ridership", View: view})

	assert.Contains(t, html, `<div class="standby" data-renderer="fallback" hidden>`)
	assert.Contains(t, html, `class="doughnut" style="background: conic-gradient(`)
	assert.Contains(t, html, `<div class="standby" data-renderer="message" hidden>`)
	assert.Contains(t, html, `<p class="message error">Map library not loaded</p>`)
	assert.Equal(t, 2, strings.Count(html, `class="standby"`))
	assert.Contains(t, html, `class="chart-config"`)
	assert.Contains(t, html, `class="map-config"`)
}

func TestPage_BrowserTimings(t *testing.T) {
	html := renderPage(t, views.Page{
		Title:          "Tokyo Rail Ridership",
		View:           &dashboard.View{State: dashboard.StateReady},
		PollAttempts:   5,
		PollInterval:   500 * time.Millisecond,
		ResizeDebounce: 100 * time.Millisecond,
	})

	assert.Contains(t, html, `data-poll-attempts="5" data-poll-interval="500" data-resize-debounce="100"`)
}

func TestPage_BusyDisablesRefresh(t *testing.T) {
	view := &dashboard.View{State: dashboard.StateRefreshing, Busy: true}

	html := renderPage(t, views.Page{Title: "Tokyo Rail Ridership", View: view})

	assert.Contains(t, html, `id="refresh" class="refresh" disabled`)
	assert.Contains(t, html, "Refreshing...")
}

func TestPage_Notification(t *testing.T) {
	view := &dashboard.View{
		State:        dashboard.StateRefreshFailed,
		Notification: &dashboard.Notification{ID: 7, Message: dashboard.NotifyRefreshFailed},
	}

	html := renderPage(t, views.Page{Title: "Tokyo Rail Ridership", View: view})

	assert.Contains(t, html, `class="notification failure" data-id="7"`)
	assert.Contains(t, html, dashboard.NotifyRefreshFailed)
}

func TestPage_MapStyleURL(t *testing.T) {
	assert.Equal(t, "https://unpkg.com/leaflet@1.9.4/dist/leaflet.css",
		views.Page{MapLibraryURL: "https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"}.MapStyleURL())
	assert.Empty(t, views.Page{MapLibraryURL: "https://example.com/map"}.MapStyleURL())
	assert.Empty(t, views.Page{}.MapStyleURL())
}

func TestStatic(t *testing.T) {
	srv := httptest.NewServer(http.StripPrefix("/static/", views.Static()))
	defer srv.Close()

	for _, name := range []string{"dashboard.js", "dashboard.css"} {
		resp, err := http.Get(srv.URL + "/static/" + name)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, name)
		assert.NotEmpty(t, body, name)
	}
}
