package handler_test

import (
	"context"
	"sync"
	"time"

	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

var builtAt = time.Date(2024, 4, 1, 0, 30, 0, 0, time.UTC)

type fakeDashboard struct {
	mu       sync.Mutex
	view     *dashboard.View
	err      error
	refresh  int
	resizes  int
	refreshC context.Context

	// started replaces view when a refresh is accepted.
	started *dashboard.View
}

func (f *fakeDashboard) View() *dashboard.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeDashboard) TriggerRefresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	f.refreshC = ctx
	if f.err == nil && f.started != nil {
		f.view = f.started
	}
	return f.err
}

func (f *fakeDashboard) NotifyResize() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes++
}

type fixedClock string

func (c fixedClock) Current() string { return string(c) }

func loadingView() *dashboard.View {
	return &dashboard.View{
		State:          dashboard.StateLoading,
		Busy:           true,
		OperatorChart:  render.MessageRegion(render.SlotOperatorChart, "Loading...", false),
		PassengerChart: render.MessageRegion(render.SlotPassengerChart, "Loading...", false),
		Map:            render.MessageRegion(render.SlotMap, "Loading...", false),
	}
}

func readyView() *dashboard.View {
	snap := &ridership.Snapshot{
		ID:                   "snap_test",
		BuiltAt:              builtAt,
		TotalDailyPassengers: 3590000,
		Performance:          ridership.DefaultPerformance(),
		Stations: []ridership.Station{
			{Rank: 1, NameEn: "Shinjuku", NameJp: "新宿", Operator: "JR East", Railway: "Yamanote", DailyPassengers: 3590000},
		},
	}
	return &dashboard.View{
		State:          dashboard.StateReady,
		Snapshot:       snap,
		Metrics:        dashboard.MetricsPanel{TotalPassengers: "3,590,000"},
		Stations:       render.NewLister().RenderStations(snap.Stations),
		OperatorChart:  render.MessageRegion(render.SlotOperatorChart, render.MsgNoBreakdown, false),
		PassengerChart: render.MessageRegion(render.SlotPassengerChart, render.MsgNoStations, false),
		Map:            render.MessageRegion(render.SlotMap, render.MsgNoCoordinates, false),
		UpdatedAt:      builtAt,
	}
}

func failedView() *dashboard.View {
	return &dashboard.View{
		State:          dashboard.StateLoadFailed,
		OperatorChart:  render.MessageRegion(render.SlotOperatorChart, dashboard.MsgOperatorFailed, true),
		PassengerChart: render.MessageRegion(render.SlotPassengerChart, dashboard.MsgPassengerFailed, true),
		Map:            render.MessageRegion(render.SlotMap, dashboard.MsgMapFailed, true),
		Error:          "Failed to fetch data: HTTP 500",
	}
}
