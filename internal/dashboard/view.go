package dashboard

import (
	"fmt"
	"time"

	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

// Region messages shown after a failed initial load. Each region gets its
// own text so no error is shown twice.
const (
	MsgMetricsError    = "Error"
	MsgOperatorFailed  = "Failed to load operator data"
	MsgPassengerFailed = "Failed to load passenger data"
	MsgMapFailed       = "Failed to load map data"
	MsgListFailed      = "Failed to load station data"
)

// Region messages shown when both a renderer and its fallback failed.
var renderFailedMessages = map[render.Slot]string{
	render.SlotStationList:    "Failed to create station list",
	render.SlotOperatorChart:  "Failed to create operator chart",
	render.SlotPassengerChart: "Failed to create passenger chart",
	render.SlotMap:            "Map failed to load",
}

// Region messages shown in the page when a library region has no fallback
// drawing and the library did not load in the browser.
var libraryMissingMessages = map[render.Slot]string{
	render.SlotOperatorChart:  "Chart library not loaded",
	render.SlotPassengerChart: "Chart library not loaded",
	render.SlotMap:            "Map library not loaded",
}

// Refresh notifications.
const (
	NotifyRefreshed     = "Data refreshed successfully!"
	NotifyRefreshFailed = "Failed to refresh data"
)

// View is everything the dashboard page draws. A published View is never
// modified; the controller replaces it as a whole.
type View struct {
	State State `json:"state"`

	// Busy disables the refresh control.
	Busy bool `json:"busy"`

	// Snapshot is nil until the first successful load.
	Snapshot *ridership.Snapshot `json:"snapshot,omitempty"`

	Metrics        MetricsPanel       `json:"metrics"`
	Stations       render.StationList `json:"stations"`
	OperatorChart  render.Region      `json:"operatorChart"`
	PassengerChart render.Region      `json:"passengerChart"`
	Map            render.Region      `json:"map"`

	// Error is the message of the last failed cycle, cleared on success.
	Error string `json:"error,omitempty"`

	Notification *Notification `json:"notification,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// MetricsPanel holds the formatted headline figures.
type MetricsPanel struct {
	TotalPassengers   string `json:"totalPassengers"`
	Punctuality       string `json:"punctuality"`
	AverageDelay      string `json:"averageDelay"`
	CancelledServices string `json:"cancelledServices"`

	// Reported is false when the performance figures are defaults.
	Reported bool `json:"reported"`
	IsError  bool `json:"isError,omitempty"`
}

// Notification is a transient toast message.
type Notification struct {
	ID      int64     `json:"id"`
	Message string    `json:"message"`
	Success bool      `json:"success"`
	At      time.Time `json:"at"`
}

func loadingView() *View {
	const loading = "Loading..."
	return &View{
		State: StateUninitialized,
		Metrics: MetricsPanel{
			TotalPassengers:   loading,
			Punctuality:       loading,
			AverageDelay:      loading,
			CancelledServices: loading,
		},
		Stations:       render.StationList{Items: []render.StationItem{}},
		OperatorChart:  render.MessageRegion(render.SlotOperatorChart, loading, false),
		PassengerChart: render.MessageRegion(render.SlotPassengerChart, loading, false),
		Map:            render.MessageRegion(render.SlotMap, loading, false),
	}
}

func metricsPanel(snap *ridership.Snapshot) MetricsPanel {
	perf := snap.Performance
	return MetricsPanel{
		TotalPassengers:   render.FormatCount(snap.TotalDailyPassengers),
		Punctuality:       fmt.Sprintf("%.1f%%", perf.OverallPunctuality),
		AverageDelay:      fmt.Sprintf("%.1f", perf.AverageDelay),
		CancelledServices: render.FormatCount(perf.CancelledServices),
		Reported:          perf.Reported,
	}
}

// applyLoadFailure replaces every region with its failure message.
func applyLoadFailure(v *View) {
	v.Snapshot = nil
	v.Metrics = MetricsPanel{
		TotalPassengers:   MsgMetricsError,
		Punctuality:       MsgMetricsError,
		AverageDelay:      MsgMetricsError,
		CancelledServices: MsgMetricsError,
		IsError:           true,
	}
	v.Stations = render.StationList{Items: []render.StationItem{}, Message: MsgListFailed}
	v.OperatorChart = render.MessageRegion(render.SlotOperatorChart, MsgOperatorFailed, true)
	v.PassengerChart = render.MessageRegion(render.SlotPassengerChart, MsgPassengerFailed, true)
	v.Map = render.MessageRegion(render.SlotMap, MsgMapFailed, true)
}
