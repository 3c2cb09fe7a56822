package render

import (
	"fmt"

	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

// OperatorPalette colours the operator doughnut, cycled when there are more
// operators than colours.
var OperatorPalette = []string{
	"rgba(102, 126, 234, 0.8)",
	"rgba(118, 75, 162, 0.8)",
	"rgba(16, 185, 129, 0.8)",
	"rgba(245, 158, 11, 0.8)",
}

// ChartConfig is a Chart.js configuration object. Tooltips are precomputed
// per data point because callbacks cannot travel as JSON.
type ChartConfig struct {
	Type     string         `json:"type"`
	Data     ChartData      `json:"data"`
	Options  map[string]any `json:"options"`
	Tooltips []string       `json:"-"`
}

// ChartData is the Chart.js data block.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// ChartDataset is one Chart.js dataset.
type ChartDataset struct {
	Label           string   `json:"label,omitempty"`
	Data            []int64  `json:"data"`
	BackgroundColor []string `json:"backgroundColor"`
	BorderColor     []string `json:"borderColor,omitempty"`
	BorderWidth     int      `json:"borderWidth"`
	BorderRadius    int      `json:"borderRadius"`
	BorderSkipped   *bool    `json:"borderSkipped,omitempty"`
}

// ChartJS renders charts as Chart.js configurations.
type ChartJS struct {
	ids instances
}

// NewChartJS creates a Chart.js renderer.
func NewChartJS() *ChartJS {
	return &ChartJS{}
}

// RenderOperatorChart builds the operator share doughnut.
func (c *ChartJS) RenderOperatorChart(breakdown []ridership.OperatorShare) (Handle, error) {
	if len(breakdown) == 0 {
		return MessageHandle(SlotOperatorChart, MsgNoBreakdown, true), nil
	}

	var total int64
	for _, s := range breakdown {
		total += s.TotalPassengers
	}

	labels := make([]string, len(breakdown))
	data := make([]int64, len(breakdown))
	colors := make([]string, len(breakdown))
	tooltips := make([]string, len(breakdown))
	for i, s := range breakdown {
		labels[i] = s.Label
		data[i] = s.TotalPassengers
		colors[i] = OperatorPalette[i%len(OperatorPalette)]
		tooltips[i] = fmt.Sprintf("%s: %s passengers (%.1f%%)", s.Label, FormatCount(s.TotalPassengers), share(s.TotalPassengers, total))
	}

	cfg := &ChartConfig{
		Type: "doughnut",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{{
				Data:            data,
				BackgroundColor: colors,
				BorderRadius:    8,
			}},
		},
		Options: map[string]any{
			"responsive":          true,
			"maintainAspectRatio": false,
			"plugins": map[string]any{
				"legend": map[string]any{
					"position": "bottom",
					"labels": map[string]any{
						"padding": 20,
						"font":    map[string]any{"size": 14, "weight": "600"},
					},
				},
			},
		},
		Tooltips: tooltips,
	}

	return newHandle(Region{
		Slot:       SlotOperatorChart,
		Renderer:   RendererChartJS,
		InstanceID: c.ids.next(SlotOperatorChart),
		Chart:      cfg,
	}), nil
}

// RenderPassengerChart builds the per-station passenger bars.
func (c *ChartJS) RenderPassengerChart(stations []ridership.Station) (Handle, error) {
	if len(stations) == 0 {
		return MessageHandle(SlotPassengerChart, MsgNoStations, true), nil
	}

	labels := make([]string, len(stations))
	data := make([]int64, len(stations))
	fill := make([]string, len(stations))
	border := make([]string, len(stations))
	tooltips := make([]string, len(stations))
	for i, st := range stations {
		hue := 240 + i*30
		labels[i] = ChartLabel(st.NameEn)
		data[i] = st.DailyPassengers
		fill[i] = fmt.Sprintf("hsla(%d, 70%%, 60%%, 0.8)", hue)
		border[i] = fmt.Sprintf("hsla(%d, 70%%, 60%%, 1)", hue)
		tooltips[i] = fmt.Sprintf("%s: %s passengers", labels[i], FormatCount(st.DailyPassengers))
	}

	skipped := false
	cfg := &ChartConfig{
		Type: "bar",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{{
				Label:           "Daily Passengers",
				Data:            data,
				BackgroundColor: fill,
				BorderColor:     border,
				BorderWidth:     2,
				BorderRadius:    8,
				BorderSkipped:   &skipped,
			}},
		},
		Options: map[string]any{
			"responsive":          true,
			"maintainAspectRatio": false,
			"scales": map[string]any{
				"y": map[string]any{
					"beginAtZero": true,
					"ticks":       map[string]any{"font": map[string]any{"weight": "600"}},
					"grid":        map[string]any{"color": "rgba(0, 0, 0, 0.05)"},
				},
				"x": map[string]any{
					"ticks": map[string]any{"font": map[string]any{"weight": "600"}},
					"grid":  map[string]any{"display": false},
				},
			},
			"plugins": map[string]any{
				"legend": map[string]any{"display": false},
			},
		},
		Tooltips: tooltips,
	}

	return newHandle(Region{
		Slot:       SlotPassengerChart,
		Renderer:   RendererChartJS,
		InstanceID: c.ids.next(SlotPassengerChart),
		Chart:      cfg,
	}), nil
}
