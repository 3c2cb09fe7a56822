package render

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

var (
	fallbackOperatorColors = []string{"#667eea", "#764ba2", "#10b981", "#f59e0b"}
	fallbackBarColors      = []string{"#667eea", "#8b5cf6", "#10b981", "#f59e0b", "#ef4444"}
)

// Doughnut is a CSS conic-gradient doughnut.
type Doughnut struct {
	// Background is the conic-gradient for the ring.
	Background template.CSS `json:"background"`

	// Lead is the percentage shown in the centre (largest segment).
	Lead     int               `json:"lead"`
	Segments []DoughnutSegment `json:"segments"`
}

// DoughnutSegment is one operator in the legend.
type DoughnutSegment struct {
	Label      string `json:"label"`
	Passengers string `json:"passengers"`
	Percent    int    `json:"percent"`
	Color      string `json:"color"`
}

// Bars is a flexbox bar chart.
type Bars struct {
	Items []Bar `json:"items"`
}

// Bar is one station column; HeightPercent is relative to the busiest station.
type Bar struct {
	Label         string `json:"label"`
	Title         string `json:"title"`
	ValueLabel    string `json:"valueLabel"`
	HeightPercent int    `json:"heightPercent"`
	Color         string `json:"color"`
}

// FallbackCharts draws charts without a charting library.
type FallbackCharts struct {
	ids instances
}

// NewFallbackCharts creates a fallback chart renderer.
func NewFallbackCharts() *FallbackCharts {
	return &FallbackCharts{}
}

// RenderOperatorChart builds a conic-gradient doughnut whose integer
// percentages sum to 100.
func (f *FallbackCharts) RenderOperatorChart(breakdown []ridership.OperatorShare) (Handle, error) {
	if len(breakdown) == 0 {
		return MessageHandle(SlotOperatorChart, MsgNoBreakdown, true), nil
	}

	values := make([]int64, len(breakdown))
	for i, s := range breakdown {
		values[i] = s.TotalPassengers
	}
	percents := Percentages(values)

	d := &Doughnut{Segments: make([]DoughnutSegment, len(breakdown))}
	stops := make([]string, 0, len(breakdown))
	from := 0
	for i, s := range breakdown {
		color := fallbackOperatorColors[i%len(fallbackOperatorColors)]
		d.Segments[i] = DoughnutSegment{
			Label:      s.Label,
			Passengers: FormatCount(s.TotalPassengers),
			Percent:    percents[i],
			Color:      color,
		}
		if percents[i] > d.Lead {
			d.Lead = percents[i]
		}
		to := from + percents[i]
		stops = append(stops, fmt.Sprintf("%s %d%% %d%%", color, from, to))
		from = to
	}

	if from == 0 {
		d.Background = "conic-gradient(#e2e8f0 0% 100%)"
	} else {
		// Pattern is built only from palette colours and integers.
		d.Background = template.CSS("conic-gradient(" + strings.Join(stops, ", ") + ")") //nolint:gosec // no feed data
	}

	return newHandle(Region{
		Slot:       SlotOperatorChart,
		Renderer:   RendererFallback,
		InstanceID: f.ids.next(SlotOperatorChart),
		Doughnut:   d,
	}), nil
}

// RenderPassengerChart builds bars scaled to the busiest station.
func (f *FallbackCharts) RenderPassengerChart(stations []ridership.Station) (Handle, error) {
	if len(stations) == 0 {
		return MessageHandle(SlotPassengerChart, MsgNoStations, true), nil
	}

	var maxPassengers int64
	for _, st := range stations {
		if st.DailyPassengers > maxPassengers {
			maxPassengers = st.DailyPassengers
		}
	}

	bars := &Bars{Items: make([]Bar, len(stations))}
	for i, st := range stations {
		height := 0
		if maxPassengers > 0 {
			height = int(math.Round(float64(st.DailyPassengers) / float64(maxPassengers) * 100))
		}
		bars.Items[i] = Bar{
			Label:         ShortName(st.NameEn),
			Title:         fmt.Sprintf("%s: %s passengers", st.NameEn, FormatCount(st.DailyPassengers)),
			ValueLabel:    FormatKilo(st.DailyPassengers),
			HeightPercent: height,
			Color:         fallbackBarColors[i%len(fallbackBarColors)],
		}
	}

	return newHandle(Region{
		Slot:       SlotPassengerChart,
		Renderer:   RendererFallback,
		InstanceID: f.ids.next(SlotPassengerChart),
		Bars:       bars,
	}), nil
}

// Plot is a library-free map: markers placed by percentage inside the
// stations' bounding box, with a legend.
type Plot struct {
	Markers []PlotMarker `json:"markers"`
}

// PlotMarker is one station; Left and Top are percentages of the plot area.
type PlotMarker struct {
	Rank       int     `json:"rank"`
	NameEn     string  `json:"nameEn"`
	NameJp     string  `json:"nameJp"`
	Details    string  `json:"details"`
	Passengers string  `json:"passengers"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
}

// plotMargin keeps markers away from the plot edges, in percent.
const plotMargin = 10.0

// FallbackMap plots stations without a mapping library.
type FallbackMap struct {
	ids instances
}

// NewFallbackMap creates a fallback map renderer.
func NewFallbackMap() *FallbackMap {
	return &FallbackMap{}
}

// RenderStations places stations with coordinates inside their bounding box.
func (f *FallbackMap) RenderStations(stations []ridership.Station) (MapHandle, error) {
	plotted := make([]ridership.Station, 0, len(stations))
	for _, st := range stations {
		if st.HasCoordinates() {
			plotted = append(plotted, st)
		}
	}
	if len(plotted) == 0 {
		return MessageHandle(SlotMap, MsgNoCoordinates, true), nil
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	for _, st := range plotted {
		minLat = math.Min(minLat, st.Coordinates.Lat)
		maxLat = math.Max(maxLat, st.Coordinates.Lat)
		minLng = math.Min(minLng, st.Coordinates.Lng)
		maxLng = math.Max(maxLng, st.Coordinates.Lng)
	}

	plot := &Plot{Markers: make([]PlotMarker, len(plotted))}
	for i, st := range plotted {
		plot.Markers[i] = PlotMarker{
			Rank:       st.Rank,
			NameEn:     st.NameEn,
			NameJp:     st.NameJp,
			Details:    operatorDetails(st.Operator, st.Railway),
			Passengers: FormatCount(st.DailyPassengers),
			Left:       scale(st.Coordinates.Lng, minLng, maxLng),
			// North is up.
			Top: 100 - scale(st.Coordinates.Lat, minLat, maxLat),
		}
	}

	return newHandle(Region{
		Slot:       SlotMap,
		Renderer:   RendererFallback,
		InstanceID: f.ids.next(SlotMap),
		Plot:       plot,
	}), nil
}

// scale maps v within [lo, hi] onto [plotMargin, 100-plotMargin], rounded to
// one decimal. A degenerate range maps to the centre.
func scale(v, lo, hi float64) float64 {
	if hi-lo == 0 {
		return 50
	}
	pos := plotMargin + (v-lo)/(hi-lo)*(100-2*plotMargin)
	return math.Round(pos*10) / 10
}
