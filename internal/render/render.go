// Package render turns snapshots into view-models for the dashboard page.
//
// Each dashboard region (station list, operator chart, passenger chart, map)
// is produced by a renderer. Library renderers (Chart.js, Leaflet) emit
// configuration the browser hands to the library unchanged; fallback
// renderers emit primitive layouts the page draws with plain HTML and CSS.
// Renderers never build markup themselves.
package render

import (
	"fmt"
	"sync/atomic"

	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

// Slot identifies a dashboard region.
type Slot string

// Dashboard regions.
const (
	SlotMetrics        Slot = "metrics"
	SlotStationList    Slot = "station-list"
	SlotOperatorChart  Slot = "operator-chart"
	SlotPassengerChart Slot = "passenger-chart"
	SlotMap            Slot = "map"
)

// Renderer names reported in regions and metrics.
const (
	RendererChartJS  = "chartjs"
	RendererLeaflet  = "leaflet"
	RendererFallback = "fallback"
	RendererMessage  = "message"
)

// Messages shown when a renderer has nothing to draw.
const (
	MsgNoBreakdown   = "Operator breakdown data not found"
	MsgNoStations    = "Station data not found"
	MsgNoCoordinates = "No station coordinates available"
)

// Region is the view-model of one chart or map region.
// Exactly one of Message, Chart, Map, Doughnut, Bars or Plot is set.
type Region struct {
	Slot     Slot   `json:"slot"`
	Renderer string `json:"renderer"`

	// InstanceID names the drawn instance, e.g. "operator-chart-3".
	InstanceID string `json:"instanceId"`

	// Revision increases every time a map is asked to recompute its layout.
	Revision int64 `json:"revision"`

	// Message replaces the drawing; IsError marks it as a failure.
	Message string `json:"message,omitempty"`
	IsError bool   `json:"isError,omitempty"`

	Chart    *ChartConfig `json:"chart,omitempty"`
	Map      *MapConfig   `json:"map,omitempty"`
	Doughnut *Doughnut    `json:"doughnut,omitempty"`
	Bars     *Bars        `json:"bars,omitempty"`
	Plot     *Plot        `json:"plot,omitempty"`

	// Standby is drawn instead of Chart or Map when the library fails in
	// the browser.
	Standby *Region `json:"standby,omitempty"`
}

// NeedsLibrary reports whether the region is drawn by a browser library.
func (r Region) NeedsLibrary() bool {
	return r.Chart != nil || r.Map != nil
}

// MessageRegion returns a region that shows msg instead of a drawing.
func MessageRegion(slot Slot, msg string, isError bool) Region {
	return Region{
		Slot:     slot,
		Renderer: RendererMessage,
		Message:  msg,
		IsError:  isError,
	}
}

// Handle is a drawn chart or map instance.
type Handle interface {
	// View returns the region the page draws.
	View() Region

	// Dispose releases the instance. View must not be called afterwards.
	Dispose()
}

// MapHandle is a drawn map; Relayout asks it to recompute its size.
type MapHandle interface {
	Handle
	Relayout()
}

// ChartRenderer draws the two dashboard charts.
type ChartRenderer interface {
	RenderOperatorChart(breakdown []ridership.OperatorShare) (Handle, error)
	RenderPassengerChart(stations []ridership.Station) (Handle, error)
}

// MapRenderer plots stations that carry coordinates.
type MapRenderer interface {
	RenderStations(stations []ridership.Station) (MapHandle, error)
}

// ListRenderer builds the complete station list in one step.
type ListRenderer interface {
	RenderStations(stations []ridership.Station) StationList
}

// regionHandle is the Handle implementation shared by all renderers.
type regionHandle struct {
	region   Region
	revision atomic.Int64
	disposed atomic.Bool
}

func newHandle(region Region) *regionHandle {
	return &regionHandle{region: region}
}

func (h *regionHandle) View() Region {
	r := h.region
	r.Revision = h.revision.Load()
	return r
}

func (h *regionHandle) Dispose() {
	h.disposed.Store(true)
}

func (h *regionHandle) Relayout() {
	h.revision.Add(1)
}

// Disposed reports whether Dispose was called.
func (h *regionHandle) Disposed() bool {
	return h.disposed.Load()
}

// instances hands out per-slot instance IDs.
type instances struct {
	seq atomic.Int64
}

func (i *instances) next(slot Slot) string {
	return fmt.Sprintf("%s-%d", slot, i.seq.Add(1))
}

// MessageHandle returns a handle for a message-only region.
func MessageHandle(slot Slot, msg string, isError bool) MapHandle {
	return newHandle(MessageRegion(slot, msg, isError))
}
