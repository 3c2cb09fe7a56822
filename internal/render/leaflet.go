package render

import (
	"strings"

	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

// Map defaults: central Tokyo.
const (
	DefaultMapLat  = 35.7006
	DefaultMapLng  = 139.739
	DefaultMapZoom = 11

	DefaultTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultAttribution = "© OpenStreetMap contributors"
)

// MapConfig is what the page hands to Leaflet.
type MapConfig struct {
	Center      [2]float64  `json:"center"`
	Zoom        int         `json:"zoom"`
	TileURL     string      `json:"tileUrl"`
	Attribution string      `json:"attribution"`
	Markers     []MapMarker `json:"markers"`
}

// MapMarker is one rank-badge marker and its popup content.
type MapMarker struct {
	Rank       int     `json:"rank"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	NameEn     string  `json:"nameEn"`
	NameJp     string  `json:"nameJp"`
	Details    string  `json:"details"`
	Passengers string  `json:"passengers"`
}

// LeafletConfig holds configuration for the Leaflet renderer.
type LeafletConfig struct {
	// TileURL is the tile layer template (default: OpenStreetMap).
	TileURL string

	// Attribution is shown in the map corner.
	Attribution string
}

// Leaflet renders maps as Leaflet configurations.
type Leaflet struct {
	tileURL     string
	attribution string
	ids         instances
}

// NewLeaflet creates a Leaflet renderer.
func NewLeaflet(cfg LeafletConfig) *Leaflet {
	tileURL := cfg.TileURL
	if tileURL == "" {
		tileURL = DefaultTileURL
	}
	attribution := cfg.Attribution
	if attribution == "" {
		attribution = DefaultAttribution
	}
	return &Leaflet{tileURL: tileURL, attribution: attribution}
}

// RenderStations plots every station with coordinates.
func (l *Leaflet) RenderStations(stations []ridership.Station) (MapHandle, error) {
	markers := make([]MapMarker, 0, len(stations))
	for _, st := range stations {
		if !st.HasCoordinates() {
			continue
		}
		markers = append(markers, MapMarker{
			Rank:       st.Rank,
			Lat:        st.Coordinates.Lat,
			Lng:        st.Coordinates.Lng,
			NameEn:     st.NameEn,
			NameJp:     st.NameJp,
			Details:    operatorDetails(st.Operator, st.Railway),
			Passengers: FormatCount(st.DailyPassengers),
		})
	}
	if len(markers) == 0 {
		return MessageHandle(SlotMap, MsgNoCoordinates, true), nil
	}

	return newHandle(Region{
		Slot:       SlotMap,
		Renderer:   RendererLeaflet,
		InstanceID: l.ids.next(SlotMap),
		Map: &MapConfig{
			Center:      [2]float64{DefaultMapLat, DefaultMapLng},
			Zoom:        DefaultMapZoom,
			TileURL:     l.tileURL,
			Attribution: l.attribution,
			Markers:     markers,
		},
	}), nil
}

// operatorDetails joins the non-empty parts as "Operator • Railway".
func operatorDetails(operator, railway string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{operator, railway} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " • ")
}
