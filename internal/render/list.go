package render

import (
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

// StationList is the complete station list region.
type StationList struct {
	Items []StationItem `json:"items"`

	// Message is shown instead of items when the list is empty.
	Message string `json:"message,omitempty"`
}

// StationItem is one list row.
type StationItem struct {
	Rank       int    `json:"rank"`
	Name       string `json:"name"`
	NameJp     string `json:"nameJp,omitempty"`
	Details    string `json:"details"`
	Passengers string `json:"passengers"`
}

// Lister is the ListRenderer used by the dashboard page.
type Lister struct{}

// NewLister creates a station list renderer.
func NewLister() *Lister {
	return &Lister{}
}

// RenderStations builds list rows in the given (rank) order.
func (Lister) RenderStations(stations []ridership.Station) StationList {
	if len(stations) == 0 {
		return StationList{Items: []StationItem{}, Message: MsgNoStations}
	}

	items := make([]StationItem, len(stations))
	for i, st := range stations {
		railway := st.Railway
		if railway != "" {
			railway += " Line"
		}
		items[i] = StationItem{
			Rank:       st.Rank,
			Name:       st.NameEn,
			NameJp:     st.NameJp,
			Details:    operatorDetails(st.Operator, railway),
			Passengers: FormatCount(st.DailyPassengers),
		}
	}
	return StationList{Items: items}
}
