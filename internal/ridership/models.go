// Package ridership builds normalized dashboard snapshots from the loosely
// structured ridership documents published for Tokyo rail stations.
package ridership

import (
	"time"
)

// Documented defaults used when the analysis document carries no
// system performance block.
const (
	DefaultPunctuality       = 94.2
	DefaultAverageDelay      = 1.0
	DefaultCancelledServices = 0
)

// Coordinates is a validated geographic position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Station is one ranked station in a snapshot.
type Station struct {
	// Rank is the display rank (1 = busiest). Used for badges, never for indexing.
	Rank int `json:"rank"`

	// NameEn is the English station name.
	NameEn string `json:"nameEn"`

	// NameJp is the Japanese station name, empty when unknown.
	NameJp string `json:"nameJp,omitempty"`

	// Operator is the display label of the operating company.
	Operator string `json:"operator"`

	// Railway is the line the ranking refers to (e.g., "Yamanote").
	Railway string `json:"railway"`

	// DailyPassengers is the average daily passenger count.
	DailyPassengers int64 `json:"dailyPassengers"`

	// Coordinates is nil when the feed did not supply a complete, valid position.
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// HasCoordinates reports whether the station can be plotted on a map.
func (s Station) HasCoordinates() bool {
	return s.Coordinates != nil
}

// OperatorShare is the passenger total attributed to one operator.
type OperatorShare struct {
	Label           string `json:"label"`
	TotalPassengers int64  `json:"totalPassengers"`
}

// Performance holds system-wide service quality figures.
type Performance struct {
	// OverallPunctuality is a percentage between 0 and 100.
	OverallPunctuality float64 `json:"overallPunctuality"`

	// AverageDelay is in minutes.
	AverageDelay float64 `json:"averageDelay"`

	// CancelledServices is the number of cancelled services today.
	CancelledServices int64 `json:"cancelledServices"`

	// Reported is false when the defaults were substituted.
	Reported bool `json:"reported"`
}

// DefaultPerformance returns the figures shown when the feed has none.
func DefaultPerformance() Performance {
	return Performance{
		OverallPunctuality: DefaultPunctuality,
		AverageDelay:       DefaultAverageDelay,
		CancelledServices:  DefaultCancelledServices,
	}
}

// Snapshot is one immutable view-model built for a single load or refresh cycle.
type Snapshot struct {
	ID                   string          `json:"id"`
	BuiltAt              time.Time       `json:"builtAt"`
	TotalDailyPassengers int64           `json:"totalDailyPassengers"`
	Performance          Performance     `json:"performance"`
	Stations             []Station       `json:"stations"`
	OperatorBreakdown    []OperatorShare `json:"operatorBreakdown,omitempty"`
}

// MapStations returns the stations that carry valid coordinates, in rank order.
func (s *Snapshot) MapStations() []Station {
	out := make([]Station, 0, len(s.Stations))
	for _, st := range s.Stations {
		if st.HasCoordinates() {
			out = append(out, st)
		}
	}
	return out
}

// HasBreakdown reports whether an operator breakdown was present in the feed.
func (s *Snapshot) HasBreakdown() bool {
	return len(s.OperatorBreakdown) > 0
}

// BreakdownTotal sums all operator shares.
func (s *Snapshot) BreakdownTotal() int64 {
	var total int64
	for _, share := range s.OperatorBreakdown {
		total += share.TotalPassengers
	}
	return total
}
