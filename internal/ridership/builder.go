package ridership

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

// BuilderConfig holds configuration for the snapshot builder.
type BuilderConfig struct {
	// Aliases is the operator alias table.
	// If nil, uses DefaultOperatorAliases.
	Aliases []OperatorAlias

	// NewID generates snapshot IDs (default: random UUID).
	NewID func() string

	// Now returns the build timestamp (default: time.Now).
	Now func() time.Time
}

// Builder turns raw analysis and station documents into snapshots.
// A Builder holds no per-build state and is safe for concurrent use.
type Builder struct {
	aliases AliasTable
	policy  *bluemonday.Policy
	newID   func() string
	now     func() time.Time
}

// NewBuilder creates a new Builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = DefaultOperatorAliases()
	}

	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Builder{
		aliases: NewAliasTable(aliases),
		policy:  bluemonday.StrictPolicy(),
		newID:   newID,
		now:     now,
	}
}

// Build normalizes the decoded analysis and station documents.
//
// Missing optional subtrees are replaced by defaults. Only required fields
// (the system passenger total and each station's rank, English name and
// passenger count) fail the build, with a *BuildError.
func (b *Builder) Build(analysis, stationDoc any) (*Snapshot, error) {
	if _, ok := asObject(analysis); !ok {
		return nil, invalid("analysis", "not an object")
	}

	total, err := requiredCount(analysis, "executive_summary", "total_daily_passengers")
	if err != nil {
		return nil, err
	}

	stations, err := b.buildStations(analysis, stationDoc)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		ID:                   b.newID(),
		BuiltAt:              b.now(),
		TotalDailyPassengers: total,
		Performance:          buildPerformance(analysis),
		Stations:             stations,
		OperatorBreakdown:    b.buildBreakdown(analysis),
	}, nil
}

func requiredCount(v any, path ...string) (int64, error) {
	field := joinPath(path...)
	raw, ok := lookup(v, path...)
	if !ok || raw == nil {
		return 0, missing(field)
	}
	n, ok := asInt(raw)
	if !ok {
		return 0, invalid(field, "not an integer")
	}
	if n < 0 {
		return 0, invalid(field, "negative")
	}
	return n, nil
}

func buildPerformance(analysis any) Performance {
	perf := DefaultPerformance()

	raw, ok := lookup(analysis, "real_time_analysis", "system_performance")
	if !ok {
		return perf
	}
	obj, ok := asObject(raw)
	if !ok {
		return perf
	}
	perf.Reported = true

	if f, ok := asFloat(obj["overall_punctuality"]); ok && f >= 0 && f <= 100 {
		perf.OverallPunctuality = f
	}
	if f, ok := asFloat(obj["average_delay"]); ok && f >= 0 {
		perf.AverageDelay = f
	}
	if n, ok := asInt(obj["cancelled_services"]); ok && n >= 0 {
		perf.CancelledServices = n
	}

	return perf
}

// stationSource returns the raw station list and the field prefix used in errors.
func stationSource(analysis, stationDoc any) (any, string, bool) {
	if raw, ok := lookup(analysis, "station_analysis", "busiest_stations"); ok {
		return raw, "station_analysis.busiest_stations", true
	}
	if raw, ok := lookup(stationDoc, "stations"); ok {
		return raw, "stations", true
	}
	if arr, ok := asArray(stationDoc); ok {
		return arr, "stations", true
	}
	return nil, "", false
}

func (b *Builder) buildStations(analysis, stationDoc any) ([]Station, error) {
	raw, prefix, ok := stationSource(analysis, stationDoc)
	if !ok || raw == nil {
		return []Station{}, nil
	}

	list, ok := asArray(raw)
	if !ok {
		return nil, invalid(prefix, "not a list")
	}

	stations := make([]Station, 0, len(list))
	for i, item := range list {
		st, err := b.parseStation(item, fmt.Sprintf("%s[%d]", prefix, i))
		if err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}

	b.enrich(stations, stationDoc)

	sort.SliceStable(stations, func(i, j int) bool {
		return stations[i].Rank < stations[j].Rank
	})

	return stations, nil
}

func (b *Builder) parseStation(item any, field string) (Station, error) {
	obj, ok := asObject(item)
	if !ok {
		return Station{}, invalid(field, "not an object")
	}

	rawRank, ok := obj["rank"]
	if !ok || rawRank == nil {
		return Station{}, missing(field + ".rank")
	}
	rank, ok := asInt(rawRank)
	if !ok || rank <= 0 {
		return Station{}, invalid(field+".rank", "not a positive integer")
	}

	rawName, ok := obj["name_en"]
	if !ok || rawName == nil {
		return Station{}, missing(field + ".name_en")
	}
	name, ok := asString(rawName)
	name = b.clean(name)
	if !ok || name == "" {
		return Station{}, invalid(field+".name_en", "not a non-empty string")
	}

	passengers, err := requiredCount(obj, "daily_passengers")
	if err != nil {
		return Station{}, invalid(field+".daily_passengers", err.(*BuildError).Reason)
	}

	return Station{
		Rank:            int(rank),
		NameEn:          name,
		NameJp:          b.optionalString(obj["name_jp"]),
		Operator:        b.aliases.Label(b.optionalString(obj["operator"])),
		Railway:         b.optionalString(obj["railway"]),
		DailyPassengers: passengers,
		Coordinates:     parseCoordinates(obj),
	}, nil
}

// enrich fills optional fields of stations from the station document,
// matched by English name.
func (b *Builder) enrich(stations []Station, stationDoc any) {
	raw, ok := lookup(stationDoc, "stations")
	if !ok {
		raw = stationDoc
	}
	list, ok := asArray(raw)
	if !ok {
		return
	}

	byName := make(map[string]map[string]any, len(list))
	for _, item := range list {
		obj, ok := asObject(item)
		if !ok {
			continue
		}
		name, ok := asString(obj["name_en"])
		if !ok {
			continue
		}
		key := strings.ToLower(b.clean(name))
		if _, dup := byName[key]; !dup {
			byName[key] = obj
		}
	}

	for i := range stations {
		st := &stations[i]
		extra, ok := byName[strings.ToLower(st.NameEn)]
		if !ok {
			continue
		}
		if st.NameJp == "" {
			st.NameJp = b.optionalString(extra["name_jp"])
		}
		if st.Railway == "" {
			st.Railway = b.optionalString(extra["railway"])
		}
		if st.Operator == "" {
			st.Operator = b.aliases.Label(b.optionalString(extra["operator"]))
		}
		if st.Coordinates == nil {
			st.Coordinates = parseCoordinates(extra)
		}
	}
}

// parseCoordinates reads {"coordinates": {"lat", "lng"}} or flat lat/lng keys.
// Anything short of two finite, in-range numbers yields nil.
func parseCoordinates(obj map[string]any) *Coordinates {
	src := obj
	if nested, ok := asObject(obj["coordinates"]); ok {
		src = nested
	}

	lat, okLat := asFloat(src["lat"])
	lng, okLng := asFloat(src["lng"])
	if !okLat || !okLng {
		return nil
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil
	}
	return &Coordinates{Lat: lat, Lng: lng}
}

func (b *Builder) buildBreakdown(analysis any) []OperatorShare {
	raw, ok := lookup(analysis, "station_analysis", "operator_breakdown")
	if !ok {
		return nil
	}
	obj, ok := asObject(raw)
	if !ok {
		return nil
	}

	totals := make(map[string]int64, len(obj))
	for key, val := range obj {
		n, ok := operatorTotal(val)
		if !ok {
			continue
		}
		totals[b.aliases.Label(b.clean(key))] += n
	}
	if len(totals) == 0 {
		return nil
	}

	shares := make([]OperatorShare, 0, len(totals))
	for label, n := range totals {
		shares = append(shares, OperatorShare{Label: label, TotalPassengers: n})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].TotalPassengers != shares[j].TotalPassengers {
			return shares[i].TotalPassengers > shares[j].TotalPassengers
		}
		return shares[i].Label < shares[j].Label
	})
	return shares
}

// operatorTotal accepts {"total_passengers": N} or a bare N.
func operatorTotal(v any) (int64, bool) {
	if obj, ok := asObject(v); ok {
		v = obj["total_passengers"]
	}
	n, ok := asInt(v)
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

func (b *Builder) optionalString(v any) string {
	s, ok := asString(v)
	if !ok {
		return ""
	}
	return b.clean(s)
}

// clean strips markup from feed text; the page templates escape on output.
func (b *Builder) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(b.policy.Sanitize(s)))
}
