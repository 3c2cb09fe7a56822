package dashboard

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultTimezone is the zone the dashboard clock displays.
const DefaultTimezone = "Asia/Tokyo"

// clockLayout is 24-hour time followed by the zone abbreviation.
const clockLayout = "15:04:05 MST"

// jst stands in for Asia/Tokyo when no zone database is available.
// Japan has no daylight saving time.
var jst = time.FixedZone("JST", 9*60*60)

// LoadLocation loads the named zone. On failure it returns a fixed +09:00
// JST zone together with the error, so the clock keeps working.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return jst, fmt.Errorf("loading time zone %q: %w", name, err)
	}
	return loc, nil
}

// ClockConfig holds configuration for the display clock.
type ClockConfig struct {
	// Location is the display zone (default: fixed JST).
	Location *time.Location

	// Interval is the update period (default: 1 second).
	Interval time.Duration

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// Clock keeps a formatted display time, updated on its own ticker and
// independent of load and refresh cycles.
type Clock struct {
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
	current  atomic.Pointer[string]
}

// NewClock creates a clock showing the current time.
func NewClock(cfg ClockConfig) *Clock {
	loc := cfg.Location
	if loc == nil {
		loc = jst
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	c := &Clock{loc: loc, interval: interval, now: now}
	c.tick()
	return c
}

// Format renders t in the display zone, e.g. "15:04:05 JST".
func (c *Clock) Format(t time.Time) string {
	return t.In(c.loc).Format(clockLayout)
}

// Current returns the most recently formatted time.
func (c *Clock) Current() string {
	return *c.current.Load()
}

// Run updates the display time every interval until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Clock) tick() {
	s := c.Format(c.now())
	c.current.Store(&s)
}
