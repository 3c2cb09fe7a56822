package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokyotraffic/tokyotraffic/internal/render"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
)

// attempt is one renderer to try for a slot.
type attempt[H render.Handle] struct {
	renderer string
	draw     func() (H, error)
}

type chartPlan struct {
	operator  []attempt[render.Handle]
	passenger []attempt[render.Handle]
}

// chartAttempts decides which chart renderers to try. The library renderer
// is used once the probe reports it available; otherwise both charts go
// straight to the fallback.
func (c *Controller) chartAttempts(ctx context.Context, snap *ridership.Snapshot, logger zerolog.Logger) chartPlan {
	fallback := chartPlan{
		operator: []attempt[render.Handle]{{
			renderer: render.RendererFallback,
			draw:     func() (render.Handle, error) { return c.chartFallback.RenderOperatorChart(snap.OperatorBreakdown) },
		}},
		passenger: []attempt[render.Handle]{{
			renderer: render.RendererFallback,
			draw:     func() (render.Handle, error) { return c.chartFallback.RenderPassengerChart(snap.Stations) },
		}},
	}

	if !c.chartsAvailable(ctx) {
		logger.Warn().Int("attempts", c.pollAttempts).Msg("chart library unavailable, using fallback charts")
		return fallback
	}

	return chartPlan{
		operator: append([]attempt[render.Handle]{{
			renderer: render.RendererChartJS,
			draw:     func() (render.Handle, error) { return c.charts.RenderOperatorChart(snap.OperatorBreakdown) },
		}}, fallback.operator...),
		passenger: append([]attempt[render.Handle]{{
			renderer: render.RendererChartJS,
			draw:     func() (render.Handle, error) { return c.charts.RenderPassengerChart(snap.Stations) },
		}}, fallback.passenger...),
	}
}

// chartsAvailable polls the chart probe up to pollAttempts times. A
// successful probe is remembered for later cycles.
func (c *Controller) chartsAvailable(ctx context.Context) bool {
	if c.chartsReady.Load() {
		return true
	}

	for i := 0; i < c.pollAttempts; i++ {
		if i > 0 && !sleep(ctx, c.pollInterval) {
			return false
		}
		if c.chartProbe.Available(ctx) {
			c.chartsReady.Store(true)
			return true
		}
	}
	return false
}

// mapAttempts asks the map probe once; the map has no polling window.
func (c *Controller) mapAttempts(ctx context.Context, snap *ridership.Snapshot) []attempt[render.MapHandle] {
	fallback := attempt[render.MapHandle]{
		renderer: render.RendererFallback,
		draw:     func() (render.MapHandle, error) { return c.mapFallback.RenderStations(snap.Stations) },
	}
	if !c.mapProbe.Available(ctx) {
		c.logger.Warn().Msg("map library unavailable, using fallback map")
		return []attempt[render.MapHandle]{fallback}
	}
	return []attempt[render.MapHandle]{{
		renderer: render.RendererLeaflet,
		draw:     func() (render.MapHandle, error) { return c.maps.RenderStations(snap.Stations) },
	}, fallback}
}

// renderSlot disposes the slot's previous handle, then tries each attempt
// in order. A failing or panicking renderer only affects its own slot.
// c.mu must be held.
func renderSlot[H render.Handle](c *Controller, slot render.Slot, prev *H, logger zerolog.Logger, attempts ...attempt[H]) render.Region {
	var zero H
	if any(*prev) != nil {
		(*prev).Dispose()
		*prev = zero
	}

	for i, a := range attempts {
		h, err := render.Guard(slot, a.renderer, a.draw)
		if err != nil {
			c.metrics.renderFailed(slot, a.renderer)
			logger.Error().Err(err).Str("slot", string(slot)).Str("renderer", a.renderer).Msg("renderer failed")
			continue
		}
		*prev = h
		c.metrics.rendered(slot, a.renderer)

		region := h.View()
		if region.NeedsLibrary() {
			standby := standbyRegion(slot, logger, attempts[i+1:])
			region.Standby = &standby
		}
		return region
	}

	return render.MessageRegion(slot, renderFailedMessages[slot], true)
}

// standbyRegion draws the first remaining attempt that works, for the page
// to show when the library region cannot be drawn in the browser. The
// handle is released at once; only its view is kept.
func standbyRegion[H render.Handle](slot render.Slot, logger zerolog.Logger, attempts []attempt[H]) render.Region {
	for _, a := range attempts {
		h, err := render.Guard(slot, a.renderer, a.draw)
		if err != nil {
			logger.Warn().Err(err).Str("slot", string(slot)).Str("renderer", a.renderer).Msg("standby renderer failed")
			continue
		}
		region := h.View()
		h.Dispose()
		if !region.NeedsLibrary() {
			return region
		}
	}
	return render.MessageRegion(slot, libraryMissingMessages[slot], true)
}

// renderList builds the station list. c.mu must be held.
func (c *Controller) renderList(snap *ridership.Snapshot, logger zerolog.Logger) render.StationList {
	list, err := render.Guard(render.SlotStationList, "list", func() (render.StationList, error) {
		return c.list.RenderStations(snap.Stations), nil
	})
	if err != nil {
		c.metrics.renderFailed(render.SlotStationList, "list")
		logger.Error().Err(err).Msg("station list failed")
		return render.StationList{Items: []render.StationItem{}, Message: renderFailedMessages[render.SlotStationList]}
	}
	c.metrics.rendered(render.SlotStationList, "list")
	return list
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
