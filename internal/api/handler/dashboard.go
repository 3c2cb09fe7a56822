package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tokyotraffic/tokyotraffic/internal/api/models"
	"github.com/tokyotraffic/tokyotraffic/internal/api/response"
	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/views"
)

// StateHeader carries the controller state on snapshot responses so the
// page can poll for the end of a cycle even while no snapshot exists.
const StateHeader = "X-Dashboard-State"

// Dashboard is the controller surface the HTTP handlers drive.
type Dashboard interface {
	ViewSource
	TriggerRefresh(ctx context.Context) error
	NotifyResize()
}

// ClockSource returns the formatted display time.
type ClockSource interface {
	Current() string
}

// DashboardHandlerConfig holds configuration for the dashboard handler.
type DashboardHandlerConfig struct {
	Dashboard Dashboard
	Clock     ClockSource

	// Templates renders views.PageTemplate.
	Templates response.TemplateExecutor

	// Title is the page heading.
	Title string

	// Library script URLs referenced by the page.
	ChartLibraryURL string
	MapLibraryURL   string

	// Browser timings, matching the controller's.
	// Defaults: 5 attempts 500ms apart, 100ms resize debounce.
	ChartPollAttempts int
	ChartPollInterval time.Duration
	ResizeDebounce    time.Duration

	Logger zerolog.Logger
}

// DashboardHandler serves the dashboard page and its JSON endpoints.
type DashboardHandler struct {
	dashboard Dashboard
	clock     ClockSource
	templates response.TemplateExecutor
	title     string
	chartURL  string
	mapURL    string
	attempts  int
	interval  time.Duration
	debounce  time.Duration
	logger    zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(cfg DashboardHandlerConfig) *DashboardHandler {
	title := cfg.Title
	if title == "" {
		title = "Tokyo Rail Ridership"
	}
	h := &DashboardHandler{
		dashboard: cfg.Dashboard,
		clock:     cfg.Clock,
		templates: cfg.Templates,
		title:     title,
		chartURL:  cfg.ChartLibraryURL,
		mapURL:    cfg.MapLibraryURL,
		attempts:  cfg.ChartPollAttempts,
		interval:  cfg.ChartPollInterval,
		debounce:  cfg.ResizeDebounce,
		logger:    cfg.Logger,
	}
	if h.attempts <= 0 {
		h.attempts = dashboard.DefaultPollAttempts
	}
	if h.interval <= 0 {
		h.interval = dashboard.DefaultPollInterval
	}
	if h.debounce <= 0 {
		h.debounce = dashboard.DefaultResizeDebounce
	}
	return h
}

// Page handles GET / - the dashboard page drawn from the current view.
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	page := views.Page{
		Title:           h.title,
		Clock:           h.clock.Current(),
		ChartLibraryURL: h.chartURL,
		MapLibraryURL:   h.mapURL,
		View:            h.dashboard.View(),
		PollAttempts:    h.attempts,
		PollInterval:    h.interval,
		ResizeDebounce:  h.debounce,
	}

	w.Header().Set("Cache-Control", "no-store")
	if err := response.HTML(w, r, http.StatusOK, h.templates, views.PageTemplate, page); err != nil {
		h.logger.Error().Err(err).Msg("failed to render dashboard page")
	}
}

// Refresh handles POST /refresh. The cycle runs in the background; a
// request during a running cycle is rejected, not queued.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	// The cycle outlives the request but keeps its trace context.
	err := h.dashboard.TriggerRefresh(context.WithoutCancel(r.Context()))
	if errors.Is(err, dashboard.ErrCycleInProgress) {
		response.RefreshInProgress(w, r, "a load or refresh is already running")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to start refresh")
		response.InternalError(w, r, "failed to start refresh")
		return
	}

	// Plain form posts (no script) go back to the page.
	if wantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	response.Accepted(w, r, "/api/snapshot", models.RefreshAccepted{
		State:   h.dashboard.View().State.String(),
		Message: "refresh started",
	})
}

// Snapshot handles GET /api/snapshot.
func (h *DashboardHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	view := h.dashboard.View()
	w.Header().Set(StateHeader, view.State.String())

	if view.Snapshot == nil {
		detail := "no snapshot has been loaded yet"
		if view.Error != "" {
			detail = view.Error
		}
		response.ServiceUnavailable(w, r, detail)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SnapshotResponse{
		State:     view.State.String(),
		Snapshot:  view.Snapshot,
		UpdatedAt: models.Timestamp(view.UpdatedAt),
	})
}

// Clock handles GET /api/clock.
func (h *DashboardHandler) Clock(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.ClockResponse{Time: h.clock.Current()})
}

// Resize handles POST /api/resize; the map relayout is debounced.
func (h *DashboardHandler) Resize(w http.ResponseWriter, r *http.Request) {
	h.dashboard.NotifyResize()
	response.NoContent(w, r)
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
