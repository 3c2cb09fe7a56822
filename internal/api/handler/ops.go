// Package handler provides the HTTP handlers of the dashboard server.
package handler

import (
	"net/http"
	"time"

	"github.com/tokyotraffic/tokyotraffic/internal/api/models"
	"github.com/tokyotraffic/tokyotraffic/internal/api/response"
	"github.com/tokyotraffic/tokyotraffic/internal/dashboard"
	"github.com/tokyotraffic/tokyotraffic/internal/provider/resilience"
)

// ViewSource exposes the published dashboard view.
type ViewSource interface {
	View() *dashboard.View
}

// OpsHandlerConfig holds configuration for the ops handler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string

	// Dashboard reports the controller state (required).
	Dashboard ViewSource

	// Registry reports upstream circuit states (optional).
	Registry *resilience.Registry

	// Now returns the current time (default: time.Now).
	Now func() time.Time
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	dashboard ViewSource
	registry  *resilience.Registry
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		dashboard: cfg.Dashboard,
		registry:  cfg.Registry,
		now:       now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusHealthy,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready once a
// snapshot is on display; a failed refresh keeps it ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	view := h.dashboard.View()

	status := http.StatusOK
	health := models.HealthStatusHealthy
	if !view.State.HasSnapshot() {
		status = http.StatusServiceUnavailable
		health = models.HealthStatusUnhealthy
	}

	response.JSON(w, r, status, models.Health{
		Status:  health,
		Time:    models.Timestamp(h.now()),
		Details: map[string]any{"state": view.State.String()},
	})
}

// SystemStatus handles GET /v1/ops/status - upstream and dashboard status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	view := h.dashboard.View()

	status := models.SystemStatus{
		Time:      models.Timestamp(h.now()),
		Dashboard: dashboardStatus(view),
		Providers: []models.ProviderStatus{},
	}

	overall := dashboardHealth(view.State)
	if h.registry != nil {
		for _, p := range h.registry.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider:            p.Name,
				Status:              models.HealthStatus(p.Status()),
				CircuitState:        p.CircuitState.String(),
				ConsecutiveFailures: p.Counts.ConsecutiveFailures,
			}
			if p.LastSuccessAt != nil {
				ps.LastSuccessAt = models.TimestampPtr(*p.LastSuccessAt)
			}
			if p.LastFailureAt != nil {
				ps.LastFailureAt = models.TimestampPtr(*p.LastFailureAt)
			}
			if p.LastError != "" {
				msg := p.LastError
				ps.Message = &msg
			}
			status.Providers = append(status.Providers, ps)
		}
		overall = overall.Worse(models.HealthStatus(h.registry.Status()))
	}
	status.Status = overall

	response.JSON(w, r, http.StatusOK, status)
}

func dashboardStatus(view *dashboard.View) models.DashboardStatus {
	ds := models.DashboardStatus{
		State: view.State.String(),
		Busy:  view.Busy,
		Error: view.Error,
	}
	if view.Snapshot != nil {
		ds.SnapshotID = view.Snapshot.ID
		ds.BuiltAt = models.TimestampPtr(view.Snapshot.BuiltAt)
	}
	return ds
}

func dashboardHealth(state dashboard.State) models.HealthStatus {
	switch state {
	case dashboard.StateLoadFailed:
		return models.HealthStatusUnhealthy
	case dashboard.StateRefreshFailed, dashboard.StateUninitialized, dashboard.StateLoading:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusHealthy
	}
}
