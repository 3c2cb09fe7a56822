package dashboard

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tokyotraffic/tokyotraffic/internal/render"
)

const metricsNamespace = "tokyotraffic"

// Metrics holds the Prometheus collectors of the dashboard. A nil *Metrics
// records nothing.
type Metrics struct {
	cycles           *prometheus.CounterVec
	cycleDuration    *prometheus.HistogramVec
	rejected         prometheus.Counter
	renders          *prometheus.CounterVec
	renderFailures   *prometheus.CounterVec
	upstream         *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	stations         prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Load and refresh cycles by trigger and resulting state",
		}, []string{"trigger", "state"}),
		cycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time from fetch start to published view",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_rejected_total",
			Help:      "Refresh requests dropped because a cycle was running",
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "renders_total",
			Help:      "Rendered regions by slot and renderer",
		}, []string{"slot", "renderer"}),
		renderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "render_failures_total",
			Help:      "Renderer errors and panics by slot and renderer",
		}, []string{"slot", "renderer"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to data and asset hosts by provider and outcome",
		}, []string{"provider", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of upstream requests including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		stations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "snapshot_stations",
			Help:      "Stations in the displayed snapshot",
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.rejected,
		m.renders,
		m.renderFailures,
		m.upstream,
		m.upstreamDuration,
		m.stations,
	)
	return m
}

// ObserveUpstream implements resilience.Observer.
func (m *Metrics) ObserveUpstream(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(provider, outcome).Inc()
	m.upstreamDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) cycleFinished(trigger string, state State, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(trigger, state.String()).Inc()
	m.cycleDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

func (m *Metrics) cycleRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Metrics) rendered(slot render.Slot, renderer string) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(string(slot), renderer).Inc()
}

func (m *Metrics) renderFailed(slot render.Slot, renderer string) {
	if m == nil {
		return
	}
	m.renderFailures.WithLabelValues(string(slot), renderer).Inc()
}

func (m *Metrics) snapshotStations(n int) {
	if m == nil {
		return
	}
	m.stations.Set(float64(n))
}
