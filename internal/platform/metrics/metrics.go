package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Probe result labels.
const (
	ProbeHealthy     = "healthy"
	ProbeUnreachable = "unreachable"
	ProbeTimeout     = "timeout"
)

// Metrics holds Prometheus counters and gauges for the camera relay.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	sessionsStartedTotal  prometheus.Counter
	sessionsStoppedTotal  prometheus.Counter
	persistFailuresTotal  prometheus.Counter
	probesTotal           *prometheus.CounterVec
	sweepDuration         prometheus.Histogram
	activeSessions        prometheus.Gauge
	playlistRequestsTotal prometheus.Counter
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camrelay_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camrelay_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sessionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camrelay_sessions_started_total",
		Help: "Total number of relay session starts, including re-arms",
	})
	sessionsStoppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camrelay_sessions_stopped_total",
		Help: "Total number of relay sessions stopped",
	})
	persistFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camrelay_persist_failures_total",
		Help: "Total number of failed online-status write-throughs to the camera store",
	})
	probesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "camrelay_health_probes_total",
		Help: "Total number of session health probes by result",
	}, []string{"result"})
	sweepDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "camrelay_sweep_duration_seconds",
		Help:    "Duration of full health sweeps",
		Buckets: prometheus.DefBuckets,
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camrelay_active_sessions",
		Help: "Number of sessions currently in the active state",
	})
	playlistRequestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camrelay_playlist_requests_total",
		Help: "Total number of playlist manifests served",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sessionsStartedTotal,
		sessionsStoppedTotal,
		persistFailuresTotal,
		probesTotal,
		sweepDuration,
		activeSessions,
		playlistRequestsTotal,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		sessionsStartedTotal:  sessionsStartedTotal,
		sessionsStoppedTotal:  sessionsStoppedTotal,
		persistFailuresTotal:  persistFailuresTotal,
		probesTotal:           probesTotal,
		sweepDuration:         sweepDuration,
		activeSessions:        activeSessions,
		playlistRequestsTotal: playlistRequestsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSessionsStarted increments the session start counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
}

// IncSessionsStopped increments the session stop counter.
func (m *Metrics) IncSessionsStopped() {
	m.sessionsStoppedTotal.Inc()
}

// IncPersistFailures increments the failed write-through counter.
func (m *Metrics) IncPersistFailures() {
	m.persistFailuresTotal.Inc()
}

// IncProbes increments the probe counter for result.
func (m *Metrics) IncProbes(result string) {
	m.probesTotal.WithLabelValues(result).Inc()
}

// ObserveSweep records the duration of one sweep.
func (m *Metrics) ObserveSweep(d time.Duration) {
	m.sweepDuration.Observe(d.Seconds())
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncPlaylistRequests increments the playlist counter.
func (m *Metrics) IncPlaylistRequests() {
	m.playlistRequestsTotal.Inc()
}

// Registry exposes the underlying registry so callers can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
