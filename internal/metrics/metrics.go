package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/suspectuso/green-coin/internal/session"
)

const namespace = "greencoin"

// Metrics holds the client-side collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	refreshWarnings *prometheus.CounterVec
	actions         *prometheus.CounterVec
	sessions        prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Reward service round trips by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Duration of reward service round trips.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"op"},
		),

		refreshWarnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "refresh_warnings_total",
				Help:      "Failed fetches inside the refresh sequence.",
			},
			[]string{"resource"},
		),

		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "actions_logged_total",
				Help:      "Actions confirmed by the reward service.",
			},
			[]string{"action_type"},
		),

		sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "active",
				Help:      "Controllers currently held in memory.",
			},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.refreshWarnings,
		m.actions,
		m.sessions,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// ObserveRequest implements greencoin.Observer
func (m *Metrics) ObserveRequest(op, outcome string, elapsed time.Duration) {
	m.requests.WithLabelValues(op, outcome).Inc()
	m.requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveWarnings counts refresh failures per resource
func (m *Metrics) ObserveWarnings(ws []session.Warning) {
	for _, w := range ws {
		m.refreshWarnings.WithLabelValues(w.Resource).Inc()
	}
}

// ActionLogged counts a confirmed action
func (m *Metrics) ActionLogged(actionType string) {
	m.actions.WithLabelValues(actionType).Inc()
}

// SetSessions reports the number of live controllers
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
