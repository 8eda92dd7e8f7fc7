// Package metrics exposes Prometheus collectors for the coach service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GatewayCalls       *prometheus.CounterVec
	GatewayDuration    *prometheus.HistogramVec
	UpdatesTotal       *prometheus.CounterVec
	CooldownSuppressed *prometheus.CounterVec
	ConsentTransitions *prometheus.CounterVec
	LiveBuffers        prometheus.Gauge
	RateLimitHits      prometheus.Counter
}

// New creates a Metrics instance with every collector registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coach"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Model gateway calls by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Model gateway call latency in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"action"},
		),
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Feedback updates returned to clients",
			},
			[]string{"type"},
		),
		CooldownSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cooldown_suppressed_total",
				Help:      "Actions skipped because the user was in cooldown",
			},
			[]string{"action"},
		),
		ConsentTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "consent_transitions_total",
				Help:      "Consent state changes",
			},
			[]string{"from", "to"},
		),
		LiveBuffers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_buffers",
				Help:      "Transcript buffers currently held in memory",
			},
		),
		RateLimitHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the per-user rate limiter",
			},
		),
	}

	m.registry.MustRegister(
		m.GatewayCalls,
		m.GatewayDuration,
		m.UpdatesTotal,
		m.CooldownSuppressed,
		m.ConsentTransitions,
		m.LiveBuffers,
		m.RateLimitHits,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveGatewayCall records one gateway call.
func (m *Metrics) ObserveGatewayCall(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(action, outcome).Inc()
	m.GatewayDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// IncUpdate counts an update returned to a client.
func (m *Metrics) IncUpdate(updateType string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(updateType).Inc()
}

// IncCooldownSuppressed counts an action skipped by the cooldown gate.
func (m *Metrics) IncCooldownSuppressed(action string) {
	if m == nil {
		return
	}
	m.CooldownSuppressed.WithLabelValues(action).Inc()
}

// IncConsentTransition counts a state change.
func (m *Metrics) IncConsentTransition(from, to string) {
	if m == nil {
		return
	}
	m.ConsentTransitions.WithLabelValues(from, to).Inc()
}

// SetLiveBuffers reports the current number of transcript buffers.
func (m *Metrics) SetLiveBuffers(n int) {
	if m == nil {
		return
	}
	m.LiveBuffers.Set(float64(n))
}

// IncRateLimitHit counts a rejected request.
func (m *Metrics) IncRateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimitHits.Inc()
}
