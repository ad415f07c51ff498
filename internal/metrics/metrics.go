package metrics

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

const namespace = "gateway"

// TextFormat is the exposition format written by Render.
var TextFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// Outcome labels for forwarded requests.
const (
	OutcomeSuccess     = "success"
	OutcomeUpstream5xx = "upstream_error"
	OutcomeFailure     = "failure"
)

// Breaker states as exported by the circuit_breaker_state gauge.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// Registry is the process-wide metrics set. Every method is safe for
// concurrent use without external locking.
type Registry struct {
	registry *prometheus.Registry

	forwardRequests *prometheus.CounterVec
	forwardDuration *prometheus.HistogramVec
	forwardErrors   *prometheus.CounterVec

	handlerRequests *prometheus.CounterVec

	configReloads   *prometheus.CounterVec
	configVersion   prometheus.Gauge
	configEndpoints prometheus.Gauge

	endpointUp   *prometheus.GaugeVec
	breakerState *prometheus.GaugeVec
}

// NewRegistry creates the metric families on a private prometheus registry.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		forwardRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "forward",
				Name:      "requests_total",
				Help:      "Forwarded requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		forwardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "forward",
				Name:      "request_duration_seconds",
				Help:      "Time until the upstream response headers arrived, by endpoint and outcome.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint", "outcome"},
		),
		forwardErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "forward",
				Name:      "errors_total",
				Help:      "Forwarding failures by endpoint and error kind.",
			},
			[]string{"endpoint", "kind"},
		),
		handlerRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Requests served by each handler, by status code.",
			},
			[]string{"fn", "code"},
		),
		configReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "config",
				Name:      "reloads_total",
				Help:      "Endpoint configuration reload attempts by result.",
			},
			[]string{"result"},
		),
		configVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "config",
				Name:      "version",
				Help:      "Version of the active endpoint configuration snapshot.",
			},
		),
		configEndpoints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "config",
				Name:      "endpoints",
				Help:      "Number of endpoints in the active snapshot.",
			},
		),
		endpointUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "up",
				Help:      "Whether the last reachability probe of the endpoint succeeded.",
			},
			[]string{"endpoint"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "endpoint",
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state per endpoint (0 closed, 1 half-open, 2 open).",
			},
			[]string{"endpoint"},
		),
	}

	r.registry.MustRegister(
		r.forwardRequests,
		r.forwardDuration,
		r.forwardErrors,
		r.handlerRequests,
		r.configReloads,
		r.configVersion,
		r.configEndpoints,
		r.endpointUp,
		r.breakerState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// RecordForward counts one forwarded request and observes its latency.
func (r *Registry) RecordForward(endpoint, outcome string, duration time.Duration) {
	r.forwardRequests.WithLabelValues(endpoint, outcome).Inc()
	r.forwardDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

// RecordForwardError counts one failed forward of the given kind.
func (r *Registry) RecordForwardError(endpoint, kind string) {
	r.forwardErrors.WithLabelValues(endpoint, kind).Inc()
}

// RecordHandled counts one response written by handler fn.
func (r *Registry) RecordHandled(fn string, status int) {
	r.handlerRequests.WithLabelValues(fn, strconv.Itoa(status)).Inc()
}

// RecordReload counts a reload attempt.
func (r *Registry) RecordReload(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	r.configReloads.WithLabelValues(result).Inc()
}

// SetSnapshot exports the version and size of the active snapshot.
func (r *Registry) SetSnapshot(version uint64, endpoints int) {
	r.configVersion.Set(float64(version))
	r.configEndpoints.Set(float64(endpoints))
}

// SetEndpointUp records the latest probe result for an endpoint.
func (r *Registry) SetEndpointUp(endpoint string, up bool) {
	value := 0.0
	if up {
		value = 1
	}
	r.endpointUp.WithLabelValues(endpoint).Set(value)
}

// ForgetEndpoint drops the per-endpoint gauges of an endpoint that left
// the configuration.
func (r *Registry) ForgetEndpoint(endpoint string) {
	r.endpointUp.DeleteLabelValues(endpoint)
	r.breakerState.DeleteLabelValues(endpoint)
}

// SetBreakerState exports the circuit breaker state of an endpoint.
func (r *Registry) SetBreakerState(endpoint string, state int) {
	r.breakerState.WithLabelValues(endpoint).Set(float64(state))
}

// Render writes every metric family in the Prometheus text format.
func (r *Registry) Render(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, TextFormat)
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return fmt.Errorf("encode metric family %s: %w", family.GetName(), err)
		}
	}

	return nil
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
