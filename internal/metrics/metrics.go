// Package metrics exposes Prometheus collectors for the connector service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	instancePollDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connector_instance_poll_duration_seconds",
			Help:    "Histogram of per-instance status and health poll latencies.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"instance", "kind"},
	)

	instanceUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connector_instance_up",
			Help: "1 when the last status poll of the instance reported OK, 0 otherwise.",
		},
		[]string{"instance"},
	)

	compositeHealth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connector_composite_health",
			Help: "Last composite health: 0 ok, 1 warning, 2 error.",
		},
	)

	jobsRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_jobs_routed_total",
			Help: "Total number of job operations routed to an instance, labeled by operation and outcome.",
		},
		[]string{"instance", "operation", "outcome"},
	)

	fanoutFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connector_fanout_failures_total",
			Help: "Per-instance failures absorbed during fan-out, labeled by operation.",
		},
		[]string{"instance", "operation"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveInstancePoll records how long one status or health poll took.
func ObserveInstancePoll(instance, kind string, duration time.Duration) {
	instancePollDurationSeconds.WithLabelValues(instance, kind).Observe(duration.Seconds())
}

// SetInstanceUp records whether an instance reported OK.
func SetInstanceUp(instance string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	instanceUp.WithLabelValues(instance).Set(v)
}

// SetCompositeHealth records the rank of the last composite health value.
func SetCompositeHealth(rank int) {
	compositeHealth.Set(float64(rank))
}

// ObserveJobRouted increments the routed job counter.
func ObserveJobRouted(instance, operation, outcome string) {
	jobsRoutedTotal.WithLabelValues(instance, operation, outcome).Inc()
}

// ObserveFanoutFailure increments the absorbed failure counter.
func ObserveFanoutFailure(instance, operation string) {
	fanoutFailuresTotal.WithLabelValues(instance, operation).Inc()
}
