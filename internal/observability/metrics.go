package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors used across the service: the HTTP
// edge counters the teacher already exposed, plus gauges/counters over the
// engine and reaper internals specific to this domain.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	HealthChecks *prometheus.CounterVec

	ReaperSweeps   prometheus.Counter
	ReaperExpired  prometheus.Counter
	ReaperUnhidden prometheus.Counter
	ReaperNotified prometheus.Counter

	WaitersParked prometheus.Gauge
}

// NewMetrics registers collectors with the provided namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	labels := []string{"method", "path", "status"}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, labels)
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, labels)
	healthChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "health_checks_total",
		Help:      "Readiness probe outcomes by component and status.",
	}, []string{"component", "status"})

	reaperSweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_sweeps_total",
		Help:      "Number of reaper sweep ticks run.",
	})
	reaperExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_expired_messages_total",
		Help:      "Messages removed by the reaper for having an elapsed ttl.",
	})
	reaperUnhidden := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_unhidden_messages_total",
		Help:      "Messages made visible again by the reaper for having an elapsed hide.",
	})
	reaperNotified := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reaper_notified_queues_total",
		Help:      "Queue wake-ups sent by the reaper after a sweep.",
	})

	waitersParked := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "waiters_parked",
		Help:      "Account/queue pairs with a registered wait channel (waited on since their last notify).",
	})

	reg.MustRegister(requests, duration, healthChecks, reaperSweeps, reaperExpired, reaperUnhidden, reaperNotified, waitersParked)

	return &Metrics{
		HTTPRequests:   requests,
		HTTPDuration:   duration,
		HealthChecks:   healthChecks,
		ReaperSweeps:   reaperSweeps,
		ReaperExpired:  reaperExpired,
		ReaperUnhidden: reaperUnhidden,
		ReaperNotified: reaperNotified,
		WaitersParked:  waitersParked,
	}
}
