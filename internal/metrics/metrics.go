// Package metrics exposes Prometheus counters for requests, access
// decisions and verification outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	decisions    *prometheus.CounterVec
	verification *prometheus.CounterVec
	activity     *prometheus.CounterVec
}

// NewCollector registers the collector's metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tally_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_authz_decisions_total",
			Help: "Access policy decisions by action and result.",
		}, []string{"action", "result"}),
		verification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_verification_events_total",
			Help: "Verification gate events.",
		}, []string{"event"}),
		activity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tally_activity_events_total",
			Help: "Recorded activity log entries by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.decisions,
		c.verification,
		c.activity,
	)

	return c
}

func (c *Collector) ObserveRequest(method string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(method).Observe(d.Seconds())
}

func (c *Collector) RecordDecision(action string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	c.decisions.WithLabelValues(action, result).Inc()
}

func (c *Collector) RecordVerification(event string) {
	c.verification.WithLabelValues(event).Inc()
}

func (c *Collector) RecordActivity(action string) {
	c.activity.WithLabelValues(action).Inc()
}

// Handler serves the gathered metrics in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
