// Package metrics exposes Prometheus counters for the authorizing client and
// the session store.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records client and session metrics into a Prometheus registry
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	failures      *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
	sessionActive prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlist_client_requests_total",
			Help: "Outbound API requests by endpoint and status code (0 when no response arrived).",
		}, []string{"method", "endpoint", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wishlist_client_request_duration_seconds",
			Help:    "Outbound API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlist_client_failures_total",
			Help: "Failed API requests by classification.",
		}, []string{"kind"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wishlist_session_auth_attempts_total",
			Help: "Authentication attempts by outcome.",
		}, []string{"outcome"}),
		sessionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wishlist_session_active",
			Help: "1 while a session is logged in.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.failures,
		c.authAttempts,
		c.sessionActive,
	)

	return c
}

// RecordRequest counts one completed or failed round trip
func (c *Collector) RecordRequest(method, endpoint string, statusCode int, d time.Duration) {
	c.requests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// RecordFailure counts a classified request failure
func (c *Collector) RecordFailure(kind string) {
	c.failures.WithLabelValues(kind).Inc()
}

// RecordAuthAttempt counts an authentication attempt by outcome
func (c *Collector) RecordAuthAttempt(outcome string) {
	c.authAttempts.WithLabelValues(outcome).Inc()
}

// SetSessionActive flips the session gauge
func (c *Collector) SetSessionActive(active bool) {
	if active {
		c.sessionActive.Set(1)
		return
	}
	c.sessionActive.Set(0)
}

// Summary flattens counters and gauges from g into name{labels} -> value,
// for printing at the end of a CLI run
func Summary(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				key += "{"
				for i, lp := range labels {
					if i > 0 {
						key += ","
					}
					key += lp.GetName() + "=" + lp.GetValue()
				}
				key += "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[key+"_count"] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}
