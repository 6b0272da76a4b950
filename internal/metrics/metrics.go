// Package metrics records Prometheus metrics for outgoing remote calls and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector is the recording side used by the remote clients.
type MetricsCollector interface {
	RecordRequest(client, method string, statusCode int, duration time.Duration)
	RecordTransportError(client, method string)
	RecordRateLimitWait(client string, duration time.Duration)
}

// Collector implements [MetricsCollector] with Prometheus vectors.
type Collector struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	transportErrs *prometheus.CounterVec
	rateWait      *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviememo_remote_requests_total",
			Help: "Remote requests by client, method and HTTP status code.",
		}, []string{"client", "method", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moviememo_remote_request_seconds",
			Help:    "Remote request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"client"}),
		transportErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviememo_remote_transport_errors_total",
			Help: "Remote requests that never produced a response.",
		}, []string{"client", "method"}),
		rateWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moviememo_rate_limit_wait_seconds",
			Help:    "Time spent waiting on client side rate limiters.",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"client"}),
	}

	reg.MustRegister(c.requests, c.latency, c.transportErrs, c.rateWait)
	return c
}

func (c *Collector) RecordRequest(client, method string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(client, method, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(client).Observe(duration.Seconds())
}

func (c *Collector) RecordTransportError(client, method string) {
	c.transportErrs.WithLabelValues(client, method).Inc()
}

func (c *Collector) RecordRateLimitWait(client string, duration time.Duration) {
	c.rateWait.WithLabelValues(client).Observe(duration.Seconds())
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRequest(string, string, int, time.Duration) {}
func (Nop) RecordTransportError(string, string)              {}
func (Nop) RecordRateLimitWait(string, time.Duration)        {}

// transport wraps an [http.RoundTripper] and records every exchange.
type transport struct {
	next      http.RoundTripper
	collector MetricsCollector
	client    string
}

// InstrumentTransport returns a RoundTripper that records requests made through next under the client label.
func InstrumentTransport(next http.RoundTripper, collector MetricsCollector, client string) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if collector == nil {
		return next
	}
	return &transport{next: next, collector: collector, client: client}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.collector.RecordTransportError(t.client, req.Method)
		return nil, err
	}
	t.collector.RecordRequest(t.client, req.Method, resp.StatusCode, time.Since(start))
	return resp, nil
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
