// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	FetchDuration     *prometheus.HistogramVec
	FetchResponses    *prometheus.CounterVec
	SSRFRejections    *prometheus.CounterVec
	RedirectsFollowed prometheus.Counter
	BytesServed       prometheus.Counter
}

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camoproxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camoproxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "camoproxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camoproxy_fetch_duration_seconds",
			Help:    "Upstream image fetch latency in seconds, including any followed redirects.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		FetchResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camoproxy_fetch_responses_total",
			Help: "Total terminal upstream responses by outcome.",
		}, []string{"outcome"}),

		SSRFRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camoproxy_ssrf_rejections_total",
			Help: "Total requests rejected by the SSRF validator, by reason.",
		}, []string{"reason"}),

		RedirectsFollowed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camoproxy_redirects_followed_total",
			Help: "Total redirect hops followed across all fetches.",
		}),

		BytesServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "camoproxy_bytes_served_total",
			Help: "Total response body bytes served to clients on successful GET requests.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.FetchDuration,
		m.FetchResponses,
		m.SSRFRejections,
		m.RedirectsFollowed,
		m.BytesServed,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes lists the allowed path label values (bounded cardinality).
// The signed image route has no fixed prefix of its own — every other
// inbound path is the digest/encoded-URL route and collapses to "/image"
// so that the per-request URL never becomes a metric label.
var knownPrefixes = []string{"/healthz", "/metrics"}

// NormalizePath returns a bounded path label for Prometheus metrics.
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "/image"
}
