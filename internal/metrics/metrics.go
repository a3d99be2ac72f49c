// Package metrics provides Prometheus instrumentation for the gateway.
//
// The gateway registers its metrics then mounts metrics.Handler() at
// GET /metrics (Prometheus scrape endpoint).
//
// Standard metrics exposed automatically by prometheus/client_golang:
//   - go_goroutines, go_gc_duration_seconds, etc. (Go runtime)
//   - process_cpu_seconds_total, process_open_fds, etc. (process)
//
// Gateway-specific metrics registered here:
//   chartschool_active_proxy_streams      — gauge: concurrent proxy streams
//   chartschool_http_requests_total       — counter: HTTP requests by method/path/status
//   chartschool_http_request_duration_secs — histogram: HTTP latency by method/path
//   chartschool_manifest_rewrites_total   — counter: HLS manifest rewrites by outcome
//   chartschool_chat_sends_total          — counter: chat sends by owner kind/result
//   chartschool_chat_errors_total         — counter: chat transport errors by status
//   chartschool_webhook_events_total      — counter: Stripe webhook events by type
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ── Gauges ────────────────────────────────────────────────────────────────────

// ActiveProxyStreams is the number of in-flight video proxy responses.
var ActiveProxyStreams = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chartschool_active_proxy_streams",
	Help: "Number of concurrent video proxy streams.",
})

// ── Counters ──────────────────────────────────────────────────────────────────

// HTTPRequests counts HTTP requests by service, method, path, and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chartschool_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"service", "method", "path", "status"})

// ManifestRewrites counts HLS manifest rewrites by outcome (ok, passthrough).
var ManifestRewrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chartschool_manifest_rewrites_total",
	Help: "HLS manifest rewrites by outcome.",
}, []string{"outcome"})

// ChatSends counts chat message sends by owner kind (student, guest) and result.
var ChatSends = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chartschool_chat_sends_total",
	Help: "Chat sends by owner kind and result.",
}, []string{"kind", "result"})

// ChatErrors counts chat backend errors by HTTP status class.
var ChatErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chartschool_chat_errors_total",
	Help: "Chat transport errors by status.",
}, []string{"status"})

// WebhookEvents counts verified Stripe webhook events by type.
var WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "chartschool_webhook_events_total",
	Help: "Stripe webhook events received, by event type.",
}, []string{"event"})

// ── Histograms ────────────────────────────────────────────────────────────────

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "chartschool_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
}, []string{"service", "method", "path"})

// ProxyFetchDuration tracks upstream CDN fetch latency through the proxy.
var ProxyFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "chartschool_proxy_fetch_duration_seconds",
	Help:    "Time to fetch and relay one upstream object through the proxy.",
	Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
})

// ── Handler ───────────────────────────────────────────────────────────────────

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ── Middleware ────────────────────────────────────────────────────────────────

// Middleware wraps an HTTP handler to record request counts and latency.
// service is the logical component name (e.g. "gateway").
func Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		dur := time.Since(start).Seconds()
		path := sanitizePath(r.URL.Path)
		status := strconv.Itoa(rw.status)
		HTTPRequests.WithLabelValues(service, r.Method, path, status).Inc()
		HTTPDuration.WithLabelValues(service, r.Method, path).Observe(dur)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// sanitizePath keeps label values short to bound cardinality.
func sanitizePath(path string) string {
	if len(path) > 64 {
		return path[:64] + "..."
	}
	return path
}

// ── Init (registry-scoped) ────────────────────────────────────────────────────

// Init registers all gateway metrics with the given prometheus.Registerer.
// This is provided for testing — pass prometheus.NewRegistry() to get an
// isolated registry. In production all metrics are registered via promauto
// to prometheus.DefaultRegisterer at package init time.
func Init(reg prometheus.Registerer) {
	httpReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_http_requests_total",
		Help: "Total HTTP requests handled.",
	}, []string{"service", "method", "path", "status"})

	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chartschool_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method", "path"})

	activeProxy := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chartschool_active_proxy_streams",
		Help: "Number of concurrent video proxy streams.",
	})

	manifestRewrites := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_manifest_rewrites_total",
		Help: "HLS manifest rewrites by outcome.",
	}, []string{"outcome"})

	chatSends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_chat_sends_total",
		Help: "Chat sends by owner kind and result.",
	}, []string{"kind", "result"})

	chatErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_chat_errors_total",
		Help: "Chat transport errors by status.",
	}, []string{"status"})

	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chartschool_webhook_events_total",
		Help: "Stripe webhook events received, by event type.",
	}, []string{"event"})

	reg.MustRegister(
		httpReqs,
		httpDur,
		activeProxy,
		manifestRewrites,
		chatSends,
		chatErrors,
		webhookEvents,
	)
}
