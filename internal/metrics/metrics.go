package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kalshi_tracker"

// Metrics holds every collector the tracker exports. It implements the
// observer interfaces of api, ingest, poller and server.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiRetries  *prometheus.CounterVec

	syncRuns      *prometheus.CounterVec
	syncInserted  *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	integrityErrs *prometheus.CounterVec

	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Venue API requests by path and status code (0 for network errors).",
		}, []string{"path", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Venue API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		apiRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "retries_total",
			Help:      "Venue API retries by path.",
		}, []string{"path"}),

		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync sweeps by stream and result.",
		}, []string{"stream", "result"}),
		syncInserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "inserted_total",
			Help:      "Rows inserted by sync sweeps.",
		}, []string{"stream"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Sync sweep duration.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stream"}),
		integrityErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "integrity_issues_total",
			Help:      "Ingested records that failed integrity checks.",
		}, []string{"kind"}),

		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "runs_total",
			Help:      "Scheduled task runs by task and result.",
		}, []string{"task", "result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "run_duration_seconds",
			Help:      "Scheduled task run duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Local API requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Local API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiRetries,
		m.syncRuns, m.syncInserted, m.syncDuration, m.integrityErrs,
		m.taskRuns, m.taskDuration,
		m.httpRequests, m.httpLatency,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records a venue request.
func (m *Metrics) ObserveRequest(path string, status int, d time.Duration) {
	path = normalizePath(path)
	m.apiRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(path).Observe(d.Seconds())
}

// ObserveRetry records a venue retry.
func (m *Metrics) ObserveRetry(path string) {
	m.apiRetries.WithLabelValues(normalizePath(path)).Inc()
}

// ObserveSync records a stream sweep.
func (m *Metrics) ObserveSync(stream string, inserted int, d time.Duration, err error) {
	m.syncRuns.WithLabelValues(stream, result(err)).Inc()
	m.syncInserted.WithLabelValues(stream).Add(float64(inserted))
	m.syncDuration.WithLabelValues(stream).Observe(d.Seconds())
}

// ObserveIntegrityIssue records a record that failed validation.
func (m *Metrics) ObserveIntegrityIssue(kind string) {
	m.integrityErrs.WithLabelValues(kind).Inc()
}

// ObserveTask records a scheduled run.
func (m *Metrics) ObserveTask(name string, d time.Duration, err error) {
	m.taskRuns.WithLabelValues(name, result(err)).Inc()
	m.taskDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveHTTP records a local API request. route is the mux pattern, not
// the raw path.
func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// normalizePath collapses per-market paths so labels stay bounded.
func normalizePath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, "/markets/") {
		return "/markets/{ticker}"
	}
	return path
}
