package observability

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsConfig holds configuration for the metrics subsystem.
type MetricsConfig struct {
	Enabled bool
	// Namespace prefix for all metrics (default: framehub).
	Namespace string
	// Version is reported by the info metric.
	Version string
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "framehub",
		Version:   "dev",
	}
}

// Metrics collects HTTP and installer download metrics and renders them in
// the Prometheus text format. Safe for concurrent use.
type Metrics struct {
	mu        sync.RWMutex
	namespace string
	version   string

	// key = "method:path:status"
	httpRequestCounts map[string]*atomic.Int64

	// key = "method:path"
	httpDurations  map[string]*durationCollector
	httpDurationMu sync.RWMutex

	rateLimitAllowed  atomic.Int64
	rateLimitRejected atomic.Int64

	activeConnections atomic.Int64

	downloadsSucceeded atomic.Int64
	downloadsFailed    atomic.Int64
	bytesServed        atomic.Int64
}

// durationCollector keeps a sliding window of duration samples.
type durationCollector struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
}

func newDurationCollector(maxSize int) *durationCollector {
	return &durationCollector{
		samples: make([]float64, 0, maxSize),
		maxSize: maxSize,
	}
}

func (d *durationCollector) add(duration time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.samples) >= d.maxSize {
		copy(d.samples, d.samples[1:])
		d.samples = d.samples[:len(d.samples)-1]
	}
	d.samples = append(d.samples, duration.Seconds())
}

func (d *durationCollector) quantile(q float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(d.samples))
	copy(sorted, d.samples)
	sort.Float64s(sorted)

	idx := q * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func (d *durationCollector) sumCount() (float64, int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var total float64
	for _, s := range d.samples {
		total += s
	}
	return total, len(d.samples)
}

// NewMetrics creates a new Metrics collector.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "framehub"
	}
	return &Metrics{
		namespace:         cfg.Namespace,
		version:           cfg.Version,
		httpRequestCounts: make(map[string]*atomic.Int64),
		httpDurations:     make(map[string]*durationCollector),
	}
}

// RecordHTTPRequest records an HTTP request with its method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	normalizedPath := normalizePath(path)

	countKey := fmt.Sprintf("%s:%s:%d", method, normalizedPath, statusCode)
	m.mu.Lock()
	counter, ok := m.httpRequestCounts[countKey]
	if !ok {
		counter = &atomic.Int64{}
		m.httpRequestCounts[countKey] = counter
	}
	m.mu.Unlock()
	counter.Add(1)

	durationKey := fmt.Sprintf("%s:%s", method, normalizedPath)
	m.httpDurationMu.Lock()
	collector, ok := m.httpDurations[durationKey]
	if !ok {
		collector = newDurationCollector(1000)
		m.httpDurations[durationKey] = collector
	}
	m.httpDurationMu.Unlock()
	collector.add(duration)
}

// RecordDownload counts one installer download attempt. A nil receiver is
// a no-op so handlers can call it unconditionally.
func (m *Metrics) RecordDownload(success bool, bytes int) {
	if m == nil {
		return
	}
	if !success {
		m.downloadsFailed.Add(1)
		return
	}
	m.downloadsSucceeded.Add(1)
	m.bytesServed.Add(int64(bytes))
}

// RecordRateLimitAllowed increments the count of allowed requests.
func (m *Metrics) RecordRateLimitAllowed() {
	m.rateLimitAllowed.Add(1)
}

// RecordRateLimitRejected increments the count of rejected requests.
func (m *Metrics) RecordRateLimitRejected() {
	m.rateLimitRejected.Add(1)
}

// normalizePath keeps label cardinality bounded: static assets collapse
// into one label and unknown paths into "other".
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/static/"):
		return "/static/*"
	case path == "/", path == "/download", strings.HasPrefix(path, "/api/"),
		path == "/healthz", path == "/readyz", path == "/openapi.yaml":
		return path
	default:
		return "other"
	}
}

// Handler returns an http.Handler that serves Prometheus-format metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.writePrometheusMetrics(w)
	})
}

func (m *Metrics) writePrometheusMetrics(w io.Writer) {
	ns := m.namespace

	fmt.Fprintf(w, "# HELP %s_info Application information\n", ns)
	fmt.Fprintf(w, "# TYPE %s_info gauge\n", ns)
	fmt.Fprintf(w, "%s_info{version=%q} 1\n\n", ns, m.version)

	fmt.Fprintf(w, "# HELP %s_http_requests_total Total number of HTTP requests\n", ns)
	fmt.Fprintf(w, "# TYPE %s_http_requests_total counter\n", ns)
	m.mu.RLock()
	keys := make([]string, 0, len(m.httpRequestCounts))
	for k := range m.httpRequestCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts := strings.SplitN(key, ":", 3)
		if len(parts) == 3 {
			fmt.Fprintf(w, "%s_http_requests_total{method=%q,path=%q,status=%q} %d\n",
				ns, parts[0], parts[1], parts[2], m.httpRequestCounts[key].Load())
		}
	}
	m.mu.RUnlock()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP %s_http_request_duration_seconds HTTP request duration in seconds\n", ns)
	fmt.Fprintf(w, "# TYPE %s_http_request_duration_seconds summary\n", ns)
	m.httpDurationMu.RLock()
	durationKeys := make([]string, 0, len(m.httpDurations))
	for k := range m.httpDurations {
		durationKeys = append(durationKeys, k)
	}
	sort.Strings(durationKeys)
	for _, key := range durationKeys {
		collector := m.httpDurations[key]
		parts := strings.SplitN(key, ":", 2)
		if len(parts) != 2 {
			continue
		}
		method, path := parts[0], parts[1]
		for _, q := range []float64{0.5, 0.9, 0.99} {
			fmt.Fprintf(w, "%s_http_request_duration_seconds{method=%q,path=%q,quantile=\"%.2f\"} %.6f\n",
				ns, method, path, q, collector.quantile(q))
		}
		sum, count := collector.sumCount()
		fmt.Fprintf(w, "%s_http_request_duration_seconds_sum{method=%q,path=%q} %.6f\n", ns, method, path, sum)
		fmt.Fprintf(w, "%s_http_request_duration_seconds_count{method=%q,path=%q} %d\n", ns, method, path, count)
	}
	m.httpDurationMu.RUnlock()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP %s_installer_downloads_total Installer download attempts by result\n", ns)
	fmt.Fprintf(w, "# TYPE %s_installer_downloads_total counter\n", ns)
	fmt.Fprintf(w, "%s_installer_downloads_total{result=\"success\"} %d\n", ns, m.downloadsSucceeded.Load())
	fmt.Fprintf(w, "%s_installer_downloads_total{result=\"failure\"} %d\n\n", ns, m.downloadsFailed.Load())

	fmt.Fprintf(w, "# HELP %s_installer_bytes_served_total Installer bytes written to clients\n", ns)
	fmt.Fprintf(w, "# TYPE %s_installer_bytes_served_total counter\n", ns)
	fmt.Fprintf(w, "%s_installer_bytes_served_total %d\n\n", ns, m.bytesServed.Load())

	fmt.Fprintf(w, "# HELP %s_rate_limit_requests_total Total rate limit decisions\n", ns)
	fmt.Fprintf(w, "# TYPE %s_rate_limit_requests_total counter\n", ns)
	fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"allowed\"} %d\n", ns, m.rateLimitAllowed.Load())
	fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"rejected\"} %d\n\n", ns, m.rateLimitRejected.Load())

	fmt.Fprintf(w, "# HELP %s_active_connections Current number of active HTTP connections\n", ns)
	fmt.Fprintf(w, "# TYPE %s_active_connections gauge\n", ns)
	fmt.Fprintf(w, "%s_active_connections %d\n", ns, m.activeConnections.Load())
}

// MetricsMiddleware records request counts, durations and the active
// connection gauge. A nil Metrics disables it.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			m.activeConnections.Add(1)
			defer m.activeConnections.Add(-1)

			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// RateLimitMetricsMiddleware wraps the rate limiter and counts its
// allow/reject decisions by looking at the response status.
func RateLimitMetricsMiddleware(m *Metrics, rateLimitEnabled bool) func(http.Handler) http.Handler {
	if m == nil || !rateLimitEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			if wrapped.statusCode == http.StatusTooManyRequests {
				m.RecordRateLimitRejected()
			} else {
				m.RecordRateLimitAllowed()
			}
		})
	}
}
