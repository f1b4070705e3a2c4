package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	operationsTotal    *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	generationDuration *prometheus.HistogramVec
	autosaveFlushTotal *prometheus.CounterVec
	breakerStateTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devgen",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devgen",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devgen",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devgen",
			Subsystem: "workspace",
			Name:      "operations_total",
			Help:      "Total settled workspace operations by kind and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	operationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devgen",
			Subsystem: "workspace",
			Name:      "operation_duration_seconds",
			Help:      "Workspace operation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "operation"},
	)
	generationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devgen",
			Subsystem: "llm",
			Name:      "generation_duration_seconds",
			Help:      "Provider call duration in seconds by status.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "provider", "operation", "status"},
	)
	autosaveFlushTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devgen",
			Subsystem: "autosave",
			Name:      "flushes_total",
			Help:      "Total debounced workspace writes by status.",
		},
		[]string{"service", "status"},
	)
	breakerStateTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devgen",
			Subsystem: "resilience",
			Name:      "breaker_state_changes_total",
			Help:      "Circuit breaker transitions by operation and target state.",
		},
		[]string{"service", "operation", "from", "to"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		operationsTotal,
		operationDuration,
		generationDuration,
		autosaveFlushTotal,
		breakerStateTotal,
	)

	return &HTTPServerMetrics{
		service:            service,
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		operationsTotal:    operationsTotal,
		operationDuration:  operationDuration,
		generationDuration: generationDuration,
		autosaveFlushTotal: autosaveFlushTotal,
		breakerStateTotal:  breakerStateTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded to the routes the router
// actually serves.
func normalizePath(path string) string {
	switch path {
	case "/", "/preview", "/healthz", "/metrics",
		"/v1/workspace",
		"/v1/workspace/generate",
		"/v1/workspace/refine",
		"/v1/workspace/upload",
		"/v1/workspace/clone",
		"/v1/workspace/clear",
		"/v1/workspace/document",
		"/v1/workspace/format",
		"/v1/workspace/instruction",
		"/v1/workspace/theme",
		"/v1/workspace/events":
		return path
	default:
		return "other"
	}
}

func (m *HTTPServerMetrics) ObserveOperation(operation, outcome string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.operationsTotal.WithLabelValues(m.service, operation, outcome).Inc()
	m.operationDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveAutosaveFlush(err error) {
	m.autosaveFlushTotal.WithLabelValues(m.service, statusOf(err)).Inc()
}

func (m *HTTPServerMetrics) ObserveGeneration(provider, operation string, duration time.Duration, err error) {
	m.generationDuration.WithLabelValues(m.service, provider, operation, statusOf(err)).Observe(duration.Seconds())
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *HTTPServerMetrics) ObserveBreakerState(operation, from, to string) {
	m.breakerStateTotal.WithLabelValues(m.service, operation, from, to).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

// Hijack lets the websocket upgrade pass through the middleware.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}
