package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	archiveTotal    *prometheus.CounterVec
	archiveDuration *prometheus.HistogramVec
	archiveInFlight prometheus.Gauge
	publishLag      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	archiveTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devgen",
			Subsystem: "worker",
			Name:      "revisions_archived_total",
			Help:      "Total archived revisions by status.",
		},
		[]string{"service", "status"},
	)
	archiveDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "devgen",
			Subsystem: "worker",
			Name:      "archive_duration_seconds",
			Help:      "Revision archive duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	archiveInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devgen",
			Subsystem: "worker",
			Name:      "archive_in_flight",
			Help:      "Number of revisions being archived.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	publishLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devgen",
			Subsystem: "worker",
			Name:      "revision_lag_seconds",
			Help:      "Delay between a revision being accepted and archived.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(archiveTotal, archiveDuration, archiveInFlight, publishLag)

	return &WorkerMetrics{
		service:         service,
		registry:        registry,
		archiveTotal:    archiveTotal,
		archiveDuration: archiveDuration,
		archiveInFlight: archiveInFlight,
		publishLag:      publishLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartArchive() {
	m.archiveInFlight.Inc()
}

func (m *WorkerMetrics) FinishArchive(duration time.Duration, err error) {
	m.archiveInFlight.Dec()

	status := statusOf(err)
	m.archiveTotal.WithLabelValues(m.service, status).Inc()
	m.archiveDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveRevisionLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.publishLag.Observe(lag.Seconds())
}
