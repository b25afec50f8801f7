package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics carries the ingest worker registry.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	ingestTotal      *prometheus.CounterVec
	ingestDuration   *prometheus.HistogramVec
	ingestInFlight   prometheus.Gauge
	ingestCandidates *prometheus.HistogramVec
	queueLag         *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aeng",
			Subsystem: "worker",
			Name:      "candidate_ingest_total",
			Help:      "Total processed candidate batches by status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "worker",
			Name:      "candidate_ingest_duration_seconds",
			Help:      "Candidate batch ingest duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aeng",
			Subsystem: "worker",
			Name:      "candidate_ingest_in_flight",
			Help:      "Number of in-flight candidate batch ingests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ingestCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "worker",
			Name:      "candidate_batch_size",
			Help:      "Distribution of candidates per ingested batch.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between candidate discovery and ingest start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(ingestTotal, ingestDuration, ingestInFlight, ingestCandidates, queueLag)

	return &WorkerMetrics{
		registry:         registry,
		service:          service,
		ingestTotal:      ingestTotal,
		ingestDuration:   ingestDuration,
		ingestInFlight:   ingestInFlight,
		ingestCandidates: ingestCandidates,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch(size int) {
	m.ingestInFlight.Inc()
	m.ingestCandidates.WithLabelValues(m.service).Observe(float64(size))
}

func (m *WorkerMetrics) FinishBatch(duration time.Duration, err error) {
	m.ingestInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.ingestTotal.WithLabelValues(m.service, status).Inc()
	m.ingestDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}
