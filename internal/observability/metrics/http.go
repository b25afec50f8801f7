package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/answer-engine/internal/core/domain"
)

// HTTPServerMetrics carries the API-side registry: generic HTTP counters plus
// pipeline telemetry (per-stage silent-degrade failures, fused result counts,
// search durations). It implements the pipeline's StageObserver.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal         *prometheus.CounterVec
	searchDuration      *prometheus.HistogramVec
	stageFailureTotal   *prometheus.CounterVec
	fusedResults        *prometheus.HistogramVec
	externalKnowledge   *prometheus.CounterVec
	retrievalCandidates *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aeng",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aeng",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aeng",
			Subsystem: "pipeline",
			Name:      "searches_total",
			Help:      "Total completed search pipeline runs.",
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "pipeline",
			Name:      "search_duration_seconds",
			Help:      "End-to-end pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	stageFailureTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aeng",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total per-stage failures, including silently degraded ones.",
		},
		[]string{"service", "stage"},
	)
	fusedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "pipeline",
			Name:      "fused_results",
			Help:      "Distribution of fused results per completed search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	externalKnowledge := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aeng",
			Subsystem: "pipeline",
			Name:      "external_knowledge_total",
			Help:      "Total answers flagged as supplemented with external knowledge.",
		},
		[]string{"service"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aeng",
			Subsystem: "pipeline",
			Name:      "retrieval_candidates",
			Help:      "Distribution of raw candidates per origin per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "origin"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		stageFailureTotal,
		fusedResults,
		externalKnowledge,
		retrievalCandidates,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		service:             service,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		searchTotal:         searchTotal,
		searchDuration:      searchDuration,
		stageFailureTotal:   stageFailureTotal,
		fusedResults:        fusedResults,
		externalKnowledge:   externalKnowledge,
		retrievalCandidates: retrievalCandidates,
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

// StageFailure implements the pipeline observer contract.
func (m *HTTPServerMetrics) StageFailure(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.stageFailureTotal.WithLabelValues(m.service, stage).Inc()
}

// PipelineCompleted implements the pipeline observer contract.
func (m *HTTPServerMetrics) PipelineCompleted(counts domain.SourceCounts, usedExternalKnowledge bool, duration time.Duration) {
	m.searchTotal.WithLabelValues(m.service).Inc()
	m.searchDuration.WithLabelValues(m.service).Observe(duration.Seconds())
	m.fusedResults.WithLabelValues(m.service).Observe(float64(counts.Total))
	m.retrievalCandidates.WithLabelValues(m.service, string(domain.OriginWeb)).Observe(float64(counts.Web))
	m.retrievalCandidates.WithLabelValues(m.service, string(domain.OriginIndexed)).Observe(float64(counts.Indexed))
	if usedExternalKnowledge {
		m.externalKnowledge.WithLabelValues(m.service).Inc()
	}
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/searches"):
		return "/v1/searches"
	default:
		return path
	}
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

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
