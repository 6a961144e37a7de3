package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	examSubmissionsTotal  *prometheus.CounterVec
	resultsPublishedTotal *prometheus.CounterVec
	releaseSweepsTotal    prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "exam_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		examSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Exam submissions processed, labelled by outcome.",
		}, []string{"outcome"})

		resultsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_results_published_total",
			Help: "Results made visible to students, labelled by trigger.",
		}, []string{"trigger"})

		releaseSweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "exam_release_sweeps_total",
			Help: "Auto-release sweep passes executed.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			examSubmissionsTotal,
			resultsPublishedTotal,
			releaseSweepsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ExamSubmissionsTotal exposes the submission outcome counter.
func ExamSubmissionsTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return examSubmissionsTotal
}

// ResultsPublishedTotal exposes the published result counter.
func ResultsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return resultsPublishedTotal
}

// ReleaseSweepsTotal exposes the sweep counter.
func ReleaseSweepsTotal() prometheus.Counter {
	RegisterMetrics()
	return releaseSweepsTotal
}
