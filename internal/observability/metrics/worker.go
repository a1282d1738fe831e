package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobTotal     *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobInFlight  prometheus.Gauge
	queueLag     *prometheus.HistogramVec
	chunksStored *prometheus.HistogramVec
	embedBatches *prometheus.CounterVec
	crawlErrors  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "ingest_jobs_total",
			Help:      "Total processed ingestion jobs by status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "ingest_job_duration_seconds",
			Help:      "Ingestion job duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	jobInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "ingest_jobs_in_flight",
			Help:      "Number of in-flight ingestion jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job enqueue and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	chunksStored := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "chunks_stored",
			Help:      "Chunks stored per successfully ingested document.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		},
		[]string{"service"},
	)
	embedBatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "embed_batches_total",
			Help:      "Embedding batch calls by status.",
		},
		[]string{"service", "status"},
	)
	crawlErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "worker",
			Name:      "crawl_errors_total",
			Help:      "Failed crawl fetches.",
		},
		[]string{"service"},
	)

	registry.MustRegister(jobTotal, jobDuration, jobInFlight, queueLag, chunksStored, embedBatches, crawlErrors)

	return &WorkerMetrics{
		registry:     registry,
		jobTotal:     jobTotal,
		jobDuration:  jobDuration,
		jobInFlight:  jobInFlight,
		queueLag:     queueLag,
		chunksStored: chunksStored,
		embedBatches: embedBatches,
		crawlErrors:  crawlErrors,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob(service string, duration time.Duration, skipped bool, err error) {
	m.jobInFlight.Dec()

	status := "success"
	switch {
	case err != nil:
		status = "error"
	case skipped:
		status = "skipped"
	}

	m.jobTotal.WithLabelValues(service, status).Inc()
	m.jobDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveChunksStored(service string, count int) {
	if count <= 0 {
		return
	}
	m.chunksStored.WithLabelValues(service).Observe(float64(count))
}

func (m *WorkerMetrics) RecordEmbedBatch(service string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.embedBatches.WithLabelValues(service, status).Inc()
}

func (m *WorkerMetrics) RecordCrawlError(service string) {
	m.crawlErrors.WithLabelValues(service).Inc()
}
