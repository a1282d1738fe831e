package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalDuration   *prometheus.HistogramVec
	retrievalCandidates *prometheus.HistogramVec
	fusedResults        *prometheus.HistogramVec
	rerankApplied       *prometheus.CounterVec

	completionCalls   *prometheus.HistogramVec
	toolRounds        *prometheus.HistogramVec
	toolCallsTotal    *prometheus.CounterVec
	streamEventsTotal *prometheus.CounterVec
	askTotal          *prometheus.CounterVec
	askDuration       *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nztax",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Hybrid search duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievalCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Candidates returned per retrieval leg.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "leg"},
	)
	fusedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "retrieval",
			Name:      "fused_results",
			Help:      "Results remaining after rank fusion and truncation.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	rerankApplied := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "retrieval",
			Name:      "rerank_total",
			Help:      "Rerank stage outcomes.",
		},
		[]string{"service", "outcome"},
	)
	completionCalls := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "orchestrator",
			Name:      "completion_calls",
			Help:      "Completion calls per answered question.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	toolRounds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "orchestrator",
			Name:      "tool_rounds",
			Help:      "Tool-call rounds per answered question.",
			Buckets:   []float64{0, 1, 2, 3},
		},
		[]string{"service"},
	)
	toolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "orchestrator",
			Name:      "tool_calls_total",
			Help:      "Dispatched tool calls by tool and status.",
		},
		[]string{"service", "tool", "status"},
	)
	streamEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "orchestrator",
			Name:      "stream_events_total",
			Help:      "Emitted stream events by type.",
		},
		[]string{"service", "type"},
	)
	askTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nztax",
			Subsystem: "orchestrator",
			Name:      "ask_total",
			Help:      "Answered questions by status.",
		},
		[]string{"service", "endpoint", "status"},
	)
	askDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nztax",
			Subsystem: "orchestrator",
			Name:      "ask_duration_seconds",
			Help:      "End-to-end question answering duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalDuration,
		retrievalCandidates,
		fusedResults,
		rerankApplied,
		completionCalls,
		toolRounds,
		toolCallsTotal,
		streamEventsTotal,
		askTotal,
		askDuration,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		retrievalDuration:   retrievalDuration,
		retrievalCandidates: retrievalCandidates,
		fusedResults:        fusedResults,
		rerankApplied:       rerankApplied,
		completionCalls:     completionCalls,
		toolRounds:          toolRounds,
		toolCallsTotal:      toolCallsTotal,
		streamEventsTotal:   streamEventsTotal,
		askTotal:            askTotal,
		askDuration:         askDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordRetrieval(service string, semantic, lexical, fused int, duration time.Duration) {
	m.retrievalDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.retrievalCandidates.WithLabelValues(service, "semantic").Observe(float64(semantic))
	m.retrievalCandidates.WithLabelValues(service, "lexical").Observe(float64(lexical))
	m.fusedResults.WithLabelValues(service).Observe(float64(fused))
}

func (m *HTTPServerMetrics) RecordRerank(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.rerankApplied.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordAsk(service, endpoint, status string, completions, rounds int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.askTotal.WithLabelValues(service, endpoint, status).Inc()
	m.askDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.completionCalls.WithLabelValues(service).Observe(float64(completions))
	m.toolRounds.WithLabelValues(service).Observe(float64(rounds))
}

func (m *HTTPServerMetrics) RecordToolCall(service, tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.toolCallsTotal.WithLabelValues(service, tool, status).Inc()
}

func (m *HTTPServerMetrics) RecordStreamEvent(service, eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.streamEventsTotal.WithLabelValues(service, eventType).Inc()
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
