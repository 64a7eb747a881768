package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	rebuildTotal    *prometheus.CounterVec
	rebuildDuration *prometheus.HistogramVec
	rebuildInFlight prometheus.Gauge
	documentsTotal  *prometheus.CounterVec
	chunksIndexed   *prometheus.HistogramVec
	embedFallbacks  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	rebuildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "rebuild_total",
			Help:      "Total corpus rebuild passes by status.",
		},
		[]string{"service", "status"},
	)
	rebuildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "rebuild_duration_seconds",
			Help:      "Corpus rebuild duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	rebuildInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "rebuild_in_flight",
			Help:      "Number of in-flight corpus rebuild passes.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Total documents handled by rebuild passes, by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chunksIndexed := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "chunks_indexed",
			Help:      "Distribution of chunks indexed per rebuild pass.",
			Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000, 10000},
		},
		[]string{"service"},
	)
	embedFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "corpus",
			Subsystem: "worker",
			Name:      "embed_fallbacks_total",
			Help:      "Total chunks whose embedding failed after per-item retry.",
		},
		[]string{"service"},
	)

	registry.MustRegister(rebuildTotal, rebuildDuration, rebuildInFlight, documentsTotal, chunksIndexed, embedFallbacks)

	return &WorkerMetrics{
		registry:        registry,
		rebuildTotal:    rebuildTotal,
		rebuildDuration: rebuildDuration,
		rebuildInFlight: rebuildInFlight,
		documentsTotal:  documentsTotal,
		chunksIndexed:   chunksIndexed,
		embedFallbacks:  embedFallbacks,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRebuild() {
	m.rebuildInFlight.Inc()
}

func (m *WorkerMetrics) FinishRebuild(service string, duration time.Duration, err error) {
	m.rebuildInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.rebuildTotal.WithLabelValues(service, status).Inc()
	m.rebuildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveRebuildReport(service string, documentsOK, documentsFailed, chunksIndexed, embedFallbacks int) {
	if documentsOK > 0 {
		m.documentsTotal.WithLabelValues(service, "indexed").Add(float64(documentsOK))
	}
	if documentsFailed > 0 {
		m.documentsTotal.WithLabelValues(service, "failed").Add(float64(documentsFailed))
	}
	m.chunksIndexed.WithLabelValues(service).Observe(float64(chunksIndexed))
	if embedFallbacks > 0 {
		m.embedFallbacks.WithLabelValues(service).Add(float64(embedFallbacks))
	}
}
