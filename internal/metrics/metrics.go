// Package metrics exports import engine events as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/JonMunkholm/PostImport/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "postimport"

// Metrics implements core.Metrics on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	RowsProcessed  *prometheus.CounterVec
	AssetsResolved *prometheus.CounterVec
	ChunksFinished *prometheus.CounterVec
	ChunkDuration  prometheus.Histogram
}

// New registers all import metrics plus the Go and process collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RowsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_processed_total",
			Help:      "CSV rows processed, by outcome and skip reason",
		}, []string{"outcome", "reason"}),
		AssetsResolved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_resolved_total",
			Help:      "Asset URL resolutions, by result (fetched, reused or a fetch error kind)",
		}, []string{"result"}),
		ChunksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_finished_total",
			Help:      "Import chunks finished, by the phase they left the run in",
		}, []string{"phase"}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_duration_seconds",
			Help:      "Wall-clock time of one import chunk",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
	}
}

func (m *Metrics) RowProcessed(kind core.OutcomeKind, reason core.SkipReason) {
	m.RowsProcessed.WithLabelValues(string(kind), string(reason)).Inc()
}

func (m *Metrics) AssetResolved(result string) {
	m.AssetsResolved.WithLabelValues(result).Inc()
}

func (m *Metrics) ChunkFinished(phase core.Phase, elapsed time.Duration) {
	m.ChunksFinished.WithLabelValues(string(phase)).Inc()
	m.ChunkDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
