// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/shirabe/internal/models"
)

// Metrics holds the engine's Prometheus collectors on a private registry.
// All Record methods are safe to call on a nil receiver, so components can
// run uninstrumented.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal    prometheus.Counter
	queryDuration   prometheus.Histogram
	retrievedChunks prometheus.Histogram
	variantTimeouts prometheus.Counter
	ingestChunks    *prometheus.CounterVec
	keywordRebuilds prometheus.Counter
	indexedChunks   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	queriesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shirabe",
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Total retrieval queries processed.",
		},
	)
	queryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shirabe",
			Subsystem: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "Retrieval query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	retrievedChunks := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "shirabe",
			Subsystem: "retrieval",
			Name:      "retrieved_chunks",
			Help:      "Distribution of result counts per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)
	variantTimeouts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shirabe",
			Subsystem: "retrieval",
			Name:      "variant_timeouts_total",
			Help:      "Total variant searches that timed out and degraded to empty.",
		},
	)
	ingestChunks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shirabe",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Total ingested chunks by outcome.",
		},
		[]string{"outcome"},
	)
	keywordRebuilds := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shirabe",
			Subsystem: "index",
			Name:      "keyword_rebuilds_total",
			Help:      "Total keyword index rebuilds.",
		},
	)
	indexedChunks := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "shirabe",
			Subsystem: "index",
			Name:      "indexed_chunks",
			Help:      "Number of chunks in the corpus store.",
		},
	)

	registry.MustRegister(
		queriesTotal,
		queryDuration,
		retrievedChunks,
		variantTimeouts,
		ingestChunks,
		keywordRebuilds,
		indexedChunks,
	)

	return &Metrics{
		registry:        registry,
		queriesTotal:    queriesTotal,
		queryDuration:   queryDuration,
		retrievedChunks: retrievedChunks,
		variantTimeouts: variantTimeouts,
		ingestChunks:    ingestChunks,
		keywordRebuilds: keywordRebuilds,
		indexedChunks:   indexedChunks,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordQuery observes one completed retrieval.
func (m *Metrics) RecordQuery(duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.queriesTotal.Inc()
	m.queryDuration.Observe(duration.Seconds())
	m.retrievedChunks.Observe(float64(resultCount))
}

// RecordVariantTimeout counts one variant search that degraded to empty.
func (m *Metrics) RecordVariantTimeout() {
	if m == nil {
		return
	}
	m.variantTimeouts.Inc()
}

// RecordIngest counts one ingest batch by outcome.
func (m *Metrics) RecordIngest(stats models.IngestStats) {
	if m == nil {
		return
	}
	m.ingestChunks.WithLabelValues("embedded").Add(float64(stats.Embedded))
	m.ingestChunks.WithLabelValues("upserted").Add(float64(stats.Upserted))
	m.ingestChunks.WithLabelValues("skipped").Add(float64(stats.Skipped))
}

// RecordKeywordRebuild counts one keyword index rebuild.
func (m *Metrics) RecordKeywordRebuild() {
	if m == nil {
		return
	}
	m.keywordRebuilds.Inc()
}

// SetIndexedChunks records the corpus store chunk count.
func (m *Metrics) SetIndexedChunks(count int64) {
	if m == nil {
		return
	}
	m.indexedChunks.Set(float64(count))
}
