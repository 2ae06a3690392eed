package scorecache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricCacheHits        = "match_score_cache_hits_total"
	MetricCacheMisses      = "match_score_cache_misses_total"
	MetricStaleReads       = "match_score_stale_reads_total"
	MetricUpserts          = "match_score_upserts_total"
	MetricInvalidations    = "match_score_invalidations_total"
	MetricQueuePendingSize = "match_recompute_queue_pending"
)

// Metrics contains Prometheus metrics for the score cache. Collectors are
// not registered on construction; call Register with a registry.
type Metrics struct {
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	staleReads    prometheus.Counter
	upserts       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	queuePending  prometheus.Gauge
}

// NewMetrics creates all score cache collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheHits,
			Help: "Total number of fresh cached score reads",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheMisses,
			Help: "Total number of score reads with no cached record",
		}),
		staleReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStaleReads,
			Help: "Total number of score reads that found a stale record",
		}),
		upserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUpserts,
			Help: "Total number of score upserts by outcome",
		}, []string{"outcome"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricInvalidations,
			Help: "Total number of score invalidations by source",
		}, []string{"source"}),
		queuePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricQueuePendingSize,
			Help: "Number of pending recomputation queue entries observed by the last sweep",
		}),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.cacheHits,
		m.cacheMisses,
		m.staleReads,
		m.upserts,
		m.invalidations,
		m.queuePending,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncCacheHit increments the fresh-read counter.
func (m *Metrics) IncCacheHit() { m.cacheHits.Inc() }

// IncCacheMiss increments the missing-record counter.
func (m *Metrics) IncCacheMiss() { m.cacheMisses.Inc() }

// IncStaleRead increments the stale-record counter.
func (m *Metrics) IncStaleRead() { m.staleReads.Inc() }

// IncUpsert counts an upsert by outcome ("insert" or "update").
func (m *Metrics) IncUpsert(outcome string) { m.upserts.WithLabelValues(outcome).Inc() }

// IncInvalidation counts an invalidation by source ("student" or "listing").
func (m *Metrics) IncInvalidation(source string) { m.invalidations.WithLabelValues(source).Inc() }

// SetQueuePending records the observed pending queue depth.
func (m *Metrics) SetQueuePending(count float64) { m.queuePending.Set(count) }
