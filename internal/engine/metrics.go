package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricComputeTotal    = "match_compute_total"
	MetricComputeErrors   = "match_compute_errors_total"
	MetricComputeDuration = "match_compute_duration_seconds"
	MetricBatchComputed   = "match_batch_computed_pairs"
	MetricSweepTotal      = "match_sweep_cycles_total"
	MetricSweepDuration   = "match_sweep_duration_seconds"
)

// Metrics contains Prometheus metrics for the match engine. Collectors are
// not registered on construction; call Register with a registry.
type Metrics struct {
	computeTotal    prometheus.Counter
	computeErrors   *prometheus.CounterVec
	computeDuration prometheus.Histogram
	batchComputed   prometheus.Histogram
	sweepTotal      *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
}

// NewMetrics creates all engine collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		computeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricComputeTotal,
			Help: "Total number of composite score computations",
		}),
		computeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricComputeErrors,
			Help: "Total number of failed score computations by stage",
		}, []string{"stage"}),
		computeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricComputeDuration,
			Help:    "Duration of single-pair score computations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		batchComputed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricBatchComputed,
			Help:    "Number of pairs computed per batch call",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20},
		}),
		sweepTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSweepTotal,
			Help: "Total number of recomputation sweep cycles by status",
		}, []string{"status"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSweepDuration,
			Help:    "Duration of recomputation sweep cycles in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.computeTotal,
		m.computeErrors,
		m.computeDuration,
		m.batchComputed,
		m.sweepTotal,
		m.sweepDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncCompute counts a completed computation.
func (m *Metrics) IncCompute() { m.computeTotal.Inc() }

// IncComputeError counts a failed computation by stage ("load", "persist").
func (m *Metrics) IncComputeError(stage string) { m.computeErrors.WithLabelValues(stage).Inc() }

// ObserveComputeDuration records a single-pair compute time.
func (m *Metrics) ObserveComputeDuration(seconds float64) { m.computeDuration.Observe(seconds) }

// ObserveBatchComputed records how many pairs a batch call computed.
func (m *Metrics) ObserveBatchComputed(count float64) { m.batchComputed.Observe(count) }

// IncSweep counts a sweep cycle by status ("success" or "failure").
func (m *Metrics) IncSweep(status string) { m.sweepTotal.WithLabelValues(status).Inc() }

// ObserveSweepDuration records a sweep cycle time.
func (m *Metrics) ObserveSweepDuration(seconds float64) { m.sweepDuration.Observe(seconds) }
