package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	memoryOperationsTotal   *prometheus.CounterVec
	memoryOperationDuration *prometheus.HistogramVec

	oracleDecisionsTotal *prometheus.CounterVec

	reconcilePairsTotal  prometheus.Counter
	reconcileMergesTotal prometheus.Counter

	embeddingCacheTotal *prometheus.CounterVec

	maintenanceRunsTotal   *prometheus.CounterVec
	maintenanceRunDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			memoryOperationsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recall_memory_operations_total",
					Help: "Total memory manager operations by operation and outcome.",
				},
				[]string{"operation", "outcome"},
			),
			memoryOperationDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "recall_memory_operation_duration_seconds",
					Help:    "Memory manager operation duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
			oracleDecisionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recall_oracle_decisions_total",
					Help: "Total oracle decisions by kind and outcome.",
				},
				[]string{"kind", "outcome"},
			),
			reconcilePairsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "recall_reconcile_pairs_total",
					Help: "Total memory pairs adjudicated by reconciliation sweeps.",
				},
			),
			reconcileMergesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "recall_reconcile_merges_total",
					Help: "Total memories absorbed by reconciliation sweeps.",
				},
			),
			embeddingCacheTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recall_embedding_cache_total",
					Help: "Embedding cache lookups by result (hit, miss).",
				},
				[]string{"result"},
			),
			maintenanceRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "recall_maintenance_runs_total",
					Help: "Total maintenance job runs by job and status.",
				},
				[]string{"job", "status"},
			),
			maintenanceRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "recall_maintenance_run_duration_seconds",
					Help:    "Maintenance job run duration in seconds by job.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"job"},
			),
		}

		prometheus.MustRegister(
			m.memoryOperationsTotal,
			m.memoryOperationDuration,
			m.oracleDecisionsTotal,
			m.reconcilePairsTotal,
			m.reconcileMergesTotal,
			m.embeddingCacheTotal,
			m.maintenanceRunsTotal,
			m.maintenanceRunDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordMemoryOperation(operation, outcome string, duration time.Duration) {
	m := getMetrics()
	m.memoryOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.memoryOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordOracleDecision(kind, outcome string) {
	m := getMetrics()
	m.oracleDecisionsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordReconcile(pairs, merged int) {
	m := getMetrics()
	m.reconcilePairsTotal.Add(float64(pairs))
	m.reconcileMergesTotal.Add(float64(merged))
}

func RecordEmbeddingCache(hit bool) {
	m := getMetrics()
	result := "miss"
	if hit {
		result = "hit"
	}
	m.embeddingCacheTotal.WithLabelValues(result).Inc()
}

func RecordMaintenanceRun(job string, duration time.Duration, status string) {
	m := getMetrics()
	m.maintenanceRunsTotal.WithLabelValues(job, status).Inc()
	m.maintenanceRunDuration.WithLabelValues(job).Observe(duration.Seconds())
}
