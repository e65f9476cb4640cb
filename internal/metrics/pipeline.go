package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "projector"

// Pipeline Prometheus metrics.
var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"algorithm", "stage"},
	)

	ProjectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "projections_total",
			Help:      "Total pipeline runs by outcome",
		},
		[]string{"algorithm", "status"},
	)

	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Projection result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	BuildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build metadata, always 1",
		},
		[]string{"version", "commit"},
	)
)

var registerOnce sync.Once

// RegisterPipelineMetrics registers pipeline metrics. Safe to call more than once.
func RegisterPipelineMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(StageDuration)
		prometheus.MustRegister(ProjectionsTotal)
		prometheus.MustRegister(ResultCacheTotal)
		prometheus.MustRegister(BuildInfo)
	})
}
