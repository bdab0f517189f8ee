package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_recompute_total",
		Help: "Count recomputations by trigger reason and outcome",
	}, []string{"reason", "outcome"})

	recomputeAllDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_recompute_all_duration_seconds",
		Help:    "Time to recompute every category count",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
	})

	recomputeAllUpdated = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_recompute_all_updated_categories",
		Help: "Categories whose counts changed in the last full recompute",
	})

	cycleDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_cycle_detected_total",
		Help: "Cycles found in stored category data, by the walk that found them",
	}, []string{"walk"})

	structuralMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_structural_mutations_total",
		Help: "Structural category mutations by operation and outcome",
	}, []string{"op", "outcome"})

	treeCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_tree_cache_total",
		Help: "Tree cache lookups by result",
	}, []string{"result"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
