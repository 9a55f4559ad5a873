package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts public quote calculations by outcome.
	QuoteTotal *prometheus.CounterVec
	// QuoteDuration records time spent resolving and calculating a quote in milliseconds.
	QuoteDuration *prometheus.HistogramVec
	// FormulaEvaluationsTotal counts formula evaluations by outcome.
	FormulaEvaluationsTotal *prometheus.CounterVec
	// TemplateMutationsTotal counts admin template mutations by action.
	TemplateMutationsTotal *prometheus.CounterVec
	// SnapshotCacheTotal counts template snapshot cache lookups by result.
	SnapshotCacheTotal *prometheus.CounterVec
	// CollisionGroups tracks the number of collision groups found per shop.
	CollisionGroups *prometheus.GaugeVec
	// CollisionScanTotal counts collision scan runs by outcome.
	CollisionScanTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of quote calculations by outcome.",
		}, []string{"result"})
		QuoteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Quote resolution and calculation latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"result"})
		FormulaEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formula_evaluations_total",
			Help:      "Count of pricing formula evaluations by outcome.",
		}, []string{"result"})
		TemplateMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_mutations_total",
			Help:      "Count of admin template mutations by action.",
		}, []string{"action"})
		SnapshotCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_total",
			Help:      "Template snapshot cache lookups by result.",
		}, []string{"result"})
		CollisionGroups = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collision_groups",
			Help:      "Number of scope collision groups detected in the last scan.",
		}, []string{"shop"})
		CollisionScanTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collision_scan_total",
			Help:      "Count of collision scan runs by outcome.",
		}, []string{"result"})

		mustRegisterCollector(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				QuoteDuration = v
			}
		})
		mustRegisterCollector(reg, FormulaEvaluationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FormulaEvaluationsTotal = v
			}
		})
		mustRegisterCollector(reg, TemplateMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				TemplateMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, SnapshotCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SnapshotCacheTotal = v
			}
		})
		mustRegisterCollector(reg, CollisionGroups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.GaugeVec); ok {
				CollisionGroups = v
			}
		})
		mustRegisterCollector(reg, CollisionScanTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CollisionScanTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
