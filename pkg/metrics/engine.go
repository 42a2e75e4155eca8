package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AttributionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attribution_events_total",
		Help: "Attribution events recorded, by type",
	}, []string{"event_type"})

	OrphanConversions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "attribution_orphan_conversions_total",
		Help: "Conversions recorded without a prior visit for their code",
	})

	ReinvestmentCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reinvestment_cycles_total",
		Help: "Reinvestment cycles by final status",
	}, []string{"status"})

	GeoRecomputes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geo_allocation_recomputes_total",
		Help: "Geo allocation recomputations by outcome",
	}, []string{"outcome"})

	PlatformCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_platform_calls_total",
		Help: "Ad platform calls by operation and outcome, counting each attempt",
	}, []string{"operation", "outcome"})

	OptimizeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "optimize_requests_total",
		Help: "Manual optimization triggers by outcome",
	}, []string{"outcome"})

	SchedulerTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reinvestment_tick_duration_seconds",
		Help:    "Time spent evaluating all active campaigns in one tick",
		Buckets: prometheus.DefBuckets,
	})
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			AttributionEvents,
			OrphanConversions,
			ReinvestmentCycles,
			GeoRecomputes,
			PlatformCalls,
			OptimizeRequests,
			SchedulerTickDuration,
		)
	})
}
