package bandit

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BanditArmSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandit_arm_selections_total",
			Help: "Count of arms selected for incremental budget, by policy.",
		},
		[]string{"policy"},
	)

	BanditColdArmsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bandit_cold_arms_selected_total",
			Help: "Count of never-pulled arms selected through the cold-start bonus.",
		},
	)
)

func init() {
	prometheus.MustRegister(BanditArmSelectionsTotal, BanditColdArmsTotal)
}
