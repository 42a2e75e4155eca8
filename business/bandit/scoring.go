package bandit

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	PolicyThompson  = "thompson"
	PolicyUCB1      = "ucb1"
	PolicyColdStart = "cold_start"
)

// thompsonScore draws from the Beta(successes+1, failures+1) posterior.
func thompsonScore(successes, failures int64, src rand.Source) float64 {
	b := distuv.Beta{
		Alpha: float64(successes) + 1,
		Beta:  float64(failures) + 1,
		Src:   src,
	}
	return b.Rand()
}

// ucb1Score = mean + sqrt(2 ln N / n), with N floored at 2 so a single
// pull still leaves a positive bonus.
func ucb1Score(successes, pulls, totalPulls int64) (mean, bonus float64) {
	if pulls <= 0 {
		return 0, math.Inf(1)
	}
	mean = float64(successes) / float64(pulls)
	n := float64(max(totalPulls, 2))
	bonus = math.Sqrt(2 * math.Log(n) / float64(pulls))
	return mean, bonus
}
