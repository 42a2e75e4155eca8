package geo

import (
	"math"
	"time"

	"adBudgetEngine/domain"

	"gonum.org/v1/gonum/stat"
)

// Weights blend the z-normalized performance signals.
type Weights struct {
	ROI float64
	CTR float64
	CPV float64
}

func DefaultWeights() Weights {
	return Weights{ROI: 0.5, CTR: 0.3, CPV: 0.2}
}

// MetricsStale reports whether the freshest metrics row is older than
// staleAfter. Empty input is not stale, it is simply absent.
func MetricsStale(metrics []domain.GeoMetrics, now time.Time, staleAfter time.Duration) bool {
	if len(metrics) == 0 || staleAfter <= 0 {
		return false
	}
	var newest time.Time
	for _, m := range metrics {
		if m.WindowEnd.After(newest) {
			newest = m.WindowEnd
		}
	}
	if newest.IsZero() {
		return false
	}
	return now.Sub(newest) > staleAfter
}

// scores returns exp(w·z) per geo. Geos without signal sit at the mean
// (z = 0). With no usable metrics every geo scores 1.
func scores(geos []string, metrics []domain.GeoMetrics, w Weights) map[string]float64 {
	byGeo := make(map[string]domain.GeoMetrics, len(metrics))
	for _, m := range metrics {
		if m.HasSignal() {
			byGeo[m.Geo] = m
		}
	}

	out := make(map[string]float64, len(geos))
	if len(byGeo) == 0 {
		for _, g := range geos {
			out[g] = 1
		}
		return out
	}

	var roi, ctr, inv []float64
	var signal []string
	for _, g := range geos {
		m, ok := byGeo[g]
		if !ok {
			continue
		}
		signal = append(signal, g)
		roi = append(roi, m.ROI())
		ctr = append(ctr, m.CTR())
		inv = append(inv, inverse(m.CPV()))
	}

	zROI, zCTR, zInv := zscores(roi), zscores(ctr), zscores(inv)
	z := make(map[string]float64, len(signal))
	for i, g := range signal {
		z[g] = w.ROI*zROI[i] + w.CTR*zCTR[i] + w.CPV*zInv[i]
	}

	for _, g := range geos {
		out[g] = math.Exp(z[g])
	}
	return out
}

func inverse(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return 1 / v
}

// zscores uses the population standard deviation; zero spread yields zeros.
func zscores(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) < 2 {
		return out
	}

	mean, std := stat.PopMeanStdDev(xs, nil)
	if std < 1e-12 {
		return out
	}

	for i, x := range xs {
		out[i] = stat.StdScore(x, mean, std)
	}
	return out
}
