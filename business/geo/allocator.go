package geo

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"adBudgetEngine/domain"
)

const eps = 1e-9

type Options struct {
	Weights    Weights
	Now        time.Time
	StaleAfter time.Duration
}

type share struct {
	geo         string
	constrained bool
	floor       float64
	ceiling     float64
	score       float64
	fraction    float64
}

// Allocate splits a campaign's daily budget across its geographies.
//
//  1. every constrained geo starts at its floor
//  2. the remainder R = 1 - Σfloor is split by performance score
//  3. constrained shares are clipped into [floor, ceiling]
//  4. unconstrained geos take what is left, proportionally to score
//
// Stale or missing metrics degrade to equal scores. The result is sorted by
// geo and deterministic for identical input.
func Allocate(campaign domain.Campaign, constraints []domain.GeoConstraint, metrics []domain.GeoMetrics, opts Options) ([]domain.GeoAllocation, error) {
	shares, err := buildShares(campaign, constraints)
	if err != nil {
		return nil, err
	}

	if err := checkFeasible(shares); err != nil {
		return nil, err
	}

	geos := make([]string, len(shares))
	for i, s := range shares {
		geos[i] = s.geo
	}

	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	if MetricsStale(metrics, opts.Now, opts.StaleAfter) {
		metrics = nil
	}
	sc := scores(geos, metrics, opts.Weights)
	for i := range shares {
		shares[i].score = sc[shares[i].geo]
	}

	distribute(shares)

	return toAllocations(campaign, shares, opts.Now), nil
}

func buildShares(campaign domain.Campaign, constraints []domain.GeoConstraint) ([]share, error) {
	byGeo := map[string]*share{}

	for _, c := range constraints {
		g := normalizeGeo(c.Geo)
		if g == "" {
			return nil, fmt.Errorf("%w: empty geo in constraint", domain.ErrInvalidInput)
		}
		if c.Floor < 0 || c.Ceiling > 1+eps {
			return nil, domain.ConstraintViolationf("%s bounds [%.4f, %.4f] outside [0, 1]", g, c.Floor, c.Ceiling)
		}
		if c.Floor > c.Ceiling+eps {
			return nil, domain.ConstraintViolationf("%s floor %.4f exceeds ceiling %.4f", g, c.Floor, c.Ceiling)
		}
		if _, dup := byGeo[g]; dup {
			return nil, domain.ConstraintViolationf("duplicate constraint for %s", g)
		}
		byGeo[g] = &share{geo: g, constrained: true, floor: c.Floor, ceiling: c.Ceiling}
	}

	for _, raw := range campaign.Geos {
		g := normalizeGeo(raw)
		if g == "" {
			continue
		}
		if _, ok := byGeo[g]; !ok {
			byGeo[g] = &share{geo: g, ceiling: 1}
		}
	}

	if len(byGeo) == 0 {
		return nil, fmt.Errorf("%w: campaign %s has no geographies", domain.ErrInvalidInput, campaign.ID)
	}

	out := make([]share, 0, len(byGeo))
	for _, s := range byGeo {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].geo < out[j].geo })
	return out, nil
}

func checkFeasible(shares []share) error {
	floors, ceilings := 0.0, 0.0
	unconstrained := 0
	for _, s := range shares {
		if !s.constrained {
			unconstrained++
			continue
		}
		floors += s.floor
		ceilings += s.ceiling
	}

	if floors > 1+eps {
		return domain.ConstraintViolationf("sum of floors %.4f exceeds 1", floors)
	}
	if unconstrained == 0 && ceilings < 1-eps {
		return domain.ConstraintViolationf("sum of ceilings %.4f below 1 with no unconstrained geography", ceilings)
	}
	return nil
}

func distribute(shares []share) {
	floors, total := 0.0, 0.0
	for _, s := range shares {
		floors += s.floor
		total += s.score
	}
	remainder := 1 - floors

	constrainedSum := 0.0
	for i := range shares {
		s := &shares[i]
		if !s.constrained {
			continue
		}
		proposed := 0.0
		if total > 0 {
			proposed = remainder * s.score / total
		}
		s.fraction = math.Min(s.ceiling, math.Max(s.floor, proposed))
		constrainedSum += s.fraction
	}

	left := 1 - constrainedSum
	if left < 0 {
		left = 0
	}

	var free []int
	freeScore := 0.0
	for i, s := range shares {
		if !s.constrained {
			free = append(free, i)
			freeScore += s.score
		}
	}

	if len(free) > 0 {
		for _, i := range free {
			if freeScore > 0 {
				shares[i].fraction = left * shares[i].score / freeScore
			} else {
				shares[i].fraction = left / float64(len(free))
			}
		}
	} else {
		waterFill(shares, left)
	}

	fixResidual(shares)
}

// waterFill spreads left across constrained geos with ceiling headroom,
// proportionally to score, until nothing is left or every geo is capped.
func waterFill(shares []share, left float64) {
	for iter := 0; left > eps && iter < len(shares)+1; iter++ {
		weight := 0.0
		for _, s := range shares {
			if s.ceiling-s.fraction > eps {
				weight += s.score
			}
		}
		if weight <= 0 {
			return
		}

		spent := 0.0
		for i := range shares {
			s := &shares[i]
			room := s.ceiling - s.fraction
			if room <= eps {
				continue
			}
			add := math.Min(room, left*s.score/weight)
			s.fraction += add
			spent += add
		}
		left -= spent
	}
}

// fixResidual pushes floating point drift onto the largest share that can
// absorb it without leaving its bounds.
func fixResidual(shares []share) {
	sum := 0.0
	for _, s := range shares {
		sum += s.fraction
	}
	diff := 1 - sum
	if math.Abs(diff) < 1e-15 {
		return
	}

	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares[order[a]].fraction > shares[order[b]].fraction
	})

	for _, i := range order {
		s := &shares[i]
		next := s.fraction + diff
		if next >= s.floor-eps && next <= s.ceiling+eps {
			s.fraction = next
			return
		}
	}
}

func toAllocations(campaign domain.Campaign, shares []share, now time.Time) []domain.GeoAllocation {
	budgetCents := int64(math.Round(campaign.DailyBudget * 100))

	cents := make([]int64, len(shares))
	var assigned int64
	largest := 0
	for i, s := range shares {
		cents[i] = int64(math.Round(s.fraction * float64(budgetCents)))
		assigned += cents[i]
		if s.fraction > shares[largest].fraction {
			largest = i
		}
	}
	cents[largest] += budgetCents - assigned

	out := make([]domain.GeoAllocation, len(shares))
	for i, s := range shares {
		out[i] = domain.GeoAllocation{
			CampaignID: campaign.ID,
			Geo:        s.geo,
			Fraction:   s.fraction,
			Amount:     float64(cents[i]) / 100,
			ComputedAt: now,
		}
	}
	return out
}

func normalizeGeo(g string) string {
	return strings.ToUpper(strings.TrimSpace(g))
}

// Rescale keeps the fractions of an existing allocation and recomputes the
// cent amounts for a new daily budget.
func Rescale(allocs []domain.GeoAllocation, budget float64, now time.Time) []domain.GeoAllocation {
	if len(allocs) == 0 {
		return []domain.GeoAllocation{}
	}
	shares := make([]share, len(allocs))
	for i, a := range allocs {
		shares[i] = share{geo: a.Geo, fraction: a.Fraction}
	}
	return toAllocations(domain.Campaign{ID: allocs[0].CampaignID, DailyBudget: budget}, shares, now)
}
