package campaign

import (
	"context"
	"fmt"
	"sort"

	"adBudgetEngine/domain"

	"golang.org/x/sync/errgroup"
)

// GetAnalytics returns lifetime ledger totals with a per-geo breakdown.
// The ledger and allocation reads run concurrently.
func (s *Service) GetAnalytics(ctx context.Context, id string) (domain.Analytics, error) {
	if err := ctx.Err(); err != nil {
		return domain.Analytics{}, fmt.Errorf("context error: %w", err)
	}

	c, err := s.load(ctx, id)
	if err != nil {
		return domain.Analytics{}, err
	}

	q := domain.LedgerQuery{CampaignID: id}
	var (
		total  domain.AttributionAggregate
		events []domain.AttributionAggregate
		spend  []domain.SpendAggregate
		allocs []domain.GeoAllocation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.cfg.Ledger.Aggregate(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.cfg.Ledger.AggregateBy(gctx, q, domain.GroupGeo)
		return err
	})
	g.Go(func() error {
		var err error
		spend, err = s.cfg.Ledger.SpendBy(gctx, q, domain.GroupGeo)
		return err
	})
	g.Go(func() error {
		var err error
		allocs, err = s.cfg.Geo.GetAllocation(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Analytics{}, fmt.Errorf("load analytics: %w", err)
	}

	byGeo := map[string]*domain.GeoAnalytics{}
	get := func(geo string) *domain.GeoAnalytics {
		r, ok := byGeo[geo]
		if !ok {
			r = &domain.GeoAnalytics{Geo: geo}
			byGeo[geo] = r
		}
		return r
	}
	for _, a := range allocs {
		get(a.Geo).Fraction = a.Fraction
	}
	for _, e := range events {
		r := get(e.Geo)
		r.Visits = e.Visits
		r.Conversions = e.Conversions
		r.ConversionRate = e.ConversionRate
		r.Revenue = e.Revenue
	}

	out := domain.Analytics{
		CampaignID:  id,
		Visits:      total.Visits,
		Conversions: total.Conversions,
		Revenue:     total.Revenue,
	}
	for _, sp := range spend {
		get(sp.Geo).Spend = sp.Amount
		out.Spend += sp.Amount
	}
	if out.Spend > 0 {
		out.ROI = out.Revenue / out.Spend
	}

	out.PerGeo = make([]domain.GeoAnalytics, 0, len(byGeo))
	for _, r := range byGeo {
		if r.Spend > 0 {
			r.ROI = r.Revenue / r.Spend
		}
		out.PerGeo = append(out.PerGeo, *r)
	}
	sort.Slice(out.PerGeo, func(i, j int) bool { return out.PerGeo[i].Geo < out.PerGeo[j].Geo })

	out.Flags = map[string]bool{
		"exclusion_stale": c.ExclusionStale,
		"low_confidence":  c.LowConfidence,
		"escalated":       s.cfg.Reinvest != nil && s.cfg.Reinvest.Escalated(c),
	}
	return out, nil
}
