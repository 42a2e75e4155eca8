package exclusion

import (
	"time"

	"adBudgetEngine/domain"
)

// Filter removes every identity on the exclusion list from the targeting
// audience. It never mutates its inputs. A stale list is still applied; the
// report carries the stale flag instead.
func Filter(spec domain.TargetingSpec, list domain.ExclusionList, now time.Time) (domain.TargetingSpec, domain.ExclusionReport) {
	out := spec
	out.Geos = append([]string(nil), spec.Geos...)
	out.AudienceIDs = make([]string, 0, len(spec.AudienceIDs))

	excluded := 0
	for _, id := range spec.AudienceIDs {
		if list.Contains(id) {
			excluded++
			continue
		}
		out.AudienceIDs = append(out.AudienceIDs, id)
	}

	report := domain.ExclusionReport{
		CampaignID:    spec.CampaignID,
		OriginalCount: len(spec.AudienceIDs),
		ExcludedCount: excluded,
		Stale:         list.Stale(now),
	}
	if report.OriginalCount > 0 {
		report.ExclusionRate = float64(excluded) / float64(report.OriginalCount)
	}

	return out, report
}
