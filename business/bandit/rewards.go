package bandit

import "adBudgetEngine/domain"

// armStats turns a ledger aggregate into bandit counts: a visit is a pull,
// a conversion is a success and a visit without conversion is a failure.
func armStats(agg domain.AttributionAggregate) (pulls, successes, failures int64) {
	pulls = agg.Visits
	successes = agg.Conversions
	if successes > pulls {
		// conversions whose visit fell outside the window
		pulls = successes
	}
	failures = pulls - successes
	return pulls, successes, failures
}
