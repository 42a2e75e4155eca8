package domain

// LaunchSpec is sent to the ad platform when a campaign goes live.
type LaunchSpec struct {
	CampaignID    string             `json:"campaign_id"`
	DailyBudget   float64            `json:"daily_budget"`
	Currency      string             `json:"currency"`
	GeoBudgets    map[string]float64 `json:"geo_budgets"`
	Targeting     TargetingSpec      `json:"targeting"`
	Creatives     []LaunchCreative   `json:"creatives"`
	PredictedCTR  float64            `json:"predicted_ctr"`
	IdempotencyID string             `json:"idempotency_id"`
}

type LaunchCreative struct {
	CreativeID      string            `json:"creative_id"`
	SourceReference string            `json:"source_reference"`
	TrackingCodes   map[string]string `json:"tracking_codes"` // geo -> code
}

// BudgetUpdate is the new allocation pushed after a reinvestment cycle.
type BudgetUpdate struct {
	DailyBudget    float64            `json:"daily_budget"`
	GeoBudgets     map[string]float64 `json:"geo_budgets"`
	CreativeBoosts map[string]float64 `json:"creative_boosts"`
	IdempotencyID  string             `json:"idempotency_id"`
}
