package domain

type DebugArm struct {
	CreativeID string  `json:"creative_id"`
	Geo        string  `json:"geo"`
	PullCount  int64   `json:"pull_count"`
	Mean       float64 `json:"mean"`     // successes / pulls
	Bonus      float64 `json:"bonus"`    // sqrt(2 ln N / n) when UCB1
	Score      float64 `json:"score"`    // sample or UCB value
	Policy     string  `json:"policy"`   // thompson | ucb1 | cold_start
	Eligible   bool    `json:"eligible"` // creative not retired
	Selected   bool    `json:"selected"` // within top-k
}
