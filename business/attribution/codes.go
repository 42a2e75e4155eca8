package attribution

import (
	"strings"

	"github.com/google/uuid"
)

const (
	campaignPrefixLen = 8
	suffixLen         = 12
)

// NewCode builds "<campaign>.<geo>.<random>". The readable prefix lets the
// ledger answer campaign and campaign+geo queries with a prefix scan.
func NewCode(campaignID, geo string) string {
	return CampaignGeoPrefix(campaignID, geo) + randomSuffix()
}

// CampaignPrefix is the code prefix shared by every code of a campaign.
func CampaignPrefix(campaignID string) string {
	short := strings.ToLower(strings.ReplaceAll(campaignID, "-", ""))
	if len(short) > campaignPrefixLen {
		short = short[:campaignPrefixLen]
	}
	return short + "."
}

func CampaignGeoPrefix(campaignID, geo string) string {
	return CampaignPrefix(campaignID) + strings.ToLower(strings.TrimSpace(geo)) + "."
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}
