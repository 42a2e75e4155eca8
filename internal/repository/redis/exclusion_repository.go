package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adBudgetEngine/business/exclusion"
	"adBudgetEngine/domain"

	"github.com/redis/go-redis/v9"
)

type exclusionMeta struct {
	CampaignID  string    `json:"campaign_id"`
	Size        int       `json:"size"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// ExclusionRepository keeps each campaign's exclusion list as a set plus a
// small JSON meta key. Keys never expire; staleness is judged by the caller.
type ExclusionRepository struct {
	client *redis.Client
}

var _ exclusion.Store = (*ExclusionRepository)(nil)

func NewExclusionRepository(client *redis.Client) *ExclusionRepository {
	return &ExclusionRepository{
		client: client,
	}
}

func exclusionSetKey(campaignID string) string {
	return fmt.Sprintf("exclusion:set:%s", campaignID)
}

func exclusionMetaKey(campaignID string) string {
	return fmt.Sprintf("exclusion:meta:%s", campaignID)
}

func (r *ExclusionRepository) Load(ctx context.Context, campaignID string) (domain.ExclusionList, bool, error) {
	raw, err := r.client.Get(ctx, exclusionMetaKey(campaignID)).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.ExclusionList{}, false, nil
		}
		return domain.ExclusionList{}, false, fmt.Errorf("failed to get exclusion meta: %w", err)
	}

	var meta exclusionMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return domain.ExclusionList{}, false, fmt.Errorf("failed to unmarshal exclusion meta: %w", err)
	}

	members, err := r.client.SMembers(ctx, exclusionSetKey(campaignID)).Result()
	if err != nil {
		return domain.ExclusionList{}, false, fmt.Errorf("failed to read exclusion set: %w", err)
	}

	set := make(map[string]struct{}, len(members))
	for _, m := range members {
		set[m] = struct{}{}
	}

	return domain.ExclusionList{
		CampaignID:  campaignID,
		Identities:  set,
		RefreshedAt: meta.RefreshedAt,
	}, true, nil
}

// Save replaces the set and meta atomically.
func (r *ExclusionRepository) Save(ctx context.Context, list domain.ExclusionList) error {
	meta, err := json.Marshal(exclusionMeta{
		CampaignID:  list.CampaignID,
		Size:        len(list.Identities),
		RefreshedAt: list.RefreshedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal exclusion meta: %w", err)
	}

	members := make([]any, 0, len(list.Identities))
	for id := range list.Identities {
		members = append(members, id)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, exclusionSetKey(list.CampaignID))
		if len(members) > 0 {
			pipe.SAdd(ctx, exclusionSetKey(list.CampaignID), members...)
		}
		pipe.Set(ctx, exclusionMetaKey(list.CampaignID), meta, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store exclusion list: %w", err)
	}

	return nil
}
