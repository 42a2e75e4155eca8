package reinvest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Lease is a per-campaign mutual exclusion token with a TTL so a crashed
// holder cannot block a campaign forever.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

func leaseKey(campaignID string) string {
	return "reinvest:lease:" + campaignID
}

// LocalLease is the in-process fallback used when Redis is not configured.
type LocalLease struct {
	mu    sync.Mutex
	clock clockwork.Clock
	held  map[string]localHold
}

type localHold struct {
	token   string
	expires time.Time
}

func NewLocalLease(clock clockwork.Clock) *LocalLease {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LocalLease{clock: clock, held: map[string]localHold{}}
}

func (l *LocalLease) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, fmt.Errorf("context error: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.held[key] = localHold{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *LocalLease) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
	return nil
}
