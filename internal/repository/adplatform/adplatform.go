package adplatform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"adBudgetEngine/domain"
)

// Port is the ad platform surface the engine drives. Implementations must
// treat a repeated IdempotencyID as a no-op.
type Port interface {
	LaunchCampaign(ctx context.Context, spec domain.LaunchSpec) (string, error)
	UpdateBudget(ctx context.Context, platformCampaignID string, upd domain.BudgetUpdate) error
}

// APIError is a non-2xx answer from the platform. It unwraps to the domain
// sentinel matching the status.
type APIError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ad platform returned %d: %s", e.Status, e.Body)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return domain.ErrAuth
	case e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity:
		return domain.ErrInvalidSpec
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	}
	return nil
}

// Retryable reports whether another attempt can succeed.
func Retryable(err error) bool {
	if errors.Is(err, domain.ErrAuth) || errors.Is(err, domain.ErrInvalidSpec) || errors.Is(err, domain.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
