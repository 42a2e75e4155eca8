package adplatform

import (
	"context"
	"errors"
	"time"

	"adBudgetEngine/domain"
	"adBudgetEngine/pkg/logger"
	"adBudgetEngine/pkg/metrics"

	"github.com/cenkalti/backoff/v5"
)

type RetryConfig struct {
	MaxTries        uint
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c *RetryConfig) Validate() error {
	if c.MaxTries == 0 {
		c.MaxTries = 4
	}
	if c.MaxElapsed <= 0 {
		c.MaxElapsed = 30 * time.Second
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
	if c.MaxInterval < c.InitialInterval {
		return errors.New("max interval below initial interval")
	}
	return nil
}

// Retrying decorates a Port with exponential backoff. Exhausted or
// permanent failures come back as *domain.ExternalCallFailure.
type Retrying struct {
	next Port
	cfg  RetryConfig
}

var _ Port = (*Retrying)(nil)

func NewRetrying(next Port, cfg RetryConfig) (*Retrying, error) {
	if next == nil {
		return nil, errors.New("ad platform port is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Retrying{next: next, cfg: cfg}, nil
}

func (r *Retrying) LaunchCampaign(ctx context.Context, spec domain.LaunchSpec) (string, error) {
	return retry(ctx, r.cfg, "launch_campaign", func() (string, error) {
		return r.next.LaunchCampaign(ctx, spec)
	})
}

func (r *Retrying) UpdateBudget(ctx context.Context, platformCampaignID string, upd domain.BudgetUpdate) error {
	_, err := retry(ctx, r.cfg, "update_budget", func() (struct{}, error) {
		return struct{}{}, r.next.UpdateBudget(ctx, platformCampaignID, upd)
	})
	return err
}

// retryAfterError keeps the platform error visible to errors.Is while
// letting backoff honor the server's Retry-After.
type retryAfterError struct {
	err   error
	after *backoff.RetryAfterError
}

func (e *retryAfterError) Error() string   { return e.err.Error() }
func (e *retryAfterError) Unwrap() []error { return []error{e.err, e.after} }

func retry[T any](ctx context.Context, cfg RetryConfig, operation string, call func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	attempts := 0
	op := func() (T, error) {
		attempts++
		res, err := call()
		if err == nil {
			metrics.PlatformCalls.WithLabelValues(operation, "ok").Inc()
			return res, nil
		}
		metrics.PlatformCalls.WithLabelValues(operation, "error").Inc()

		if !Retryable(err) {
			return res, backoff.Permanent(err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			wait := min(apiErr.RetryAfter, cfg.MaxInterval)
			return res, &retryAfterError{err: err, after: &backoff.RetryAfterError{Duration: wait}}
		}
		return res, err
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxTries),
		backoff.WithMaxElapsedTime(cfg.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("ad_platform_retry", "operation", operation, "attempt", attempts, "next_in", next.String(), "error", err)
		}),
	)
	if err == nil {
		return res, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	var ra *retryAfterError
	if errors.As(err, &ra) {
		err = ra.err
	}

	logger.Error("ad_platform_call_failed", "operation", operation, "attempts", attempts, "error", err)
	return res, &domain.ExternalCallFailure{Operation: operation, Attempts: attempts, Err: err}
}
