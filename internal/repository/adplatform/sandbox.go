package adplatform

import (
	"context"
	"fmt"
	"sync"

	"adBudgetEngine/domain"

	"github.com/google/uuid"
)

// Sandbox is an in-memory platform for local runs and tests. Repeated
// idempotency ids return the first answer without recording a new call.
type Sandbox struct {
	mu       sync.Mutex
	launches map[string]string
	budgets  map[string]domain.BudgetUpdate
	seen     map[string]struct{}
	failures []error
	calls    int
}

var _ Port = (*Sandbox)(nil)

func NewSandbox() *Sandbox {
	return &Sandbox{
		launches: map[string]string{},
		budgets:  map[string]domain.BudgetUpdate{},
		seen:     map[string]struct{}{},
	}
}

// FailNext queues errors returned by the next calls, in order.
func (s *Sandbox) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// Calls counts every call that reached the sandbox, failed ones included.
func (s *Sandbox) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Sandbox) Budget(platformCampaignID string) (domain.BudgetUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[platformCampaignID]
	return b, ok
}

func (s *Sandbox) popFailure() error {
	s.calls++
	if len(s.failures) == 0 {
		return nil
	}
	err := s.failures[0]
	s.failures = s.failures[1:]
	return err
}

func (s *Sandbox) LaunchCampaign(ctx context.Context, spec domain.LaunchSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFailure(); err != nil {
		return "", err
	}
	if id, ok := s.launches[spec.IdempotencyID]; ok && spec.IdempotencyID != "" {
		return id, nil
	}
	if spec.DailyBudget <= 0 || len(spec.Creatives) == 0 {
		return "", fmt.Errorf("%w: budget and creatives are required", domain.ErrInvalidSpec)
	}

	id := "sbx-" + uuid.NewString()
	s.launches[spec.IdempotencyID] = id
	s.budgets[id] = domain.BudgetUpdate{DailyBudget: spec.DailyBudget, GeoBudgets: spec.GeoBudgets}
	return id, nil
}

func (s *Sandbox) UpdateBudget(ctx context.Context, platformCampaignID string, upd domain.BudgetUpdate) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFailure(); err != nil {
		return err
	}
	if _, ok := s.seen[upd.IdempotencyID]; ok && upd.IdempotencyID != "" {
		return nil
	}
	if _, ok := s.budgets[platformCampaignID]; !ok {
		return fmt.Errorf("platform campaign %s: %w", platformCampaignID, domain.ErrNotFound)
	}

	s.seen[upd.IdempotencyID] = struct{}{}
	s.budgets[platformCampaignID] = upd
	return nil
}
