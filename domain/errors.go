package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConstraintViolation: geo floors/ceilings cannot all be honored.
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStaleData           = errors.New("stale data")
	ErrOrphanEvent         = errors.New("orphan event")
	ErrLowConfidence       = errors.New("low confidence classification")

	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")

	// ad platform
	ErrRateLimited = errors.New("rate limited")
	ErrAuth        = errors.New("auth error")
	ErrInvalidSpec = errors.New("invalid spec")
)

// ExternalCallFailure wraps an ad platform (or other collaborator) error after
// retries are exhausted.
type ExternalCallFailure struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExternalCallFailure) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExternalCallFailure) Unwrap() error {
	return e.Err
}

// ConstraintViolationf wraps ErrConstraintViolation with detail.
func ConstraintViolationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConstraintViolation, fmt.Sprintf(format, args...))
}
