package credit

import (
	"context"
	"errors"
)

var (
	// ErrSystem is returned when no credit store could answer.
	ErrSystem        = errors.New("credit system unavailable")
	ErrInvalidAmount = errors.New("credit amount must be positive")
)

// Store holds per-user credit balances. ConsumeOne must be an atomic
// decrement-if-positive with respect to concurrent callers.
type Store interface {
	Name() string
	Balance(ctx context.Context, userID string) (int, error)
	ConsumeOne(ctx context.Context, userID string) (bool, error)
	AddCredits(ctx context.Context, userID string, n int) (int, error)
	// Provision creates the account with initial credits unless it exists.
	Provision(ctx context.Context, userID string, initial int) (bool, error)
}
