package credit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the store needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps balances in the credit_accounts table.
type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string { return "postgres" }

// EnsureSchema creates the credit_accounts table if it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_accounts (
    user_id    TEXT PRIMARY KEY,
    balance    INTEGER NOT NULL CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	if err != nil {
		return fmt.Errorf("failed to create credit_accounts: %w", err)
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := s.db.QueryRow(ctx, `SELECT balance FROM credit_accounts WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) ConsumeOne(ctx context.Context, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE credit_accounts
SET balance = balance - 1, updated_at = now()
WHERE user_id = $1 AND balance > 0
`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to consume credit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int
	err := s.db.QueryRow(ctx, `
INSERT INTO credit_accounts (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET balance = credit_accounts.balance + EXCLUDED.balance,
    updated_at = now()
RETURNING balance
`, userID, n).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) Provision(ctx context.Context, userID string, initial int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO credit_accounts (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO NOTHING
`, userID, initial)
	if err != nil {
		return false, fmt.Errorf("failed to provision account: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
