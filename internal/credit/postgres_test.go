package credit

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	tag   string
	value int
	err   error

	query string
	args  []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.query = query
	s.args = args
	return pgconn.NewCommandTag(s.tag), s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.query = query
	s.args = args
	return stubRow{value: s.value, err: s.err}
}

type stubRow struct {
	value int
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	ptr, ok := dest[0].(*int)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.value
	return nil
}

func TestPostgresStore_ConsumeUsesConditionalUpdate(t *testing.T) {
	db := &stubExecutor{tag: "UPDATE 1"}
	s := NewPostgresStore(db)

	ok, err := s.ConsumeOne(context.Background(), "u")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, db.query, "balance > 0")
	assert.Equal(t, []any{"u"}, db.args)

	db.tag = "UPDATE 0"
	ok, err = s.ConsumeOne(context.Background(), "u")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore_MissingAccountHasZeroBalance(t *testing.T) {
	s := NewPostgresStore(&stubExecutor{err: pgx.ErrNoRows})
	balance, err := s.Balance(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestPostgresStore_Errors(t *testing.T) {
	s := NewPostgresStore(&stubExecutor{err: errors.New("conn reset")})

	_, err := s.Balance(context.Background(), "u")
	assert.ErrorContains(t, err, "conn reset")
	_, err = s.ConsumeOne(context.Background(), "u")
	assert.ErrorContains(t, err, "conn reset")
	_, err = s.AddCredits(context.Background(), "u", 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPostgresStore_AddAndProvision(t *testing.T) {
	db := &stubExecutor{value: 9, tag: "INSERT 0 1"}
	s := NewPostgresStore(db)

	balance, err := s.AddCredits(context.Background(), "u", 2)
	require.NoError(t, err)
	assert.Equal(t, 9, balance)
	assert.Equal(t, []any{"u", 2}, db.args)

	created, err := s.Provision(context.Background(), "u", 5)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, db.query, "DO NOTHING")

	db.tag = "INSERT 0 0"
	created, err = s.Provision(context.Background(), "u", 5)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestPostgresStore_ConcurrentConsumeIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresStore(db)
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = db.Exec(ctx, `DELETE FROM credit_accounts WHERE user_id = $1`, "it-user")
	require.NoError(t, err)
	_, err = s.Provision(ctx, "it-user", 10)
	require.NoError(t, err)

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.ConsumeOne(ctx, "it-user"); err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), granted.Load())
	balance, err := s.Balance(ctx, "it-user")
	require.NoError(t, err)
	assert.Zero(t, balance)
}
