package credit

import (
	"context"
	"sync"
)

// MemoryStore keeps balances in process memory. Unknown users are created
// with the default balance on first access.
type MemoryStore struct {
	defaultBalance int

	mu       sync.Mutex
	accounts map[string]int
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore(defaultBalance int) *MemoryStore {
	return &MemoryStore{
		defaultBalance: defaultBalance,
		accounts:       make(map[string]int),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Balance(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountLocked(userID), nil
}

func (s *MemoryStore) ConsumeOne(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountLocked(userID) <= 0 {
		return false, nil
	}
	s.accounts[userID]--
	return true, nil
}

func (s *MemoryStore) AddCredits(ctx context.Context, userID string, n int) (int, error) {
	if n <= 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[userID] = s.accountLocked(userID) + n
	return s.accounts[userID], nil
}

func (s *MemoryStore) Provision(ctx context.Context, userID string, initial int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; ok {
		return false, nil
	}
	s.accounts[userID] = initial
	return true, nil
}

// Set overwrites a balance.
func (s *MemoryStore) Set(userID string, balance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[userID] = balance
}

func (s *MemoryStore) accountLocked(userID string) int {
	balance, ok := s.accounts[userID]
	if !ok {
		balance = s.defaultBalance
		s.accounts[userID] = balance
	}
	return balance
}
