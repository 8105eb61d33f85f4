package balancecache

import (
	"context"
	"sync"

	"balance_pool/internal/domain/entity"
)

// MemoryStore keeps the snapshot in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	balances []entity.CachedBalance
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Persist(_ context.Context, balances []entity.CachedBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances = append([]entity.CachedBalance(nil), balances...)
	return nil
}

func (s *MemoryStore) Retrieve(_ context.Context) ([]entity.CachedBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.CachedBalance(nil), s.balances...), nil
}

func (s *MemoryStore) Close() error { return nil }
