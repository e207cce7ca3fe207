package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// PoolStore is an in-memory implementation of storage.PoolStore.
type PoolStore struct {
	mu   sync.RWMutex
	data map[solana.PublicKey]*domain.PoolRecord // keyed by base mint
}

// NewPoolStore creates a new in-memory pool store.
func NewPoolStore() *PoolStore {
	return &PoolStore{
		data: make(map[solana.PublicKey]*domain.PoolRecord),
	}
}

var _ storage.PoolStore = (*PoolStore)(nil)

// Save stores the pool under its base mint.
func (s *PoolStore) Save(_ context.Context, id solana.PublicKey, state *domain.PoolState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[state.BaseMint] = &domain.PoolRecord{ID: id, State: *state}
	return nil
}

// Get retrieves a pool by base mint.
func (s *PoolStore) Get(_ context.Context, mint solana.PublicKey) (*domain.PoolRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *rec
	return &out, nil
}
