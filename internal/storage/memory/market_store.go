package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// MarketStore is an in-memory implementation of storage.MarketStore.
type MarketStore struct {
	mu   sync.RWMutex
	data map[solana.PublicKey]*domain.MarketState
}

// NewMarketStore creates a new in-memory market store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		data: make(map[solana.PublicKey]*domain.MarketState),
	}
}

var _ storage.MarketStore = (*MarketStore)(nil)

// Save stores a market.
func (s *MarketStore) Save(_ context.Context, id solana.PublicKey, state *domain.MarketState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *state
	s.data[id] = &stored
	return nil
}

// Get retrieves a market by id.
func (s *MarketStore) Get(_ context.Context, id solana.PublicKey) (*domain.MarketState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := *m
	return &out, nil
}
