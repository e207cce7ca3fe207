package raydium

import (
	"context"
	"errors"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// RPCMarketStore fetches markets on demand instead of caching them.
type RPCMarketStore struct {
	rpc solana.RPCClient
}

// NewRPCMarketStore creates a new RPC-backed market store.
func NewRPCMarketStore(rpc solana.RPCClient) *RPCMarketStore {
	return &RPCMarketStore{rpc: rpc}
}

var _ storage.MarketStore = (*RPCMarketStore)(nil)

// Save is a no-op.
func (s *RPCMarketStore) Save(_ context.Context, _ solana.PublicKey, _ *domain.MarketState) error {
	return nil
}

// Get fetches and decodes the market account.
func (s *RPCMarketStore) Get(ctx context.Context, marketID solana.PublicKey) (*domain.MarketState, error) {
	info, err := s.rpc.GetAccountInfo(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", marketID, err)
	}
	if info == nil {
		return nil, storage.ErrNotFound
	}
	return DecodeMarketState(info.Data)
}

// CachedMarketStore serves markets from a cache filled by the market
// listener and falls back to RPC for markets created before startup.
// Fetched markets are written back to the cache.
type CachedMarketStore struct {
	cache storage.MarketStore
	rpc   *RPCMarketStore
}

// NewCachedMarketStore creates a read-through market store.
func NewCachedMarketStore(cache storage.MarketStore, rpc solana.RPCClient) *CachedMarketStore {
	return &CachedMarketStore{cache: cache, rpc: NewRPCMarketStore(rpc)}
}

var _ storage.MarketStore = (*CachedMarketStore)(nil)

// Save stores the market in the cache.
func (s *CachedMarketStore) Save(ctx context.Context, id solana.PublicKey, state *domain.MarketState) error {
	return s.cache.Save(ctx, id, state)
}

// Get returns the cached market, fetching it on a miss.
func (s *CachedMarketStore) Get(ctx context.Context, id solana.PublicKey) (*domain.MarketState, error) {
	m, err := s.cache.Get(ctx, id)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	m, err = s.rpc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Save(ctx, id, m); err != nil {
		return nil, fmt.Errorf("cache market %s: %w", id, err)
	}
	return m, nil
}
