package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// MarketStore implements storage.MarketStore using a Redis hash.
//
// Key schema:
//
//	{prefix}:markets - hash of market id to JSON MarketState
type MarketStore struct {
	c *Client
}

// NewMarketStore creates a MarketStore.
func NewMarketStore(c *Client) *MarketStore {
	return &MarketStore{c: c}
}

var _ storage.MarketStore = (*MarketStore)(nil)

// Save stores a market.
func (s *MarketStore) Save(ctx context.Context, id solana.PublicKey, state *domain.MarketState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", id, err)
	}
	if err := s.c.rdb.HSet(ctx, s.c.key("markets"), id.String(), data).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", id, err)
	}
	return nil
}

// Get retrieves a market by id.
func (s *MarketStore) Get(ctx context.Context, id solana.PublicKey) (*domain.MarketState, error) {
	data, err := s.c.rdb.HGet(ctx, s.c.key("markets"), id.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.MarketState
	if err := json.Unmarshal(data, &market); err != nil {
		return nil, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return &market, nil
}
