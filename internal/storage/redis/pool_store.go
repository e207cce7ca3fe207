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

// PoolStore implements storage.PoolStore with one JSON string per base mint.
//
// Key schema:
//
//	{prefix}:pool:{mint} - JSON PoolRecord
type PoolStore struct {
	c *Client
}

// NewPoolStore creates a PoolStore.
func NewPoolStore(c *Client) *PoolStore {
	return &PoolStore{c: c}
}

var _ storage.PoolStore = (*PoolStore)(nil)

// Save stores the pool under its base mint.
func (s *PoolStore) Save(ctx context.Context, id solana.PublicKey, state *domain.PoolState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}
	data, err := json.Marshal(domain.PoolRecord{ID: id, State: *state})
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", id, err)
	}
	if err := s.c.rdb.Set(ctx, s.c.key("pool", state.BaseMint.String()), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", id, err)
	}
	return nil
}

// Get retrieves a pool by base mint.
func (s *PoolStore) Get(ctx context.Context, mint solana.PublicKey) (*domain.PoolRecord, error) {
	data, err := s.c.rdb.Get(ctx, s.c.key("pool", mint.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get pool %s: %w", mint, err)
	}

	var rec domain.PoolRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redis: unmarshal pool %s: %w", mint, err)
	}
	return &rec, nil
}
