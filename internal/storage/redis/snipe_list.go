package redis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// SnipeList implements storage.SnipeListStore as a Redis set, so the list
// can be edited while the sniper runs.
//
// Key schema:
//
//	{prefix}:snipe-list - set of base58 mints
type SnipeList struct {
	c      *Client
	logger zerolog.Logger
}

// NewSnipeList creates a SnipeList.
func NewSnipeList(c *Client, logger zerolog.Logger) *SnipeList {
	return &SnipeList{c: c, logger: logger.With().Str("component", "snipe_list").Logger()}
}

var _ storage.SnipeListStore = (*SnipeList)(nil)

// Contains reports whether mint is listed. Lookup errors count as not listed.
func (l *SnipeList) Contains(ctx context.Context, mint solana.PublicKey) bool {
	ok, err := l.c.rdb.SIsMember(ctx, l.c.key("snipe-list"), mint.String()).Result()
	if err != nil {
		l.logger.Warn().Err(err).Str("mint", mint.String()).Msg("snipe list lookup failed")
		return false
	}
	return ok
}

// Add lists mints.
func (l *SnipeList) Add(ctx context.Context, mints ...solana.PublicKey) error {
	if len(mints) == 0 {
		return nil
	}
	members := make([]interface{}, len(mints))
	for i, m := range mints {
		members[i] = m.String()
	}
	if err := l.c.rdb.SAdd(ctx, l.c.key("snipe-list"), members...).Err(); err != nil {
		return fmt.Errorf("redis: add to snipe list: %w", err)
	}
	return nil
}
