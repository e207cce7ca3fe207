package storage

import (
	"context"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// PoolStore caches pools seen by the pool listener.
type PoolStore interface {
	// Save stores a pool under its base mint, replacing any previous entry.
	Save(ctx context.Context, id solana.PublicKey, state *domain.PoolState) error

	// Get retrieves a pool by base mint. Returns ErrNotFound if not cached.
	Get(ctx context.Context, mint solana.PublicKey) (*domain.PoolRecord, error)
}

// MarketStore provides OpenBook market state by market id.
type MarketStore interface {
	// Save stores a market, replacing any previous entry.
	Save(ctx context.Context, id solana.PublicKey, state *domain.MarketState) error

	// Get retrieves a market. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id solana.PublicKey) (*domain.MarketState, error)
}

// SnipeListStore is the allow-list of mints to buy without filtering.
type SnipeListStore interface {
	// Contains reports whether mint is listed.
	Contains(ctx context.Context, mint solana.PublicKey) bool
}

// Journal is the append-only log of completed trades.
type Journal interface {
	// Append writes one record. Returns ErrDuplicateKey if the sequence id
	// or trade ref was already written, ErrInvalidInput if either is unset.
	Append(ctx context.Context, r *domain.JournalRecord) error

	// LastSequenceID returns the highest sequence id written, 0 when empty.
	LastSequenceID(ctx context.Context) (uint64, error)
}

// ValidateJournalRecord checks the fields every backend keys on.
func ValidateJournalRecord(r *domain.JournalRecord) error {
	if r == nil || r.SequenceID == 0 || r.TradeRef == "" {
		return ErrInvalidInput
	}
	return nil
}
