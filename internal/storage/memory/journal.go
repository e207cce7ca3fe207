package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// Journal is an in-memory implementation of storage.Journal.
type Journal struct {
	mu      sync.RWMutex
	records []*domain.JournalRecord
	refs    map[string]struct{}
	lastSeq uint64
}

// NewJournal creates a new in-memory journal.
func NewJournal() *Journal {
	return &Journal{refs: make(map[string]struct{})}
}

var _ storage.Journal = (*Journal)(nil)

// Append adds a record. Sequence ids must increase.
func (j *Journal) Append(_ context.Context, r *domain.JournalRecord) error {
	if err := storage.ValidateJournalRecord(r); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if r.SequenceID <= j.lastSeq {
		return storage.ErrDuplicateKey
	}
	if _, exists := j.refs[r.TradeRef]; exists {
		return storage.ErrDuplicateKey
	}

	rec := *r
	j.records = append(j.records, &rec)
	j.refs[r.TradeRef] = struct{}{}
	j.lastSeq = r.SequenceID
	return nil
}

// LastSequenceID returns the highest sequence id.
func (j *Journal) LastSequenceID(_ context.Context) (uint64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastSeq, nil
}

// Records returns a copy of all records in append order.
func (j *Journal) Records() []*domain.JournalRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*domain.JournalRecord, len(j.records))
	for i, r := range j.records {
		rec := *r
		out[i] = &rec
	}
	return out
}
