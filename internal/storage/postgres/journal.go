package postgres

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// Journal implements storage.Journal using PostgreSQL.
type Journal struct {
	pool *Pool
}

// NewJournal creates a new Journal.
func NewJournal(pool *Pool) *Journal {
	return &Journal{pool: pool}
}

// Compile-time interface check.
var _ storage.Journal = (*Journal)(nil)

// Append inserts a record. Returns ErrDuplicateKey if sequence_id or trade_ref exists.
func (j *Journal) Append(ctx context.Context, r *domain.JournalRecord) error {
	if err := storage.ValidateJournalRecord(r); err != nil {
		return err
	}

	query := `
		INSERT INTO trade_journal (
			sequence_id, trade_ref, mint,
			entry_amount, entry_fee, exit_amount, exit_fee,
			profit, reason, balance, opened_at, closed_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)
	`

	_, err := j.pool.Exec(ctx, query,
		int64(r.SequenceID), r.TradeRef, r.Mint.String(),
		int64(r.EntryAmount), int64(r.EntryFee), int64(r.ExitAmount), int64(r.ExitFee),
		r.Profit, string(r.Reason), int64(r.Balance), r.OpenedAt, r.ClosedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert journal record: %w", err)
	}
	return nil
}

// LastSequenceID returns the highest sequence_id, 0 when empty.
func (j *Journal) LastSequenceID(ctx context.Context) (uint64, error) {
	var last int64
	err := j.pool.QueryRow(ctx, `SELECT COALESCE(MAX(sequence_id), 0) FROM trade_journal`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last sequence id: %w", err)
	}
	return uint64(last), nil
}

// GetByRef retrieves a record by trade ref. Returns ErrNotFound if not exists.
func (j *Journal) GetByRef(ctx context.Context, ref string) (*domain.JournalRecord, error) {
	query := `
		SELECT sequence_id, trade_ref, mint,
			entry_amount, entry_fee, exit_amount, exit_fee,
			profit, reason, balance, opened_at, closed_at
		FROM trade_journal
		WHERE trade_ref = $1
	`

	// amounts are stored as BIGINT
	var (
		r                                        domain.JournalRecord
		seq, entry, entryFee, exit, exitFee, bal int64
		mint, reason                             string
	)
	err := j.pool.QueryRow(ctx, query, ref).Scan(
		&seq, &r.TradeRef, &mint,
		&entry, &entryFee, &exit, &exitFee,
		&r.Profit, &reason, &bal, &r.OpenedAt, &r.ClosedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query journal record: %w", err)
	}

	if err := r.Mint.UnmarshalText([]byte(mint)); err != nil {
		return nil, fmt.Errorf("journal record %s: %w", ref, err)
	}
	r.SequenceID = uint64(seq)
	r.EntryAmount = uint64(entry)
	r.EntryFee = uint64(entryFee)
	r.ExitAmount = uint64(exit)
	r.ExitFee = uint64(exitFee)
	r.Balance = uint64(bal)
	r.Reason = domain.CloseReason(reason)
	return &r, nil
}
