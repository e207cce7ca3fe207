package clickhouse

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// Journal implements storage.Journal using ClickHouse.
// MergeTree does not enforce uniqueness, so Append checks before inserting.
type Journal struct {
	conn *Conn
}

// NewJournal creates a new Journal.
func NewJournal(conn *Conn) *Journal {
	return &Journal{conn: conn}
}

// Compile-time interface check.
var _ storage.Journal = (*Journal)(nil)

// Append inserts a record. Returns ErrDuplicateKey if sequence_id or trade_ref exists.
func (j *Journal) Append(ctx context.Context, r *domain.JournalRecord) error {
	if err := storage.ValidateJournalRecord(r); err != nil {
		return err
	}

	exists, err := j.exists(ctx, r.SequenceID, r.TradeRef)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO trade_journal (
			sequence_id, trade_ref, mint,
			entry_amount, entry_fee, exit_amount, exit_fee,
			profit, reason, balance, opened_at, closed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.SequenceID, r.TradeRef, r.Mint.String(),
		r.EntryAmount, r.EntryFee, r.ExitAmount, r.ExitFee,
		r.Profit, string(r.Reason), r.Balance, r.OpenedAt, r.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// LastSequenceID returns the highest sequence_id, 0 when empty.
func (j *Journal) LastSequenceID(ctx context.Context) (uint64, error) {
	var last uint64
	if err := j.conn.QueryRow(ctx, `SELECT max(sequence_id) FROM trade_journal`).Scan(&last); err != nil {
		return 0, fmt.Errorf("query last sequence id: %w", err)
	}
	return last, nil
}

// Count returns the number of records.
func (j *Journal) Count(ctx context.Context) (uint64, error) {
	var n uint64
	if err := j.conn.QueryRow(ctx, `SELECT count() FROM trade_journal`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

func (j *Journal) exists(ctx context.Context, seq uint64, ref string) (bool, error) {
	var n uint64
	err := j.conn.QueryRow(ctx, `
		SELECT count() FROM trade_journal
		WHERE sequence_id = ? OR trade_ref = ?
	`, seq, ref).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
