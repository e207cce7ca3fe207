package domain

import "solana-sniper/internal/solana"

// JournalRecord is one completed trade in the append-only journal.
// Corresponds to trade_journal table in PostgreSQL and ClickHouse.
type JournalRecord struct {
	SequenceID  uint64           `json:"sequence_id"` // monotonic, starts at 1
	TradeRef    string           `json:"trade_ref"`   // unique per trade
	Mint        solana.PublicKey `json:"mint"`
	EntryAmount uint64           `json:"entry_amount"`
	EntryFee    uint64           `json:"entry_fee"`
	ExitAmount  uint64           `json:"exit_amount"`
	ExitFee     uint64           `json:"exit_fee"`
	Profit      int64            `json:"profit"`
	Reason      CloseReason      `json:"reason"`
	Balance     uint64           `json:"balance"` // wallet balance snapshot at close
	OpenedAt    int64            `json:"opened_at"`
	ClosedAt    int64            `json:"closed_at"`
}

// NewJournalRecord snapshots a closed trade.
func NewJournalRecord(seq uint64, t *Trade, balance uint64) *JournalRecord {
	return &JournalRecord{
		SequenceID:  seq,
		TradeRef:    t.Ref,
		Mint:        t.Mint,
		EntryAmount: t.EntryAmount,
		EntryFee:    t.EntryFee,
		ExitAmount:  t.ExitAmount,
		ExitFee:     t.ExitFee,
		Profit:      t.Profit,
		Reason:      t.Reason,
		Balance:     balance,
		OpenedAt:    t.OpenedAt,
		ClosedAt:    t.ClosedAt,
	}
}
