package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"solana-sniper/internal/solana"
)

// ErrInvalidTransition is returned when a trade is moved out of order.
var ErrInvalidTransition = errors.New("invalid trade transition")

// TradeState is the lifecycle stage of a trade.
type TradeState string

const (
	TradeIdle    TradeState = "idle"
	TradeStarted TradeState = "started"
	TradeOpened  TradeState = "opened"
	TradeClosed  TradeState = "closed"
)

// String returns the string representation of TradeState.
func (s TradeState) String() string {
	return string(s)
}

// CloseReason tags how a trade ended.
type CloseReason string

const (
	ReasonClosed     CloseReason = "closed"
	ReasonSellFailed CloseReason = "sell_failed"
	ReasonAbandoned  CloseReason = "abandoned"
)

// Trade is one position in one token.
// Amounts are raw quote token units.
type Trade struct {
	Ref   string           // random reference for logs and journal dedup
	Mint  solana.PublicKey // base token
	State TradeState

	// Entry
	EntryAmount uint64 // quote spent
	EntryFee    uint64 // swap fee in quote

	// Exit
	ExitAmount uint64 // quote received
	ExitFee    uint64 // swap fee in quote
	Reason     CloseReason

	Profit int64 // exit - entry - fees, set on close

	StartedAt int64 // ms
	OpenedAt  int64 // ms
	ClosedAt  int64 // ms
}

// NewTrade creates an idle trade for mint.
func NewTrade(mint solana.PublicKey) *Trade {
	return &Trade{
		Ref:   uuid.NewString(),
		Mint:  mint,
		State: TradeIdle,
	}
}

// Start marks the beginning of a buy or sell attempt.
func (t *Trade) Start(now int64) error {
	if t.State != TradeIdle && t.State != TradeOpened {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, t.State)
	}
	t.State = TradeStarted
	t.StartedAt = now
	return nil
}

// Open records the entry of a started trade.
func (t *Trade) Open(amount, fee uint64, now int64) error {
	if t.State != TradeStarted {
		return fmt.Errorf("%w: open from %s", ErrInvalidTransition, t.State)
	}
	t.EntryAmount = amount
	t.EntryFee = fee
	t.State = TradeOpened
	t.OpenedAt = now
	return nil
}

// Close records the exit and computes profit.
func (t *Trade) Close(amount, fee uint64, reason CloseReason, now int64) error {
	if t.State != TradeStarted && t.State != TradeOpened {
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, t.State)
	}
	t.ExitAmount = amount
	t.ExitFee = fee
	t.Reason = reason
	t.Profit = int64(amount) - int64(t.EntryAmount) - int64(t.EntryFee) - int64(fee)
	t.State = TradeClosed
	t.ClosedAt = now
	return nil
}
