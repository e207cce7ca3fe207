// Package engine runs the buy and sell pipelines of the sniper: admission,
// pool qualification, exit signals, swap retries and the trade journal.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// ErrNotConfirmed is returned when every swap attempt ended unconfirmed.
var ErrNotConfirmed = errors.New("swap not confirmed")

// Filter decides whether a pool is safe to buy.
type Filter interface {
	Evaluate(ctx context.Context, keys *domain.PoolKeys) (bool, error)
}

// BalanceSource reports the wallet balance in raw quote units.
type BalanceSource interface {
	Balance(ctx context.Context) (uint64, error)
}

// Config holds the trading parameters.
type Config struct {
	Owner       solana.PublicKey // wallet address
	QuoteMint   solana.PublicKey
	QuoteAmount uint64 // raw quote units spent per buy

	MaxTokensAtTheTime int
	UseSnipeList       bool

	AutoBuyDelay  time.Duration
	MaxBuyRetries int
	BuySlippage   decimal.Decimal // percent

	AutoSellDelay  time.Duration
	MaxSellRetries int
	SellSlippage   decimal.Decimal // percent

	TakeProfit                decimal.Decimal // percent
	StopLoss                  decimal.Decimal // percent
	TrailingStopLoss          bool
	SkipSellingIfLostMoreThan decimal.Decimal // percent, zero disables
	PriceCheckInterval        time.Duration
	PriceCheckDuration        time.Duration

	FilterCheckInterval      time.Duration
	FilterCheckDuration      time.Duration
	ConsecutiveFilterMatches int
}

// Options for creating Engine.
type Options struct {
	Config Config

	// Required collaborators
	Pools   storage.PoolStore
	Markets storage.MarketStore
	Filter  Filter
	Swapper Swapper
	Journal storage.Journal
	Balance BalanceSource

	// Required when Config.UseSnipeList is set
	SnipeList storage.SnipeListStore

	Logger zerolog.Logger
	Now    func() time.Time
}

// Engine owns the active trades, stop loss watermarks, admission permits
// and the journal sequence. Buy and Sell are safe for concurrent use.
type Engine struct {
	cfg Config

	pools     storage.PoolStore
	markets   storage.MarketStore
	snipeList storage.SnipeListStore
	filter    Filter
	swapper   Swapper
	journal   storage.Journal
	source    BalanceSource

	admission  *admission
	trades     *tradeBook
	watermarks *watermarks

	mu      sync.Mutex // guards balance and lastSeq
	balance uint64
	lastSeq uint64

	logger zerolog.Logger
	now    func() time.Time
}

// New creates an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Pools == nil || opts.Markets == nil || opts.Filter == nil ||
		opts.Swapper == nil || opts.Journal == nil || opts.Balance == nil {
		return nil, fmt.Errorf("engine: missing collaborator")
	}
	if opts.Config.UseSnipeList && opts.SnipeList == nil {
		return nil, fmt.Errorf("engine: snipe list mode without snipe list store")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		cfg:        opts.Config,
		pools:      opts.Pools,
		markets:    opts.Markets,
		snipeList:  opts.SnipeList,
		filter:     opts.Filter,
		swapper:    opts.Swapper,
		journal:    opts.Journal,
		source:     opts.Balance,
		admission:  newAdmission(opts.Config.MaxTokensAtTheTime),
		trades:     newTradeBook(),
		watermarks: newWatermarks(),
		logger:     opts.Logger.With().Str("component", "engine").Logger(),
		now:        opts.Now,
	}, nil
}

// Init recovers the journal sequence and reads the starting balance.
func (e *Engine) Init(ctx context.Context) error {
	seq, err := e.journal.LastSequenceID(ctx)
	if err != nil {
		return fmt.Errorf("recover journal sequence: %w", err)
	}
	balance, err := e.source.Balance(ctx)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	e.mu.Lock()
	e.lastSeq = seq
	e.balance = balance
	e.mu.Unlock()
	observability.UpdateBalance(balance)

	e.logger.Info().Uint64("last_sequence_id", seq).Uint64("balance", balance).Msg("engine initialized")
	return nil
}

// Balance returns the running balance.
func (e *Engine) Balance() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// LastSequenceID returns the sequence id of the last journaled trade.
func (e *Engine) LastSequenceID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}

// Trade returns a copy of the active trade for mint.
func (e *Engine) Trade(mint solana.PublicKey) (domain.Trade, bool) {
	return e.trades.get(mint)
}

// ActiveTrades returns the number of tracked trades.
func (e *Engine) ActiveTrades() int {
	return e.trades.len()
}

func (e *Engine) nowMs() int64 {
	return e.now().UnixMilli()
}

// applyProfit adds profit to the running balance, floored at zero.
func (e *Engine) applyProfit(profit int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if profit < 0 && uint64(-profit) > e.balance {
		e.balance = 0
		return
	}
	e.balance = uint64(int64(e.balance) + profit)
}

// refreshBalance replaces the running balance with the wallet balance.
// On failure the running balance is kept.
func (e *Engine) refreshBalance(ctx context.Context) uint64 {
	balance, err := e.source.Balance(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.logger.Warn().Err(err).Msg("balance refresh failed")
		return e.balance
	}
	e.balance = balance
	observability.UpdateBalance(balance)
	return balance
}

func (e *Engine) nextSequenceID() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeq++
	return e.lastSeq
}

// tradeBook is the set of active trades keyed by mint. Lookups that
// modify a trade also match its ref, so a pipeline never touches a newer
// trade for the same mint.
type tradeBook struct {
	mu      sync.Mutex
	m       map[solana.PublicKey]*domain.Trade
	selling map[solana.PublicKey]bool // trades claimed by a sell
}

func newTradeBook() *tradeBook {
	return &tradeBook{
		m:       make(map[solana.PublicKey]*domain.Trade),
		selling: make(map[solana.PublicKey]bool),
	}
}

// add registers t unless a trade for its mint is active.
func (b *tradeBook) add(t *domain.Trade) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.m[t.Mint]; ok {
		return false
	}
	b.m[t.Mint] = t
	observability.UpdateActiveTrades(len(b.m))
	return true
}

// update applies fn to the trade of mint identified by ref.
func (b *tradeBook) update(mint solana.PublicKey, ref string, fn func(t *domain.Trade) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.m[mint]
	if !ok || t.Ref != ref {
		return storage.ErrNotFound
	}
	return fn(t)
}

// claim applies fn like update and, on success, hands the trade to the
// sell pipeline: from then on only remove drops it.
func (b *tradeBook) claim(mint solana.PublicKey, ref string, fn func(t *domain.Trade) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.m[mint]
	if !ok || t.Ref != ref {
		return storage.ErrNotFound
	}
	if err := fn(t); err != nil {
		return err
	}
	b.selling[mint] = true
	return nil
}

func (b *tradeBook) get(mint solana.PublicKey) (domain.Trade, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.m[mint]
	if !ok {
		return domain.Trade{}, false
	}
	return *t, true
}

// discard drops a trade the buy could not open, unless a sell claimed it.
func (b *tradeBook) discard(mint solana.PublicKey, ref string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.selling[mint] {
		return
	}
	b.drop(mint, ref)
}

// remove drops the trade of mint identified by ref.
func (b *tradeBook) remove(mint solana.PublicKey, ref string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drop(mint, ref)
}

func (b *tradeBook) drop(mint solana.PublicKey, ref string) {
	if t, ok := b.m[mint]; !ok || t.Ref != ref {
		return
	}
	delete(b.m, mint)
	delete(b.selling, mint)
	observability.UpdateActiveTrades(len(b.m))
}

func (b *tradeBook) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.m)
}
