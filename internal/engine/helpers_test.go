package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/raydium"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage/memory"
)

func key(b byte) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = b
	pk[31] = b
	return pk
}

var (
	testMint   = key(1)
	testPoolID = key(10)
	testMarket = key(11)
	testOwner  = key(20)
)

func testPool() *domain.PoolState {
	return &domain.PoolState{
		Status:          6,
		BaseDecimal:     6,
		QuoteDecimal:    9,
		BaseVault:       key(3),
		QuoteVault:      key(4),
		BaseMint:        testMint,
		QuoteMint:       solana.WrappedSOLMint,
		LpMint:          key(5),
		OpenOrders:      key(6),
		MarketID:        testMarket,
		MarketProgramID: raydium.OpenBookProgramID,
		TargetOrders:    key(7),
	}
}

func testPoolKeys(t *testing.T) *domain.PoolKeys {
	t.Helper()
	keys, err := raydium.BuildPoolKeys(testPoolID, testPool(), &domain.MarketState{EventQueue: key(12), Bids: key(13), Asks: key(14)})
	require.NoError(t, err)
	return keys
}

// fakeSwapper scripts quotes and swap verdicts.
type fakeSwapper struct {
	mu sync.Mutex

	quotes   []uint64 // MinAmountOut per Quote call, the last one repeats
	quoteErr error
	onQuote  func(call int)

	buys    []bool // confirmation per buy call, unconfirmed past the end
	sells   []bool
	buyFee  uint64
	sellOut uint64
	sellFee uint64
	swapErr error
	onSwap  func(req SwapRequest) // runs before the verdict, outside the lock

	quoteCalls int
	requests   []SwapRequest
}

func (f *fakeSwapper) Quote(_ context.Context, _ *domain.PoolKeys, amountIn uint64, _ domain.Direction, _ decimal.Decimal) (*domain.Quote, error) {
	f.mu.Lock()
	f.quoteCalls++
	call := f.quoteCalls
	hook := f.onQuote
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	if len(f.quotes) == 0 {
		return nil, errors.New("no quote scripted")
	}
	v := f.quotes[len(f.quotes)-1]
	if call <= len(f.quotes) {
		v = f.quotes[call-1]
	}
	return &domain.Quote{AmountIn: amountIn, AmountOut: v, MinAmountOut: v}, nil
}

func (f *fakeSwapper) Swap(_ context.Context, req SwapRequest) (*SwapResult, error) {
	f.mu.Lock()
	hook := f.onSwap
	f.mu.Unlock()
	if hook != nil {
		hook(req)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.swapErr != nil {
		return nil, f.swapErr
	}

	var script []bool
	n := 0
	for _, r := range f.requests {
		if r.Direction == req.Direction {
			n++
		}
	}
	q := &domain.Quote{AmountIn: req.AmountIn}
	if req.Direction == domain.DirectionBuy {
		script = f.buys
		q.Fee = f.buyFee
	} else {
		script = f.sells
		q.AmountOut = f.sellOut
		q.MinAmountOut = f.sellOut
		q.Fee = f.sellFee
	}

	confirmed := n <= len(script) && script[n-1]
	res := &SwapResult{Confirmed: confirmed, Signature: "sig", Quote: q}
	if !confirmed {
		res.Err = errors.New("expired")
	}
	return res, nil
}

func (f *fakeSwapper) calls(d domain.Direction) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Direction == d {
			n++
		}
	}
	return n
}

// fakeFilter returns scripted results, the last one repeats.
type fakeFilter struct {
	mu      sync.Mutex
	results []bool
	errs    map[int]error // call number to error
	calls   int
}

func (f *fakeFilter) Evaluate(context.Context, *domain.PoolKeys) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[f.calls]; err != nil {
		return false, err
	}
	if len(f.results) == 0 {
		return true, nil
	}
	if f.calls <= len(f.results) {
		return f.results[f.calls-1], nil
	}
	return f.results[len(f.results)-1], nil
}

type fakeBalance struct {
	mu    sync.Mutex
	value uint64
	err   error
}

func (b *fakeBalance) Balance(context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, b.err
}

func (b *fakeBalance) fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func baseConfig() Config {
	return Config{
		Owner:              testOwner,
		QuoteMint:          solana.WrappedSOLMint,
		QuoteAmount:        100_000_000,
		MaxTokensAtTheTime: 1,
		MaxBuyRetries:      3,
		MaxSellRetries:     3,
		BuySlippage:        decimal.NewFromInt(20),
		SellSlippage:       decimal.NewFromInt(20),
		TakeProfit:         decimal.NewFromInt(10),
		StopLoss:           decimal.NewFromInt(10),
	}
}

type harness struct {
	engine  *Engine
	swapper *fakeSwapper
	filter  *fakeFilter
	pools   *memory.PoolStore
	journal *memory.Journal
	balance *fakeBalance

	snipe     *memory.SnipeList
	snipePath string
}

func newHarness(t *testing.T, cfg Config, swapper *fakeSwapper) *harness {
	t.Helper()
	h := &harness{
		swapper:   swapper,
		filter:    &fakeFilter{},
		pools:     memory.NewPoolStore(),
		journal:   memory.NewJournal(),
		balance:   &fakeBalance{value: 1_000_000_000},
		snipePath: filepath.Join(t.TempDir(), "snipe-list.txt"),
	}
	h.snipe = memory.NewSnipeList(h.snipePath, zerolog.Nop())

	markets := memory.NewMarketStore()
	require.NoError(t, markets.Save(context.Background(), testMarket, &domain.MarketState{EventQueue: key(12), Bids: key(13), Asks: key(14)}))
	require.NoError(t, h.pools.Save(context.Background(), testPoolID, testPool()))

	e, err := New(Options{
		Config:    cfg,
		Pools:     h.pools,
		Markets:   markets,
		SnipeList: h.snipe,
		Filter:    h.filter,
		Swapper:   swapper,
		Journal:   h.journal,
		Balance:   h.balance,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	require.NoError(t, err)
	require.NoError(t, e.Init(context.Background()))
	h.engine = e
	return h
}

func heldAccount(amount uint64) *domain.TokenAccount {
	return &domain.TokenAccount{Mint: testMint, Owner: testOwner, Amount: amount}
}
