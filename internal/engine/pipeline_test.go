package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage/memory"
)

func TestEndToEnd_BuyThenSell(t *testing.T) {
	cfg := baseConfig()
	cfg.PriceCheckInterval = time.Millisecond
	cfg.PriceCheckDuration = 10 * time.Millisecond

	swapper := &fakeSwapper{
		quotes:  []uint64{200_000_000},
		buys:    []bool{false, true, true},
		sells:   []bool{true},
		buyFee:  250_000,
		sellOut: 150_000_000,
		sellFee: 375_000,
	}
	h := newHarness(t, cfg, swapper)
	ctx := context.Background()

	h.engine.Buy(ctx, testPoolID, testPool())

	assert.Equal(t, 2, swapper.calls(domain.DirectionBuy))
	trade, ok := h.engine.Trade(testMint)
	require.True(t, ok)
	assert.Equal(t, domain.TradeOpened, trade.State)
	assert.Equal(t, uint64(100_000_000), trade.EntryAmount)
	assert.Equal(t, uint64(250_000), trade.EntryFee)
	assert.Equal(t, 0, h.engine.admission.InFlight())

	// keep the running balance by failing the refresh
	h.balance.fail(errors.New("rpc down"))
	h.engine.Sell(ctx, testOwner, heldAccount(5_000_000))

	assert.Equal(t, 1, swapper.calls(domain.DirectionSell))
	assert.Equal(t, 0, h.engine.ActiveTrades())
	assert.Equal(t, uint64(1), h.engine.LastSequenceID())

	const profit = 150_000_000 - 100_000_000 - 250_000 - 375_000
	assert.Equal(t, uint64(1_000_000_000+profit), h.engine.Balance())

	records := h.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, uint64(1), records[0].SequenceID)
	assert.Equal(t, trade.Ref, records[0].TradeRef)
	assert.Equal(t, domain.ReasonClosed, records[0].Reason)
	assert.Equal(t, int64(profit), records[0].Profit)
	assert.Equal(t, uint64(1_000_000_000+profit), records[0].Balance)

	_, ok = h.engine.watermarks.get(testMint)
	assert.False(t, ok)
}

func TestBuy_AllAttemptsFail(t *testing.T) {
	swapper := &fakeSwapper{buys: []bool{false, false, false}}
	h := newHarness(t, baseConfig(), swapper)

	h.engine.Buy(context.Background(), testPoolID, testPool())

	assert.Equal(t, 3, swapper.calls(domain.DirectionBuy))
	assert.Equal(t, 0, h.engine.ActiveTrades())
	assert.Empty(t, h.journal.Records())
	assert.Equal(t, 0, h.engine.admission.InFlight())
}

func TestBuy_SwapErrorsCountAsAttempts(t *testing.T) {
	swapper := &fakeSwapper{swapErr: errors.New("blockhash unavailable")}
	h := newHarness(t, baseConfig(), swapper)

	h.engine.Buy(context.Background(), testPoolID, testPool())

	assert.Equal(t, 3, swapper.calls(domain.DirectionBuy))
	assert.Equal(t, 0, h.engine.ActiveTrades())
}

func TestBuy_RejectedAtCapacity(t *testing.T) {
	swapper := &fakeSwapper{buys: []bool{true}}
	h := newHarness(t, baseConfig(), swapper)

	require.True(t, h.engine.admission.TryAdmitBuy())
	h.engine.Buy(context.Background(), testPoolID, testPool())

	assert.Equal(t, 0, swapper.calls(domain.DirectionBuy))
	assert.Equal(t, 1, h.engine.admission.InFlight())
}

func TestBuy_MarketMissing(t *testing.T) {
	swapper := &fakeSwapper{buys: []bool{true}}
	h := newHarness(t, baseConfig(), swapper)

	pool := testPool()
	pool.MarketID = key(99)
	h.engine.Buy(context.Background(), testPoolID, pool)

	assert.Equal(t, 0, swapper.calls(domain.DirectionBuy))
	assert.Equal(t, 0, h.engine.ActiveTrades())
	assert.Equal(t, 0, h.engine.admission.InFlight())
}

func TestBuy_NotQualified(t *testing.T) {
	cfg := baseConfig()
	cfg.FilterCheckInterval = time.Millisecond
	cfg.FilterCheckDuration = 3 * time.Millisecond
	cfg.ConsecutiveFilterMatches = 1

	swapper := &fakeSwapper{buys: []bool{true}}
	h := newHarness(t, cfg, swapper)
	h.filter.results = []bool{false}

	h.engine.Buy(context.Background(), testPoolID, testPool())

	assert.Equal(t, 3, h.filter.calls)
	assert.Equal(t, 0, swapper.calls(domain.DirectionBuy))
}

func TestBuy_OneTradePerMint(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxTokensAtTheTime = 2
	swapper := &fakeSwapper{buys: []bool{true, true}}
	h := newHarness(t, cfg, swapper)

	h.engine.Buy(context.Background(), testPoolID, testPool())
	h.engine.Buy(context.Background(), testPoolID, testPool())

	assert.Equal(t, 1, swapper.calls(domain.DirectionBuy))
	assert.Equal(t, 1, h.engine.ActiveTrades())
}

func TestBuy_SnipeList(t *testing.T) {
	cfg := baseConfig()
	cfg.UseSnipeList = true
	cfg.FilterCheckInterval = time.Millisecond
	cfg.FilterCheckDuration = 3 * time.Millisecond

	swapper := &fakeSwapper{buys: []bool{true}}
	h := newHarness(t, cfg, swapper)
	h.filter.results = []bool{false}

	h.engine.Buy(context.Background(), testPoolID, testPool())
	assert.Equal(t, 0, swapper.calls(domain.DirectionBuy), "unlisted mint bought")

	require.NoError(t, os.WriteFile(h.snipePath, []byte(testMint.String()+"\n"), 0o644))
	require.NoError(t, h.snipe.Load())

	h.engine.Buy(context.Background(), testPoolID, testPool())
	assert.Equal(t, 1, swapper.calls(domain.DirectionBuy))
	assert.Equal(t, 0, h.filter.calls, "filters run in snipe list mode")
}

func openTrade(t *testing.T, h *harness) domain.Trade {
	t.Helper()
	h.swapper.buys = []bool{true}
	h.engine.Buy(context.Background(), testPoolID, testPool())
	trade, ok := h.engine.Trade(testMint)
	require.True(t, ok)
	require.Equal(t, domain.TradeOpened, trade.State)
	return trade
}

func TestSell_AllAttemptsFail(t *testing.T) {
	h := newHarness(t, baseConfig(), &fakeSwapper{buyFee: 250_000})
	openTrade(t, h)
	h.balance.fail(errors.New("rpc down"))

	h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))

	assert.Equal(t, 3, h.swapper.calls(domain.DirectionSell))
	records := h.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.ReasonSellFailed, records[0].Reason)
	assert.Equal(t, uint64(0), records[0].ExitAmount)
	assert.Equal(t, int64(-100_250_000), records[0].Profit)
	assert.Equal(t, uint64(1_000_000_000-100_250_000), h.engine.Balance())
	assert.Equal(t, 0, h.engine.ActiveTrades())
}

func TestSell_Abandoned(t *testing.T) {
	cfg := baseConfig()
	cfg.PriceCheckInterval = time.Millisecond
	cfg.PriceCheckDuration = 3 * time.Millisecond
	cfg.SkipSellingIfLostMoreThan = decimal.NewFromInt(50)

	h := newHarness(t, cfg, &fakeSwapper{quotes: []uint64{10_000_000}})
	openTrade(t, h)

	h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))

	assert.Equal(t, 0, h.swapper.calls(domain.DirectionSell))
	records := h.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.ReasonAbandoned, records[0].Reason)
	assert.Equal(t, 0, h.engine.ActiveTrades())
}

func TestSell_Untracked(t *testing.T) {
	swapper := &fakeSwapper{sells: []bool{true}, sellOut: 1}
	h := newHarness(t, baseConfig(), swapper)

	h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))

	assert.Equal(t, 1, swapper.calls(domain.DirectionSell))
	assert.Empty(t, h.journal.Records())
	assert.Equal(t, uint64(0), h.engine.LastSequenceID())
}

func TestSell_EarlyAbortsCloseTrackedTrade(t *testing.T) {
	tests := []struct {
		name    string
		account func() *domain.TokenAccount
		prepare func(h *harness)
	}{
		{
			name:    "empty token account",
			account: func() *domain.TokenAccount { return heldAccount(0) },
		},
		{
			name:    "pool missing",
			account: func() *domain.TokenAccount { return heldAccount(5_000_000) },
			prepare: func(h *harness) {
				h.engine.pools = memory.NewPoolStore()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, baseConfig(), &fakeSwapper{sells: []bool{true}})
			trade := openTrade(t, h)
			if tt.prepare != nil {
				tt.prepare(h)
			}

			h.engine.Sell(context.Background(), testOwner, tt.account())

			assert.Equal(t, 0, h.swapper.calls(domain.DirectionSell))
			records := h.journal.Records()
			require.Len(t, records, 1)
			assert.Equal(t, trade.Ref, records[0].TradeRef)
			assert.Equal(t, domain.ReasonSellFailed, records[0].Reason)
			assert.Equal(t, uint64(0), records[0].ExitAmount)
			assert.Equal(t, 0, h.engine.ActiveTrades())
			assert.Equal(t, 0, h.engine.admission.InFlight())
		})
	}
}

func TestSell_EarlyAbortUntracked(t *testing.T) {
	h := newHarness(t, baseConfig(), &fakeSwapper{sells: []bool{true}})
	other := heldAccount(5_000_000)
	other.Mint = key(77)

	h.engine.Sell(context.Background(), testOwner, other)

	assert.Equal(t, 0, h.swapper.calls(domain.DirectionSell))
	assert.Empty(t, h.journal.Records())
	assert.Equal(t, uint64(0), h.engine.LastSequenceID())
}

func TestSell_CanceledDuringDelay(t *testing.T) {
	cfg := baseConfig()
	cfg.AutoSellDelay = time.Hour
	h := newHarness(t, cfg, &fakeSwapper{sells: []bool{true}})
	openTrade(t, h)
	h.balance.mu.Lock()
	h.balance.value = 42
	h.balance.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.engine.Sell(ctx, testOwner, heldAccount(5_000_000))

	assert.Equal(t, 0, h.swapper.calls(domain.DirectionSell))
	records := h.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.ReasonSellFailed, records[0].Reason)
	assert.Equal(t, uint64(42), records[0].Balance)
	assert.Equal(t, uint64(42), h.engine.Balance())
	assert.Equal(t, 0, h.engine.ActiveTrades())
}

func TestSell_TakesOverTradeWhileBuyConfirms(t *testing.T) {
	swapper := &fakeSwapper{buys: []bool{true}, sells: []bool{true}, sellOut: 150_000_000}
	h := newHarness(t, baseConfig(), swapper)

	// The tokens land and the wallet listener fires before the buy
	// pipeline has seen its confirmation.
	var once sync.Once
	swapper.onSwap = func(req SwapRequest) {
		if req.Direction != domain.DirectionBuy {
			return
		}
		once.Do(func() {
			trade, ok := h.engine.Trade(testMint)
			require.True(t, ok)
			require.Equal(t, domain.TradeStarted, trade.State)
			h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))
		})
	}

	h.engine.Buy(context.Background(), testPoolID, testPool())

	assert.Equal(t, 1, swapper.calls(domain.DirectionSell))
	records := h.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, domain.ReasonClosed, records[0].Reason)
	assert.Equal(t, uint64(100_000_000), records[0].EntryAmount)
	assert.Equal(t, uint64(150_000_000), records[0].ExitAmount)
	assert.Equal(t, int64(50_000_000), records[0].Profit)
	assert.Equal(t, 0, h.engine.ActiveTrades())

	// The mint is free for a new trade.
	swapper.onSwap = nil
	h.engine.Buy(context.Background(), testPoolID, testPool())
	trade, ok := h.engine.Trade(testMint)
	require.True(t, ok)
	assert.Equal(t, domain.TradeOpened, trade.State)
}

func TestSell_ClaimedTradeOpenedByLateBuy(t *testing.T) {
	h := newHarness(t, baseConfig(), &fakeSwapper{sells: []bool{true}, sellOut: 90_000_000})
	trade := domain.NewTrade(testMint)
	require.NoError(t, trade.Start(1))
	require.True(t, h.engine.trades.add(trade))

	// The sell claims the started trade, then the buy confirms before the
	// sell swap lands.
	h.swapper.onSwap = func(req SwapRequest) {
		if req.Direction == domain.DirectionSell {
			err := h.engine.trades.update(testMint, trade.Ref, func(t *domain.Trade) error {
				return t.Open(80_000_000, 1_000, 2)
			})
			require.NoError(t, err)
		}
	}

	h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))

	records := h.journal.Records()
	require.Len(t, records, 1)
	assert.Equal(t, uint64(80_000_000), records[0].EntryAmount)
	assert.Equal(t, uint64(1_000), records[0].EntryFee)
	assert.Equal(t, int64(9_999_000), records[0].Profit)
	assert.Equal(t, 0, h.engine.ActiveTrades())
}

func TestBuy_FailedBuyKeepsClaimedTrade(t *testing.T) {
	swapper := &fakeSwapper{buys: []bool{false}}
	cfg := baseConfig()
	cfg.MaxBuyRetries = 1
	h := newHarness(t, cfg, swapper)

	var claimed string
	swapper.onSwap = func(req SwapRequest) {
		if req.Direction != domain.DirectionBuy {
			return
		}
		trade, ok := h.engine.Trade(testMint)
		require.True(t, ok)
		claimed = h.engine.claim(testMint, trade.Ref, h.engine.logger)
	}

	h.engine.Buy(context.Background(), testPoolID, testPool())

	require.NotEmpty(t, claimed)
	trade, ok := h.engine.Trade(testMint)
	require.True(t, ok, "trade claimed by a sell must survive the failed buy")
	assert.Equal(t, claimed, trade.Ref)

	h.engine.finalize(context.Background(), testMint, claimed, domain.ReasonSellFailed, nil, h.engine.logger)
	require.Len(t, h.journal.Records(), 1)
	assert.Equal(t, 0, h.engine.ActiveTrades())
}

func TestSell_JournalFailureStillFinalizes(t *testing.T) {
	h := newHarness(t, baseConfig(), &fakeSwapper{sells: []bool{true}, sellOut: 100_000_000})
	openTrade(t, h)

	// occupy sequence id 1 so the append collides
	require.NoError(t, h.journal.Append(context.Background(), &domain.JournalRecord{SequenceID: 1, TradeRef: "other"}))

	h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))

	assert.Equal(t, 0, h.engine.ActiveTrades())
	assert.Equal(t, uint64(1), h.engine.LastSequenceID())
	assert.Len(t, h.journal.Records(), 1)
}

func TestInit_RecoversSequence(t *testing.T) {
	h := newHarness(t, baseConfig(), &fakeSwapper{sells: []bool{true}, sellOut: 100_000_000})
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, h.journal.Append(context.Background(), &domain.JournalRecord{SequenceID: i, TradeRef: fmt.Sprintf("ref-%d", i)}))
	}
	require.NoError(t, h.engine.Init(context.Background()))
	assert.Equal(t, uint64(5), h.engine.LastSequenceID())

	openTrade(t, h)
	h.engine.Sell(context.Background(), testOwner, heldAccount(5_000_000))

	records := h.journal.Records()
	require.Len(t, records, 6)
	assert.Equal(t, uint64(6), records[5].SequenceID)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	h := newHarness(t, baseConfig(), &fakeSwapper{})
	cfg := baseConfig()
	cfg.UseSnipeList = true
	_, err = New(Options{
		Config:  cfg,
		Pools:   h.pools,
		Markets: h.engine.markets,
		Filter:  h.filter,
		Swapper: h.swapper,
		Journal: h.journal,
		Balance: h.balance,
	})
	assert.Error(t, err)
}
