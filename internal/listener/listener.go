// Package listener turns program account subscriptions into buy and sell
// calls: new Raydium pools, new OpenBook markets and wallet token accounts.
package listener

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/raydium"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/spl"
	"solana-sniper/internal/storage"
)

// Trader runs the pipelines fed by the listener.
type Trader interface {
	Buy(ctx context.Context, poolID solana.PublicKey, pool *domain.PoolState)
	Sell(ctx context.Context, address solana.PublicKey, account *domain.TokenAccount)
}

// Listener subscribes to pool, market and wallet updates.
type Listener struct {
	ws      solana.WSClient
	pools   storage.PoolStore
	markets storage.MarketStore
	trader  Trader

	owner        solana.PublicKey
	quoteMint    solana.PublicKey
	cacheMarkets bool
	autoSell     bool
	startTime    uint64 // unix seconds, pools opening earlier are ignored

	wg     sync.WaitGroup
	logger zerolog.Logger
}

// Options contains configuration for creating a Listener.
type Options struct {
	WS      solana.WSClient
	Pools   storage.PoolStore
	Markets storage.MarketStore
	Trader  Trader

	Owner           solana.PublicKey
	QuoteMint       solana.PublicKey
	CacheNewMarkets bool
	AutoSell        bool
	StartTime       time.Time // Default: now
	Logger          zerolog.Logger
}

// New creates a Listener.
func New(opts Options) *Listener {
	start := opts.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	return &Listener{
		ws:           opts.WS,
		pools:        opts.Pools,
		markets:      opts.Markets,
		trader:       opts.Trader,
		owner:        opts.Owner,
		quoteMint:    opts.QuoteMint,
		cacheMarkets: opts.CacheNewMarkets,
		autoSell:     opts.AutoSell,
		startTime:    uint64(start.Unix()),
		logger:       opts.Logger.With().Str("component", "listener").Logger(),
	}
}

// PoolFilter matches swap-only AMM v4 pools quoted in quoteMint.
func PoolFilter(quoteMint solana.PublicKey) solana.ProgramFilter {
	status := make([]byte, 8)
	binary.LittleEndian.PutUint64(status, raydium.PoolStatusSwapOnly)
	return solana.ProgramFilter{
		DataSize: raydium.LiquidityStateSize,
		Memcmp: []solana.Memcmp{
			{Offset: raydium.PoolQuoteMintOffset, Bytes: quoteMint.Bytes()},
			{Offset: raydium.PoolMarketProgramIDOffset, Bytes: raydium.OpenBookProgramID.Bytes()},
			{Offset: raydium.PoolStatusOffset, Bytes: status},
		},
	}
}

// MarketFilter matches OpenBook markets quoted in quoteMint.
func MarketFilter(quoteMint solana.PublicKey) solana.ProgramFilter {
	return solana.ProgramFilter{
		DataSize: raydium.MarketStateSize,
		Memcmp:   []solana.Memcmp{{Offset: raydium.MarketQuoteMintOffset, Bytes: quoteMint.Bytes()}},
	}
}

// WalletFilter matches token accounts owned by owner.
func WalletFilter(owner solana.PublicKey) solana.ProgramFilter {
	return solana.ProgramFilter{
		DataSize: spl.TokenAccountSize,
		Memcmp:   []solana.Memcmp{{Offset: spl.TokenAccountOwnerOffset, Bytes: owner.Bytes()}},
	}
}

// Run subscribes and dispatches until ctx is cancelled, then waits for
// running pipelines to return.
func (l *Listener) Run(ctx context.Context) error {
	pools, err := l.ws.SubscribeProgram(ctx, raydium.AmmV4ProgramID, PoolFilter(l.quoteMint))
	if err != nil {
		return fmt.Errorf("subscribe pools: %w", err)
	}
	l.logger.Info().Msg("subscribed to pools")

	var markets <-chan solana.ProgramNotification
	if l.cacheMarkets {
		markets, err = l.ws.SubscribeProgram(ctx, raydium.OpenBookProgramID, MarketFilter(l.quoteMint))
		if err != nil {
			return fmt.Errorf("subscribe markets: %w", err)
		}
		l.logger.Info().Msg("subscribed to markets")
	}

	wallet, err := l.ws.SubscribeProgram(ctx, solana.TokenProgramID, WalletFilter(l.owner))
	if err != nil {
		return fmt.Errorf("subscribe wallet: %w", err)
	}
	l.logger.Info().Str("owner", l.owner.String()).Msg("subscribed to wallet")

	defer l.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("listener stopping")
			return ctx.Err()
		case n, ok := <-pools:
			if !ok {
				return errors.New("pool subscription closed")
			}
			l.handlePool(ctx, n)
		case n, ok := <-markets:
			if !ok {
				return errors.New("market subscription closed")
			}
			l.handleMarket(ctx, n)
		case n, ok := <-wallet:
			if !ok {
				return errors.New("wallet subscription closed")
			}
			l.handleWallet(ctx, n)
		}
	}
}

func (l *Listener) handlePool(ctx context.Context, n solana.ProgramNotification) {
	pool, err := raydium.DecodeLiquidityState(n.Account.Data)
	if err != nil {
		observability.RecordListenerError("pools")
		l.logger.Debug().Err(err).Str("pool", n.Pubkey.String()).Msg("undecodable pool")
		return
	}
	if pool.PoolOpenTime <= l.startTime {
		return
	}

	_, err = l.pools.Get(ctx, pool.BaseMint)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		l.logger.Warn().Err(err).Str("mint", pool.BaseMint.String()).Msg("pool lookup failed")
		return
	}
	if err := l.pools.Save(ctx, n.Pubkey, pool); err != nil {
		l.logger.Warn().Err(err).Str("mint", pool.BaseMint.String()).Msg("pool save failed")
		return
	}

	observability.RecordPoolDetected()
	l.logger.Info().
		Str("mint", pool.BaseMint.String()).
		Str("pool", n.Pubkey.String()).
		Uint64("open_time", pool.PoolOpenTime).
		Msg("new pool")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.trader.Buy(ctx, n.Pubkey, pool)
	}()
}

func (l *Listener) handleMarket(ctx context.Context, n solana.ProgramNotification) {
	market, err := raydium.DecodeMarketState(n.Account.Data)
	if err != nil {
		observability.RecordListenerError("markets")
		l.logger.Debug().Err(err).Str("market", n.Pubkey.String()).Msg("undecodable market")
		return
	}
	if err := l.markets.Save(ctx, n.Pubkey, market); err != nil {
		l.logger.Warn().Err(err).Str("market", n.Pubkey.String()).Msg("market save failed")
		return
	}
	observability.RecordMarketCached()
}

func (l *Listener) handleWallet(ctx context.Context, n solana.ProgramNotification) {
	account, err := spl.DecodeTokenAccount(n.Account.Data)
	if err != nil {
		observability.RecordListenerError("wallet")
		l.logger.Debug().Err(err).Str("account", n.Pubkey.String()).Msg("undecodable token account")
		return
	}
	if account.Mint == l.quoteMint {
		return
	}
	observability.RecordWalletUpdate()
	if !l.autoSell {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.trader.Sell(ctx, n.Pubkey, account)
	}()
}
