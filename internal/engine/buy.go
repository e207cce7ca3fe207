package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/raydium"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// Buy runs the buy pipeline for a new pool. Failures are logged, never
// returned, so listeners can fire and forget.
func (e *Engine) Buy(ctx context.Context, poolID solana.PublicKey, pool *domain.PoolState) {
	mint := pool.BaseMint
	log := e.logger.With().Str("mint", mint.String()).Str("pool", poolID.String()).Logger()

	if e.cfg.UseSnipeList && !e.snipeList.Contains(ctx, mint) {
		log.Debug().Msg("skipping buy, mint not in snipe list")
		return
	}

	if e.cfg.AutoBuyDelay > 0 {
		log.Debug().Dur("delay", e.cfg.AutoBuyDelay).Msg("waiting before buy")
		if err := sleep(ctx, e.cfg.AutoBuyDelay); err != nil {
			return
		}
	}

	admitted := e.admission.TryAdmitBuy()
	observability.RecordBuyAdmission(admitted)
	if !admitted {
		log.Debug().Int("in_flight", e.admission.InFlight()).Msg("skipping buy, at capacity")
		return
	}
	defer e.admission.ReleaseBuy()

	if err := e.buy(ctx, poolID, pool, log); err != nil {
		log.Error().Err(err).Msg("buy failed")
	}
}

func (e *Engine) buy(ctx context.Context, poolID solana.PublicKey, pool *domain.PoolState, log zerolog.Logger) error {
	mint := pool.BaseMint

	var (
		market *domain.MarketState
		ata    solana.PublicKey
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := e.markets.Get(gctx, pool.MarketID)
		if err != nil {
			return fmt.Errorf("market %s: %w", pool.MarketID, err)
		}
		market = m
		return nil
	})
	g.Go(func() error {
		a, err := solana.FindAssociatedTokenAddress(e.cfg.Owner, mint)
		if err != nil {
			return err
		}
		ata = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	keys, err := raydium.BuildPoolKeys(poolID, pool, market)
	if err != nil {
		return fmt.Errorf("pool keys: %w", err)
	}

	if !e.cfg.UseSnipeList && !e.qualify(ctx, keys) {
		log.Debug().Msg("skipping buy, pool did not qualify")
		return nil
	}

	quoteATA, err := solana.FindAssociatedTokenAddress(e.cfg.Owner, e.cfg.QuoteMint)
	if err != nil {
		return err
	}

	trade := domain.NewTrade(mint)
	if err := trade.Start(e.nowMs()); err != nil {
		return err
	}
	if !e.trades.add(trade) {
		log.Warn().Msg("skipping buy, trade already active")
		return nil
	}
	log = log.With().Str("trade_ref", trade.Ref).Logger()

	opened := false
	defer func() {
		if !opened {
			e.trades.discard(mint, trade.Ref)
		}
	}()

	req := SwapRequest{
		Keys:        keys,
		Source:      quoteATA,
		Destination: ata,
		TokenIn:     e.cfg.QuoteMint,
		TokenOut:    mint,
		AmountIn:    e.cfg.QuoteAmount,
		Slippage:    e.cfg.BuySlippage,
		Direction:   domain.DirectionBuy,
	}

	for attempt := 1; attempt <= e.cfg.MaxBuyRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := e.swapper.Swap(ctx, req)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("buy attempt failed")
			continue
		}
		if !res.Confirmed {
			log.Debug().Err(res.Err).Int("attempt", attempt).Str("signature", res.Signature).Msg("buy not confirmed")
			continue
		}

		err = e.trades.update(mint, trade.Ref, func(t *domain.Trade) error {
			return t.Open(res.Quote.AmountIn, res.Quote.Fee, e.nowMs())
		})
		if errors.Is(err, storage.ErrNotFound) {
			log.Info().Str("signature", res.Signature).Msg("bought, trade already closed by a sell")
			return nil
		}
		if err != nil {
			return fmt.Errorf("open trade: %w", err)
		}
		opened = true

		log.Info().
			Int("attempt", attempt).
			Str("signature", res.Signature).
			Uint64("entry_amount", res.Quote.AmountIn).
			Uint64("entry_fee", res.Quote.Fee).
			Msg("bought")
		return nil
	}

	return fmt.Errorf("%w after %d attempts", ErrNotConfirmed, e.cfg.MaxBuyRetries)
}
