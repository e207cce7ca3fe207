package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/raydium"
	"solana-sniper/internal/solana"
)

// Sell runs the sell pipeline for a wallet token account. Positions this
// process did not open are sold but not journaled. A tracked trade is
// closed and journaled on every path, aborts included.
func (e *Engine) Sell(ctx context.Context, address solana.PublicKey, account *domain.TokenAccount) {
	observability.UpdateSellsInFlight(e.admission.BeginSell())
	defer func() {
		observability.UpdateSellsInFlight(e.admission.EndSell())
	}()

	mint := account.Mint
	log := e.logger.With().Str("mint", mint.String()).Logger()

	trade, tracked := e.trades.get(mint)
	if tracked {
		log = log.With().Str("trade_ref", trade.Ref).Logger()
	} else {
		log.Warn().Msg("no active trade for mint, sell will not be journaled")
	}

	// ref stays empty for untracked sells, which finalize only
	// answers with a balance refresh.
	var ref string
	abort := func() {
		if tracked {
			ref = e.claim(mint, trade.Ref, log)
		}
		e.finalize(context.WithoutCancel(ctx), mint, ref, domain.ReasonSellFailed, nil, log)
	}

	keys, err := e.resolve(ctx, mint)
	if err != nil {
		log.Error().Err(err).Msg("sell aborted")
		abort()
		return
	}
	if account.Amount == 0 {
		log.Info().Msg("sell aborted, empty token account")
		abort()
		return
	}

	if e.cfg.AutoSellDelay > 0 {
		log.Debug().Dur("delay", e.cfg.AutoSellDelay).Msg("waiting before sell")
		if err := sleep(ctx, e.cfg.AutoSellDelay); err != nil {
			log.Info().Msg("sell canceled during delay")
			abort()
			return
		}
	}

	if tracked {
		ref = e.claim(mint, trade.Ref, log)
	}

	entry := e.cfg.QuoteAmount
	if ref != "" && trade.EntryAmount > 0 {
		entry = trade.EntryAmount
	}

	reason, quote, err := e.sell(ctx, address, account, keys, entry, log)
	if err != nil {
		log.Error().Err(err).Msg("sell failed")
	}
	e.finalize(context.WithoutCancel(ctx), mint, ref, reason, quote, log)
}

// claim moves the trade to started for this sell and returns its ref, or
// "" when the trade is gone. A trade still started by its buy is taken
// over as is; a later buy confirmation opens it in place.
func (e *Engine) claim(mint solana.PublicKey, ref string, log zerolog.Logger) string {
	err := e.trades.claim(mint, ref, func(t *domain.Trade) error {
		if t.State == domain.TradeStarted {
			return nil
		}
		return t.Start(e.nowMs())
	})
	if err != nil {
		log.Warn().Err(err).Msg("cannot start trade, selling untracked")
		return ""
	}
	return ref
}

// resolve builds the pool keys of the pool trading mint.
func (e *Engine) resolve(ctx context.Context, mint solana.PublicKey) (*domain.PoolKeys, error) {
	pool, err := e.pools.Get(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("pool for %s: %w", mint, err)
	}
	market, err := e.markets.Get(ctx, pool.State.MarketID)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", pool.State.MarketID, err)
	}
	return raydium.BuildPoolKeys(pool.ID, &pool.State, market)
}

// sell retries the exit until a swap confirms. It returns the close reason
// and, on success, the quote the confirmed swap was built on.
func (e *Engine) sell(ctx context.Context, address solana.PublicKey, account *domain.TokenAccount, keys *domain.PoolKeys, entry uint64, log zerolog.Logger) (domain.CloseReason, *domain.Quote, error) {
	quoteATA, err := solana.FindAssociatedTokenAddress(e.cfg.Owner, e.cfg.QuoteMint)
	if err != nil {
		return domain.ReasonSellFailed, nil, err
	}

	req := SwapRequest{
		Keys:        keys,
		Source:      address,
		Destination: quoteATA,
		TokenIn:     account.Mint,
		TokenOut:    e.cfg.QuoteMint,
		AmountIn:    account.Amount,
		Slippage:    e.cfg.SellSlippage,
		Direction:   domain.DirectionSell,
	}

	for attempt := 1; attempt <= e.cfg.MaxSellRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return domain.ReasonSellFailed, nil, err
		}

		if !e.shouldSell(ctx, account.Mint, entry, account.Amount, keys) {
			if err := ctx.Err(); err != nil {
				return domain.ReasonSellFailed, nil, err
			}
			log.Info().Msg("exit loop abandoned position")
			return domain.ReasonAbandoned, nil, nil
		}

		res, err := e.swapper.Swap(ctx, req)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("sell attempt failed")
			continue
		}
		if !res.Confirmed {
			log.Debug().Err(res.Err).Int("attempt", attempt).Str("signature", res.Signature).Msg("sell not confirmed")
			continue
		}

		log.Info().
			Int("attempt", attempt).
			Str("signature", res.Signature).
			Uint64("exit_amount", res.Quote.AmountOut).
			Uint64("exit_fee", res.Quote.Fee).
			Msg("sold")
		return domain.ReasonClosed, res.Quote, nil
	}

	return domain.ReasonSellFailed, nil, fmt.Errorf("%w after %d attempts", ErrNotConfirmed, e.cfg.MaxSellRetries)
}

// finalize closes the claimed trade identified by ref, journals it and
// drops it from the active set. Untracked sells only refresh the balance.
func (e *Engine) finalize(ctx context.Context, mint solana.PublicKey, ref string, reason domain.CloseReason, quote *domain.Quote, log zerolog.Logger) {
	defer e.watermarks.clear(mint)

	if ref == "" {
		e.refreshBalance(ctx)
		return
	}

	var exitAmount, exitFee uint64
	if quote != nil {
		exitAmount, exitFee = quote.AmountOut, quote.Fee
	}

	var closed domain.Trade
	err := e.trades.update(mint, ref, func(t *domain.Trade) error {
		if t.EntryAmount == 0 {
			// the buy never confirmed to us, but its tokens arrived
			t.EntryAmount = e.cfg.QuoteAmount
		}
		if err := t.Close(exitAmount, exitFee, reason, e.nowMs()); err != nil {
			return err
		}
		closed = *t
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("close trade")
		e.trades.remove(mint, ref)
		e.refreshBalance(ctx)
		return
	}

	e.applyProfit(closed.Profit)
	balance := e.refreshBalance(ctx)
	seq := e.nextSequenceID()

	if err := e.journal.Append(ctx, domain.NewJournalRecord(seq, &closed, balance)); err != nil {
		observability.RecordJournalError()
		log.Warn().Err(err).Uint64("sequence_id", seq).Msg("journal append failed")
	}
	e.trades.remove(mint, ref)
	observability.RecordTradeClosed(string(reason))

	log.Info().
		Uint64("sequence_id", seq).
		Str("reason", string(reason)).
		Int64("profit", closed.Profit).
		Uint64("balance", balance).
		Msg("trade closed")
}
