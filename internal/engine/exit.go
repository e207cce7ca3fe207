package engine

import (
	"context"
	"math/big"
	"sync"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
)

var hundred = decimal.NewFromInt(100)

// Exit signals returned by the exit loop.
const (
	SignalImmediate  = "immediate"   // monitoring disabled
	SignalTakeProfit = "take_profit" // quote above take profit
	SignalStopLoss   = "stop_loss"   // quote below the watermark
	SignalExpired    = "expired"     // rounds ran out
	SignalAbandon    = "abandon"     // max loss exceeded, do not sell
	SignalCanceled   = "canceled"    // context ended
)

// amount converts raw units to a decimal.
func amount(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0)
}

// percentOf returns v*pct/100.
func percentOf(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}

// watermarks holds the active stop loss per mint.
type watermarks struct {
	mu sync.Mutex
	m  map[solana.PublicKey]decimal.Decimal
}

func newWatermarks() *watermarks {
	return &watermarks{m: make(map[solana.PublicKey]decimal.Decimal)}
}

// init stores v for mint unless a watermark exists and returns the active one.
func (w *watermarks) init(mint solana.PublicKey, v decimal.Decimal) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.m[mint]; ok {
		return cur
	}
	w.m[mint] = v
	return v
}

// raise moves the watermark up to v and returns the active one.
func (w *watermarks) raise(mint solana.PublicKey, v decimal.Decimal) decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur, ok := w.m[mint]
	if !ok || v.GreaterThan(cur) {
		w.m[mint] = v
		return v
	}
	return cur
}

func (w *watermarks) get(mint solana.PublicKey) (decimal.Decimal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	v, ok := w.m[mint]
	return v, ok
}

func (w *watermarks) clear(mint solana.PublicKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.m, mint)
}

// shouldSell reports whether a sell attempt should go ahead.
func (e *Engine) shouldSell(ctx context.Context, mint solana.PublicKey, entry, held uint64, keys *domain.PoolKeys) bool {
	signal := e.exitSignal(ctx, mint, entry, held, keys)
	observability.RecordExitDecision(signal)
	return signal != SignalAbandon && signal != SignalCanceled
}

// exitSignal polls the sell quote of held tokens against the take profit
// and stop loss derived from entry. Running out of rounds forces a sale.
func (e *Engine) exitSignal(ctx context.Context, mint solana.PublicKey, entry, held uint64, keys *domain.PoolKeys) string {
	interval, duration := e.cfg.PriceCheckInterval, e.cfg.PriceCheckDuration
	if interval == 0 || duration == 0 {
		return SignalImmediate
	}

	entryAmount := amount(entry)
	takeProfit := entryAmount.Add(percentOf(entryAmount, e.cfg.TakeProfit))
	stopLoss := e.watermarks.init(mint, entryAmount.Sub(percentOf(entryAmount, e.cfg.StopLoss)))
	maxLoss := percentOf(entryAmount, e.cfg.SkipSellingIfLostMoreThan)

	log := e.logger.With().Str("mint", mint.String()).Logger()
	signal := SignalExpired

	_, _, err := poll(ctx, interval, rounds(duration, interval), func(ctx context.Context) (bool, bool) {
		q, err := e.swapper.Quote(ctx, keys, held, domain.DirectionSell, e.cfg.SellSlippage)
		if err != nil {
			log.Debug().Err(err).Msg("quote failed, skipping round")
			return false, false
		}
		current := amount(q.MinAmountOut)

		if e.cfg.TrailingStopLoss {
			stopLoss = e.watermarks.raise(mint, current.Sub(percentOf(current, e.cfg.StopLoss)))
		}

		if e.cfg.SkipSellingIfLostMoreThan.IsPositive() && current.LessThan(maxLoss) {
			e.watermarks.clear(mint)
			signal = SignalAbandon
			return false, true
		}

		log.Debug().
			Str("current", current.String()).
			Str("take_profit", takeProfit.String()).
			Str("stop_loss", stopLoss.String()).
			Msg("exit check")

		switch {
		case current.LessThan(stopLoss):
			signal = SignalStopLoss
		case current.GreaterThan(takeProfit):
			signal = SignalTakeProfit
		default:
			return false, false
		}
		e.watermarks.clear(mint)
		return true, true
	})
	if err != nil {
		return SignalCanceled
	}
	return signal
}
