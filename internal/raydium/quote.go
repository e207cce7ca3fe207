package raydium

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/spl"
)

// Trade fee of AMM v4 pools: 25 / 10000.
const (
	FeeNumerator   = 25
	FeeDenominator = 10000
)

// ErrEmptyPool is returned when a reserve is zero.
var ErrEmptyPool = errors.New("pool has no liquidity")

var hundred = decimal.NewFromInt(100)

// Reserves are the raw vault balances of a pool.
type Reserves struct {
	Base  uint64
	Quote uint64
}

// ComputeQuote prices a swap of amountIn against the constant product
// reserves with the pool trade fee. slippage is a percentage.
// Fee is always expressed in quote units.
func ComputeQuote(reserves Reserves, amountIn uint64, direction domain.Direction, slippage decimal.Decimal) (*domain.Quote, error) {
	reserveIn, reserveOut := reserves.Quote, reserves.Base
	if direction == domain.DirectionSell {
		reserveIn, reserveOut = reserves.Base, reserves.Quote
	}
	if reserveIn == 0 || reserveOut == 0 {
		return nil, ErrEmptyPool
	}

	in := new(big.Int).SetUint64(amountIn)
	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)

	feeIn := new(big.Int).Mul(in, big.NewInt(FeeNumerator))
	feeIn.Quo(feeIn, big.NewInt(FeeDenominator))
	inAfterFee := new(big.Int).Sub(in, feeIn)

	out := constantProduct(rIn, rOut, inAfterFee)

	q := &domain.Quote{
		AmountIn:  amountIn,
		AmountOut: out.Uint64(),
	}

	if direction == domain.DirectionBuy {
		q.Fee = feeIn.Uint64()
	} else {
		outNoFee := constantProduct(rIn, rOut, in)
		q.Fee = new(big.Int).Sub(outNoFee, out).Uint64()
	}

	keep := hundred.Sub(slippage)
	if keep.IsNegative() {
		keep = decimal.Zero
	}
	minOut := decimal.NewFromBigInt(out, 0).Mul(keep).Div(hundred).Floor()
	q.MinAmountOut = minOut.BigInt().Uint64()

	return q, nil
}

// constantProduct returns floor(rOut * in / (rIn + in)).
func constantProduct(rIn, rOut, in *big.Int) *big.Int {
	num := new(big.Int).Mul(rOut, in)
	den := new(big.Int).Add(rIn, in)
	return num.Quo(num, den)
}

// Quoter prices swaps from live vault balances.
type Quoter struct {
	rpc solana.RPCClient
}

// NewQuoter creates a Quoter.
func NewQuoter(rpc solana.RPCClient) *Quoter {
	return &Quoter{rpc: rpc}
}

// Reserves fetches both vault balances in one call.
func (q *Quoter) Reserves(ctx context.Context, keys *domain.PoolKeys) (Reserves, error) {
	accounts, err := q.rpc.GetMultipleAccounts(ctx, []solana.PublicKey{keys.BaseVault, keys.QuoteVault})
	if err != nil {
		return Reserves{}, fmt.Errorf("fetch vaults: %w", err)
	}
	if len(accounts) != 2 || accounts[0] == nil || accounts[1] == nil {
		return Reserves{}, fmt.Errorf("vault accounts missing for pool %s", keys.ID)
	}

	base, err := spl.DecodeTokenAccount(accounts[0].Data)
	if err != nil {
		return Reserves{}, fmt.Errorf("base vault: %w", err)
	}
	quote, err := spl.DecodeTokenAccount(accounts[1].Data)
	if err != nil {
		return Reserves{}, fmt.Errorf("quote vault: %w", err)
	}

	return Reserves{Base: base.Amount, Quote: quote.Amount}, nil
}

// Quote prices a swap of amountIn at current reserves.
func (q *Quoter) Quote(ctx context.Context, keys *domain.PoolKeys, amountIn uint64, direction domain.Direction, slippage decimal.Decimal) (*domain.Quote, error) {
	reserves, err := q.Reserves(ctx, keys)
	if err != nil {
		return nil, err
	}
	return ComputeQuote(reserves, amountIn, direction, slippage)
}
