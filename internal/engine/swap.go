package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/executor"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/raydium"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/spl"
)

// Swapper prices and executes swaps.
type Swapper interface {
	Quote(ctx context.Context, keys *domain.PoolKeys, amountIn uint64, direction domain.Direction, slippage decimal.Decimal) (*domain.Quote, error)
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}

// SwapRequest describes one swap against a pool.
type SwapRequest struct {
	Keys        *domain.PoolKeys
	Source      solana.PublicKey // token account spent from
	Destination solana.PublicKey // token account received into
	TokenIn     solana.PublicKey
	TokenOut    solana.PublicKey
	AmountIn    uint64
	Slippage    decimal.Decimal // percent
	Direction   domain.Direction
}

// SwapResult is the executor verdict plus the quote the swap was built on.
type SwapResult struct {
	Confirmed bool
	Signature string
	Err       error
	Quote     *domain.Quote
}

// SwapAdapter builds, signs and executes Raydium swaps for one wallet.
type SwapAdapter struct {
	rpc      solana.RPCClient
	quoter   *raydium.Quoter
	executor executor.Executor
	wallet   solana.Keypair

	unitLimit uint32
	unitPrice uint64

	logger zerolog.Logger
}

// SwapAdapterOptions configures a SwapAdapter.
type SwapAdapterOptions struct {
	RPC              solana.RPCClient
	Executor         executor.Executor
	Wallet           solana.Keypair
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64 // micro-lamports
	Logger           zerolog.Logger
}

// NewSwapAdapter creates a SwapAdapter.
func NewSwapAdapter(opts SwapAdapterOptions) *SwapAdapter {
	return &SwapAdapter{
		rpc:       opts.RPC,
		quoter:    raydium.NewQuoter(opts.RPC),
		executor:  opts.Executor,
		wallet:    opts.Wallet,
		unitLimit: opts.ComputeUnitLimit,
		unitPrice: opts.ComputeUnitPrice,
		logger:    opts.Logger.With().Str("component", "swap").Logger(),
	}
}

var _ Swapper = (*SwapAdapter)(nil)

// Quote prices a swap from current vault balances.
func (s *SwapAdapter) Quote(ctx context.Context, keys *domain.PoolKeys, amountIn uint64, direction domain.Direction, slippage decimal.Decimal) (*domain.Quote, error) {
	return s.quoter.Quote(ctx, keys, amountIn, direction, slippage)
}

// Instructions assembles the instruction list of req priced at q.
func (s *SwapAdapter) Instructions(req SwapRequest, q *domain.Quote) []solana.Instruction {
	owner := s.wallet.PublicKey()

	var ixs []solana.Instruction
	if !s.executor.ManagesPriority() {
		ixs = append(ixs,
			solana.SetComputeUnitLimit(s.unitLimit),
			solana.SetComputeUnitPrice(s.unitPrice),
		)
	}
	if req.Direction == domain.DirectionBuy {
		ixs = append(ixs, spl.CreateAssociatedTokenAccountIdempotent(owner, req.Destination, owner, req.TokenOut))
	}
	ixs = append(ixs, raydium.SwapBaseIn(req.Keys, req.Source, req.Destination, owner, req.AmountIn, q.MinAmountOut))
	if req.Direction == domain.DirectionSell {
		ixs = append(ixs, spl.CloseAccount(req.Source, owner, owner))
	}
	return ixs
}

// Swap quotes, signs and executes req. A returned error means nothing was
// confirmed; an unconfirmed verdict is reported through the result.
func (s *SwapAdapter) Swap(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	if !req.Direction.IsValid() {
		return nil, fmt.Errorf("invalid direction %q", req.Direction)
	}
	start := time.Now()

	q, err := s.quoter.Quote(ctx, req.Keys, req.AmountIn, req.Direction, req.Slippage)
	if err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}

	blockhash, err := s.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(s.wallet.PublicKey(), s.Instructions(req, q), blockhash.Hash)
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}
	if err := tx.Sign(s.wallet); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	s.logger.Debug().
		Str("mint", req.Keys.BaseMint.String()).
		Str("direction", req.Direction.String()).
		Uint64("amount_in", req.AmountIn).
		Uint64("min_amount_out", q.MinAmountOut).
		Str("signature", tx.Signature().String()).
		Msg("executing swap")

	res, err := s.executor.ExecuteAndConfirm(ctx, tx, s.wallet, blockhash)
	if err != nil {
		observability.RecordSwap(req.Direction.String(), "error", time.Since(start).Seconds())
		return nil, err
	}

	outcome := "unconfirmed"
	if res.Confirmed {
		outcome = "confirmed"
	}
	observability.RecordSwap(req.Direction.String(), outcome, time.Since(start).Seconds())

	return &SwapResult{
		Confirmed: res.Confirmed,
		Signature: res.Signature,
		Err:       res.Err,
		Quote:     q,
	}, nil
}
