package filter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/spl"
)

// Burn passes when the whole LP supply has been burned.
type Burn struct {
	rpc solana.RPCClient
}

// NewBurn creates a Burn check.
func NewBurn(rpc solana.RPCClient) *Burn {
	return &Burn{rpc: rpc}
}

func (*Burn) Name() string { return "burn" }

func (b *Burn) Check(ctx context.Context, keys *domain.PoolKeys) (bool, error) {
	supply, err := b.rpc.GetTokenSupply(ctx, keys.LpMint)
	if err != nil {
		return false, fmt.Errorf("lp supply: %w", err)
	}
	return supply == 0, nil
}

// MintAuthority inspects the base mint. With RequireRenounced the mint
// authority must be unset; with RejectFreezable the freeze authority must be
// unset.
type MintAuthority struct {
	rpc              solana.RPCClient
	requireRenounced bool
	rejectFreezable  bool
}

// NewMintAuthority creates a MintAuthority check.
func NewMintAuthority(rpc solana.RPCClient, requireRenounced, rejectFreezable bool) *MintAuthority {
	return &MintAuthority{rpc: rpc, requireRenounced: requireRenounced, rejectFreezable: rejectFreezable}
}

func (*MintAuthority) Name() string { return "mint_authority" }

func (m *MintAuthority) Check(ctx context.Context, keys *domain.PoolKeys) (bool, error) {
	info, err := m.rpc.GetAccountInfo(ctx, keys.BaseMint)
	if err != nil {
		return false, fmt.Errorf("fetch mint: %w", err)
	}
	if info == nil {
		return false, fmt.Errorf("mint %s not found", keys.BaseMint)
	}
	mint, err := spl.DecodeMint(info.Data)
	if err != nil {
		return false, err
	}

	if m.requireRenounced && mint.HasMintAuthority {
		return false, nil
	}
	if m.rejectFreezable && mint.HasFreezeAuthority {
		return false, nil
	}
	return true, nil
}

// Mutable passes when the token metadata can no longer be changed.
type Mutable struct {
	rpc solana.RPCClient
}

// NewMutable creates a Mutable check.
func NewMutable(rpc solana.RPCClient) *Mutable {
	return &Mutable{rpc: rpc}
}

func (*Mutable) Name() string { return "mutable" }

func (m *Mutable) Check(ctx context.Context, keys *domain.PoolKeys) (bool, error) {
	addr, err := solana.FindMetadataAddress(keys.BaseMint)
	if err != nil {
		return false, err
	}
	info, err := m.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("fetch metadata: %w", err)
	}
	if info == nil {
		return false, fmt.Errorf("metadata %s not found", addr)
	}
	meta, err := spl.DecodeMetadata(info.Data)
	if err != nil {
		return false, err
	}
	return !meta.IsMutable, nil
}

// PoolSize bounds the quote liquidity of the pool. Bounds are in whole
// quote tokens; a zero bound is disabled.
type PoolSize struct {
	rpc solana.RPCClient
	min decimal.Decimal
	max decimal.Decimal
}

// NewPoolSize creates a PoolSize check.
func NewPoolSize(rpc solana.RPCClient, min, max decimal.Decimal) *PoolSize {
	return &PoolSize{rpc: rpc, min: min, max: max}
}

func (*PoolSize) Name() string { return "pool_size" }

func (p *PoolSize) Check(ctx context.Context, keys *domain.PoolKeys) (bool, error) {
	raw, err := p.rpc.GetTokenAccountBalance(ctx, keys.QuoteVault)
	if err != nil {
		return false, fmt.Errorf("quote vault balance: %w", err)
	}
	size := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -int32(keys.QuoteDecimals))

	if p.min.IsPositive() && size.LessThan(p.min) {
		return false, nil
	}
	if p.max.IsPositive() && size.GreaterThan(p.max) {
		return false, nil
	}
	return true, nil
}
