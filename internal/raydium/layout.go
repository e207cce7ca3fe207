// Package raydium decodes Raydium AMM v4 pools and OpenBook markets, derives
// swap accounts, quotes constant product swaps and builds swap instructions.
package raydium

import (
	"encoding/binary"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// Program addresses.
var (
	AmmV4ProgramID    = solana.MustPublicKey("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	OpenBookProgramID = solana.MustPublicKey("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
)

// Account sizes.
const (
	LiquidityStateSize = 752
	MarketStateSize    = 388
)

// LiquidityStateV4 offsets. The layout is 16 u64 params, 8 u64 fee
// params, 4 u64 accounting fields, 2 u128 swap totals, then pubkeys.
const (
	offStatus          = 0
	offBaseDecimal     = 32
	offQuoteDecimal    = 40
	offPoolOpenTime    = 224
	offBaseVault       = 336
	offQuoteVault      = 368
	offBaseMint        = 400
	offQuoteMint       = 432
	offLpMint          = 464
	offOpenOrders      = 496
	offMarketID        = 528
	offMarketProgramID = 560
	offTargetOrders    = 592
	offWithdrawQueue   = 624
	offLpVault         = 656
	offOwner           = 688
	offLpReserve       = 720
)

// Offsets used by subscription filters.
const (
	PoolStatusOffset          = offStatus
	PoolQuoteMintOffset       = offQuoteMint
	PoolMarketProgramIDOffset = offMarketProgramID
	MarketQuoteMintOffset     = offMarketQuoteMint
)

// PoolStatusSwapOnly is the status of a pool open for trading
// with its order book disabled.
const PoolStatusSwapOnly = 6

// MarketStateV3 offsets: 5 byte padding, account flags, own address,
// vault signer nonce, base mint, quote mint ...
const (
	offMarketQuoteMint  = 85
	offMarketEventQueue = 253
	offMarketBids       = 285
	offMarketAsks       = 317
)

func pubkeyAt(data []byte, off int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[off : off+solana.PublicKeyLength])
}

func u64At(data []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(data[off:])
}

// DecodeLiquidityState parses LiquidityStateV4 account data.
func DecodeLiquidityState(data []byte) (*domain.PoolState, error) {
	if len(data) < LiquidityStateSize {
		return nil, fmt.Errorf("liquidity state too short: %d", len(data))
	}
	return &domain.PoolState{
		Status:          u64At(data, offStatus),
		BaseDecimal:     u64At(data, offBaseDecimal),
		QuoteDecimal:    u64At(data, offQuoteDecimal),
		PoolOpenTime:    u64At(data, offPoolOpenTime),
		BaseVault:       pubkeyAt(data, offBaseVault),
		QuoteVault:      pubkeyAt(data, offQuoteVault),
		BaseMint:        pubkeyAt(data, offBaseMint),
		QuoteMint:       pubkeyAt(data, offQuoteMint),
		LpMint:          pubkeyAt(data, offLpMint),
		OpenOrders:      pubkeyAt(data, offOpenOrders),
		MarketID:        pubkeyAt(data, offMarketID),
		MarketProgramID: pubkeyAt(data, offMarketProgramID),
		TargetOrders:    pubkeyAt(data, offTargetOrders),
		WithdrawQueue:   pubkeyAt(data, offWithdrawQueue),
		LpVault:         pubkeyAt(data, offLpVault),
		Owner:           pubkeyAt(data, offOwner),
		LpReserve:       u64At(data, offLpReserve),
	}, nil
}

// DecodeMarketState parses the accounts a swap needs from MarketStateV3 data.
func DecodeMarketState(data []byte) (*domain.MarketState, error) {
	if len(data) < MarketStateSize {
		return nil, fmt.Errorf("market state too short: %d", len(data))
	}
	return &domain.MarketState{
		EventQueue: pubkeyAt(data, offMarketEventQueue),
		Bids:       pubkeyAt(data, offMarketBids),
		Asks:       pubkeyAt(data, offMarketAsks),
	}, nil
}
