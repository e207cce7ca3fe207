package domain

import "solana-sniper/internal/solana"

// PoolState is the decoded Raydium AMM v4 liquidity state.
type PoolState struct {
	Status          uint64           `json:"status"`
	BaseDecimal     uint64           `json:"base_decimal"`
	QuoteDecimal    uint64           `json:"quote_decimal"`
	PoolOpenTime    uint64           `json:"pool_open_time"` // unix seconds
	BaseVault       solana.PublicKey `json:"base_vault"`
	QuoteVault      solana.PublicKey `json:"quote_vault"`
	BaseMint        solana.PublicKey `json:"base_mint"`
	QuoteMint       solana.PublicKey `json:"quote_mint"`
	LpMint          solana.PublicKey `json:"lp_mint"`
	OpenOrders      solana.PublicKey `json:"open_orders"`
	MarketID        solana.PublicKey `json:"market_id"`
	MarketProgramID solana.PublicKey `json:"market_program_id"`
	TargetOrders    solana.PublicKey `json:"target_orders"`
	WithdrawQueue   solana.PublicKey `json:"withdraw_queue"`
	LpVault         solana.PublicKey `json:"lp_vault"`
	Owner           solana.PublicKey `json:"owner"`
	LpReserve       uint64           `json:"lp_reserve"`
}

// PoolRecord is a cached pool.
type PoolRecord struct {
	ID    solana.PublicKey `json:"id"`
	State PoolState        `json:"state"`
}

// MarketState is the subset of an OpenBook market the swap needs.
type MarketState struct {
	EventQueue solana.PublicKey `json:"event_queue"`
	Bids       solana.PublicKey `json:"bids"`
	Asks       solana.PublicKey `json:"asks"`
}

// PoolKeys is every account a swap against one pool touches.
type PoolKeys struct {
	ID            solana.PublicKey
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	LpMint        solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8

	ProgramID     solana.PublicKey
	Authority     solana.PublicKey
	OpenOrders    solana.PublicKey
	TargetOrders  solana.PublicKey
	BaseVault     solana.PublicKey
	QuoteVault    solana.PublicKey
	WithdrawQueue solana.PublicKey
	LpVault       solana.PublicKey

	MarketProgramID  solana.PublicKey
	MarketID         solana.PublicKey
	MarketAuthority  solana.PublicKey
	MarketBaseVault  solana.PublicKey
	MarketQuoteVault solana.PublicKey
	MarketBids       solana.PublicKey
	MarketAsks       solana.PublicKey
	MarketEventQueue solana.PublicKey
}

// TokenAccount is a decoded SPL token account.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}
