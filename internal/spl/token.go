// Package spl decodes SPL token accounts and builds token program instructions.
package spl

import (
	"encoding/binary"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// Account sizes of the SPL token program.
const (
	TokenAccountSize = 165
	MintSize         = 82
)

// Token account layout:
// - mint: Pubkey (32 bytes)
// - owner: Pubkey (32 bytes)
// - amount: u64 (8 bytes)
// - ...delegate, state, native, close authority
const (
	tokenMintOffset   = 0
	tokenOwnerOffset  = 32
	tokenAmountOffset = 64
)

// TokenAccountOwnerOffset is where the owner sits in a token account, for memcmp filters.
const TokenAccountOwnerOffset = tokenOwnerOffset

// DecodeTokenAccount parses SPL token account data.
func DecodeTokenAccount(data []byte) (*domain.TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}
	return &domain.TokenAccount{
		Mint:   solana.PublicKeyFromBytes(data[tokenMintOffset:]),
		Owner:  solana.PublicKeyFromBytes(data[tokenOwnerOffset:]),
		Amount: binary.LittleEndian.Uint64(data[tokenAmountOffset:]),
	}, nil
}

// Mint is the part of a mint account the filters inspect.
type Mint struct {
	HasMintAuthority   bool
	Supply             uint64
	Decimals           uint8
	HasFreezeAuthority bool
}

// Mint layout:
// - mintAuthority: COption<Pubkey> (4 + 32 bytes)
// - supply: u64 (8 bytes)
// - decimals: u8 (1 byte)
// - isInitialized: bool (1 byte)
// - freezeAuthority: COption<Pubkey> (4 + 32 bytes)
const (
	mintAuthorityOffset   = 0
	mintSupplyOffset      = 36
	mintDecimalsOffset    = 44
	freezeAuthorityOffset = 46
)

// DecodeMint parses SPL mint account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("mint data too short: %d", len(data))
	}
	return &Mint{
		HasMintAuthority:   binary.LittleEndian.Uint32(data[mintAuthorityOffset:]) != 0,
		Supply:             binary.LittleEndian.Uint64(data[mintSupplyOffset:]),
		Decimals:           data[mintDecimalsOffset],
		HasFreezeAuthority: binary.LittleEndian.Uint32(data[freezeAuthorityOffset:]) != 0,
	}, nil
}
