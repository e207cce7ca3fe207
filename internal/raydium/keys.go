package raydium

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

var (
	ammAuthorityOnce sync.Once
	ammAuthority     solana.PublicKey
	ammAuthorityErr  error
)

// AmmAuthority returns the AMM v4 authority PDA.
func AmmAuthority() (solana.PublicKey, error) {
	ammAuthorityOnce.Do(func() {
		ammAuthority, _, ammAuthorityErr = solana.FindProgramAddress([][]byte{[]byte("amm authority")}, AmmV4ProgramID)
	})
	return ammAuthority, ammAuthorityErr
}

// maxVaultSignerNonce bounds the market authority search.
const maxVaultSignerNonce = 100

// MarketAuthority returns the vault signer of an OpenBook market.
func MarketAuthority(programID, marketID solana.PublicKey) (solana.PublicKey, error) {
	nonce := make([]byte, 8)
	for i := uint64(0); i < maxVaultSignerNonce; i++ {
		binary.LittleEndian.PutUint64(nonce, i)
		addr, err := solana.CreateProgramAddress([][]byte{marketID[:], nonce}, programID)
		if err == nil {
			return addr, nil
		}
		if !errors.Is(err, solana.ErrOnCurve) {
			return solana.PublicKey{}, err
		}
	}
	return solana.PublicKey{}, fmt.Errorf("no vault signer nonce for market %s", marketID)
}

// BuildPoolKeys assembles the swap account set of a pool.
func BuildPoolKeys(id solana.PublicKey, pool *domain.PoolState, market *domain.MarketState) (*domain.PoolKeys, error) {
	authority, err := AmmAuthority()
	if err != nil {
		return nil, fmt.Errorf("amm authority: %w", err)
	}
	marketAuthority, err := MarketAuthority(pool.MarketProgramID, pool.MarketID)
	if err != nil {
		return nil, fmt.Errorf("market authority: %w", err)
	}

	return &domain.PoolKeys{
		ID:            id,
		BaseMint:      pool.BaseMint,
		QuoteMint:     pool.QuoteMint,
		LpMint:        pool.LpMint,
		BaseDecimals:  uint8(pool.BaseDecimal),
		QuoteDecimals: uint8(pool.QuoteDecimal),

		ProgramID:     AmmV4ProgramID,
		Authority:     authority,
		OpenOrders:    pool.OpenOrders,
		TargetOrders:  pool.TargetOrders,
		BaseVault:     pool.BaseVault,
		QuoteVault:    pool.QuoteVault,
		WithdrawQueue: pool.WithdrawQueue,
		LpVault:       pool.LpVault,

		MarketProgramID: pool.MarketProgramID,
		MarketID:        pool.MarketID,
		MarketAuthority: marketAuthority,
		// v4 pools settle through the pool vaults
		MarketBaseVault:  pool.BaseVault,
		MarketQuoteVault: pool.QuoteVault,
		MarketBids:       market.Bids,
		MarketAsks:       market.Asks,
		MarketEventQueue: market.EventQueue,
	}, nil
}
