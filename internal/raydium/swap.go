package raydium

import (
	"encoding/binary"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

const swapBaseInTag = 9

// SwapBaseIn builds the AMM v4 swap instruction spending exactly amountIn
// from source and requiring at least minAmountOut into dest.
func SwapBaseIn(keys *domain.PoolKeys, source, dest, owner solana.PublicKey, amountIn, minAmountOut uint64) solana.Instruction {
	data := make([]byte, 17)
	data[0] = swapBaseInTag
	binary.LittleEndian.PutUint64(data[1:], amountIn)
	binary.LittleEndian.PutUint64(data[9:], minAmountOut)

	w := func(k solana.PublicKey) solana.AccountMeta { return solana.AccountMeta{PublicKey: k, IsWritable: true} }
	r := func(k solana.PublicKey) solana.AccountMeta { return solana.AccountMeta{PublicKey: k} }

	return solana.Instruction{
		ProgramID: keys.ProgramID,
		Accounts: []solana.AccountMeta{
			r(solana.TokenProgramID),
			w(keys.ID),
			r(keys.Authority),
			w(keys.OpenOrders),
			w(keys.TargetOrders),
			w(keys.BaseVault),
			w(keys.QuoteVault),
			r(keys.MarketProgramID),
			w(keys.MarketID),
			w(keys.MarketBids),
			w(keys.MarketAsks),
			w(keys.MarketEventQueue),
			w(keys.MarketBaseVault),
			w(keys.MarketQuoteVault),
			r(keys.MarketAuthority),
			w(source),
			w(dest),
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}
