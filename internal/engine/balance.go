package engine

import (
	"context"
	"fmt"

	"solana-sniper/internal/solana"
)

// WalletBalance reads the quote token holdings of a wallet. For WSOL the
// native lamports are counted too.
type WalletBalance struct {
	rpc       solana.RPCClient
	owner     solana.PublicKey
	quoteMint solana.PublicKey
	quoteATA  solana.PublicKey
}

// NewWalletBalance creates a WalletBalance.
func NewWalletBalance(rpc solana.RPCClient, owner, quoteMint solana.PublicKey) (*WalletBalance, error) {
	ata, err := solana.FindAssociatedTokenAddress(owner, quoteMint)
	if err != nil {
		return nil, err
	}
	return &WalletBalance{rpc: rpc, owner: owner, quoteMint: quoteMint, quoteATA: ata}, nil
}

var _ BalanceSource = (*WalletBalance)(nil)

// Balance returns the quote account amount plus lamports for WSOL.
func (w *WalletBalance) Balance(ctx context.Context) (uint64, error) {
	amount, err := w.rpc.GetTokenAccountBalance(ctx, w.quoteATA)
	if err != nil {
		return 0, fmt.Errorf("quote account balance: %w", err)
	}
	if w.quoteMint != solana.WrappedSOLMint {
		return amount, nil
	}

	lamports, err := w.rpc.GetBalance(ctx, w.owner)
	if err != nil {
		return 0, fmt.Errorf("wallet lamports: %w", err)
	}
	return amount + lamports, nil
}
