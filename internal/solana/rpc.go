package solana

import "context"

// RPCClient defines the Solana RPC HTTP methods the sniper depends on.
type RPCClient interface {
	// GetAccountInfo retrieves an account. Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey PublicKey) (*AccountInfo, error)

	// GetMultipleAccounts retrieves accounts in one call; missing accounts are nil.
	GetMultipleAccounts(ctx context.Context, pubkeys []PublicKey) ([]*AccountInfo, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey PublicKey) (uint64, error)

	// GetTokenAccountBalance returns the raw token amount held by a token account.
	GetTokenAccountBalance(ctx context.Context, pubkey PublicKey) (uint64, error)

	// GetTokenSupply returns the raw supply of a mint.
	GetTokenSupply(ctx context.Context, mint PublicKey) (uint64, error)

	// GetLatestBlockhash returns the most recent blockhash and its expiry height.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// GetBlockHeight returns the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// SendTransaction submits a serialized transaction and returns its signature.
	SendTransaction(ctx context.Context, tx []byte, opts *SendOpts) (string, error)

	// GetSignatureStatuses returns statuses in request order; unknown signatures are nil.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}
