package stub

import (
	"context"
	"errors"
	"sync"

	"github.com/mr-tron/base58"

	"solana-sniper/internal/solana"
)

// ErrNotFound is returned when a token account or mint is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient over in-memory state for testing.
// Every sent transaction is confirmed at the next status query unless
// OnSend rejects it or Unconfirmed is set.
type RPCClient struct {
	mu sync.Mutex

	Accounts      map[solana.PublicKey]*solana.AccountInfo
	Lamports      map[solana.PublicKey]uint64
	TokenBalances map[solana.PublicKey]uint64
	Supplies      map[solana.PublicKey]uint64
	BlockHeight   uint64
	Blockhash     solana.Hash

	// Unconfirmed keeps sent transactions pending forever.
	Unconfirmed bool
	// FailTx marks every sent transaction as failed on chain.
	FailTx bool
	// OnSend runs for each sendTransaction; a non-nil error is returned to the caller.
	OnSend func(raw []byte) error

	Sent     [][]byte
	statuses map[string]*solana.SignatureStatus
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:      make(map[solana.PublicKey]*solana.AccountInfo),
		Lamports:      make(map[solana.PublicKey]uint64),
		TokenBalances: make(map[solana.PublicKey]uint64),
		Supplies:      make(map[solana.PublicKey]uint64),
		BlockHeight:   100,
		statuses:      make(map[string]*solana.SignatureStatus),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// SetAccount stores raw account data.
func (c *RPCClient) SetAccount(key solana.PublicKey, owner solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[key] = &solana.AccountInfo{Owner: owner.String(), Data: data}
}

// SetTokenBalance sets the amount held by a token account.
func (c *RPCClient) SetTokenBalance(key solana.PublicKey, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenBalances[key] = amount
}

// SetSupply sets the supply of a mint.
func (c *RPCClient) SetSupply(mint solana.PublicKey, supply uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Supplies[mint] = supply
}

// SentCount returns the number of submitted transactions.
func (c *RPCClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey solana.PublicKey) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetMultipleAccounts returns stored accounts in order, nil for missing ones.
// Token accounts registered through SetTokenBalance are served as 165-byte
// SPL layouts carrying the amount.
func (c *RPCClient) GetMultipleAccounts(_ context.Context, pubkeys []solana.PublicKey) ([]*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, key := range pubkeys {
		if info, ok := c.Accounts[key]; ok {
			cp := *info
			out[i] = &cp
			continue
		}
		if amount, ok := c.TokenBalances[key]; ok {
			out[i] = &solana.AccountInfo{Owner: solana.TokenProgramID.String(), Data: tokenAccountData(amount)}
		}
	}
	return out, nil
}

func tokenAccountData(amount uint64) []byte {
	data := make([]byte, 165)
	for i := 0; i < 8; i++ {
		data[64+i] = byte(amount >> (8 * i))
	}
	return data
}

// GetBalance returns stored lamports.
func (c *RPCClient) GetBalance(_ context.Context, pubkey solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Lamports[pubkey], nil
}

// GetTokenAccountBalance returns the stored token amount.
func (c *RPCClient) GetTokenAccountBalance(_ context.Context, pubkey solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	amount, ok := c.TokenBalances[pubkey]
	if !ok {
		return 0, ErrNotFound
	}
	return amount, nil
}

// GetTokenSupply returns the stored mint supply.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint solana.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	supply, ok := c.Supplies[mint]
	if !ok {
		return 0, ErrNotFound
	}
	return supply, nil
}

// GetLatestBlockhash returns the configured blockhash valid for 150 blocks.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.Blockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &solana.Blockhash{Hash: c.Blockhash, LastValidBlockHeight: c.BlockHeight + 150}, nil
}

// GetBlockHeight advances and returns the block height.
func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockHeight += 10
	return c.BlockHeight, nil
}

// SendTransaction records raw and returns the fee payer signature.
func (c *RPCClient) SendTransaction(_ context.Context, raw []byte, _ *solana.SendOpts) (string, error) {
	c.mu.Lock()
	onSend := c.OnSend
	c.mu.Unlock()

	if len(raw) < 1+solana.SignatureLength {
		return "", errors.New("transaction too short")
	}

	if onSend != nil {
		if err := onSend(raw); err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, raw)

	sig := base58.Encode(raw[1 : 1+solana.SignatureLength])
	if !c.Unconfirmed {
		status := &solana.SignatureStatus{Slot: c.BlockHeight, ConfirmationStatus: solana.CommitmentConfirmed}
		if c.FailTx {
			status.Err = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
		}
		c.statuses[sig] = status
	}
	return sig, nil
}

// GetSignatureStatuses returns statuses of sent transactions.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		out[i] = c.statuses[sig]
	}
	return out, nil
}
