package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-sniper/internal/solana"
)

// Default sends through the configured RPC node.
type Default struct {
	rpc       solana.RPCClient
	confirmer *confirmer
	logger    zerolog.Logger
}

// NewDefault creates a Default executor polling statuses every pollInterval.
func NewDefault(rpc solana.RPCClient, pollInterval time.Duration, logger zerolog.Logger) *Default {
	return &Default{
		rpc:       rpc,
		confirmer: newConfirmer(rpc, pollInterval),
		logger:    logger.With().Str("component", "executor").Str("kind", KindDefault).Logger(),
	}
}

// ManagesPriority is false: callers add compute budget instructions.
func (d *Default) ManagesPriority() bool { return false }

// ExecuteAndConfirm sends tx and polls until it is confirmed or expires.
func (d *Default) ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, _ solana.Keypair, blockhash *solana.Blockhash) (*Result, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	sig, err := d.rpc.SendTransaction(ctx, raw, &solana.SendOpts{PreflightCommitment: solana.CommitmentConfirmed})
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	d.logger.Debug().Str("signature", sig).Msg("transaction sent")

	return d.confirmer.confirm(ctx, sig, blockhash)
}
