// Package executor submits signed swap transactions and waits for confirmation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"solana-sniper/internal/solana"
)

// Executor kinds selectable by configuration.
const (
	KindDefault = "default"
	KindWarp    = "warp"
	KindJito    = "jito"
)

var (
	// ErrBlockhashExpired is set on a Result when the blockhash expired
	// before the transaction was confirmed.
	ErrBlockhashExpired = errors.New("blockhash expired")

	// ErrTransactionFailed is set on a Result when the transaction landed
	// with an error.
	ErrTransactionFailed = errors.New("transaction failed")
)

// Result is the outcome of one submission.
type Result struct {
	Confirmed bool
	Signature string
	Err       error
}

// Executor submits a signed transaction and waits until it is confirmed or
// its blockhash expires. A returned error means the submission itself failed.
type Executor interface {
	ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, payer solana.Keypair, blockhash *solana.Blockhash) (*Result, error)

	// ManagesPriority reports whether the executor pays for inclusion itself,
	// in which case callers omit compute budget instructions.
	ManagesPriority() bool
}

// Config configures New.
type Config struct {
	Kind string
	RPC  solana.RPCClient

	// FeeLamports is the relay fee (warp) or tip (jito).
	FeeLamports uint64
	WarpURL     string
	JitoURLs    []string

	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// New creates the executor selected by cfg.Kind. An empty kind selects the default.
func New(cfg Config) (Executor, error) {
	if cfg.RPC == nil {
		return nil, fmt.Errorf("executor: rpc client required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	switch cfg.Kind {
	case KindDefault, "":
		return NewDefault(cfg.RPC, cfg.PollInterval, cfg.Logger), nil
	case KindWarp:
		return NewWarp(cfg.WarpURL, cfg.FeeLamports, cfg.HTTPClient, cfg.Logger), nil
	case KindJito:
		return NewJito(cfg.JitoURLs, cfg.FeeLamports, cfg.RPC, cfg.HTTPClient, cfg.PollInterval, cfg.Logger), nil
	default:
		return nil, fmt.Errorf("executor: unknown kind %q", cfg.Kind)
	}
}

// confirmer polls signature statuses until confirmation or blockhash expiry.
type confirmer struct {
	rpc      solana.RPCClient
	interval time.Duration
}

func newConfirmer(rpc solana.RPCClient, interval time.Duration) *confirmer {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &confirmer{rpc: rpc, interval: interval}
}

func (c *confirmer) confirm(ctx context.Context, signature string, blockhash *solana.Blockhash) (*Result, error) {
	res := &Result{Signature: signature}
	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err != nil {
			return nil, fmt.Errorf("signature status %s: %w", signature, err)
		}
		if len(statuses) == 1 && statuses[0] != nil {
			status := statuses[0]
			if status.Err != nil {
				res.Err = fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
				return res, nil
			}
			if status.IsConfirmed() {
				res.Confirmed = true
				return res, nil
			}
		}

		height, err := c.rpc.GetBlockHeight(ctx)
		if err != nil {
			return nil, fmt.Errorf("block height: %w", err)
		}
		if height > blockhash.LastValidBlockHeight {
			res.Err = ErrBlockhashExpired
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.interval):
		}
	}
}

// feeTransaction builds a signed transfer of lamports from payer to dest.
func feeTransaction(payer solana.Keypair, dest solana.PublicKey, lamports uint64, blockhash *solana.Blockhash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(payer.PublicKey(), []solana.Instruction{
		solana.Transfer(payer.PublicKey(), dest, lamports),
	}, blockhash.Hash)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(payer); err != nil {
		return nil, err
	}
	return tx, nil
}
