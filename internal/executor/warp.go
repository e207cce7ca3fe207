package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"solana-sniper/internal/solana"
)

// Warp relay defaults.
var (
	DefaultWarpURL = "https://tx.warp.id/transaction/execute"
	WarpFeeWallet  = solana.MustPublicKey("WARPzUMPnycu9eeCZ95rcAUxorqpBqHndfV3ZP5FSyS")
)

// Warp posts the swap together with a fee transfer to a private relay that
// lands and confirms them.
type Warp struct {
	url         string
	feeLamports uint64
	client      *http.Client
	logger      zerolog.Logger
}

// NewWarp creates a Warp executor.
func NewWarp(url string, feeLamports uint64, client *http.Client, logger zerolog.Logger) *Warp {
	if url == "" {
		url = DefaultWarpURL
	}
	return &Warp{
		url:         url,
		feeLamports: feeLamports,
		client:      client,
		logger:      logger.With().Str("component", "executor").Str("kind", KindWarp).Logger(),
	}
}

// ManagesPriority is true: the relay fee replaces compute unit pricing.
func (w *Warp) ManagesPriority() bool { return true }

type warpRequest struct {
	Transactions    []string      `json:"transactions"`
	LatestBlockhash warpBlockhash `json:"latestBlockhash"`
}

type warpBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type warpResponse struct {
	Confirmed bool   `json:"confirmed"`
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

// ExecuteAndConfirm posts the fee and swap transactions and returns the
// relay verdict.
func (w *Warp) ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, payer solana.Keypair, blockhash *solana.Blockhash) (*Result, error) {
	feeTx, err := feeTransaction(payer, WarpFeeWallet, w.feeLamports, blockhash)
	if err != nil {
		return nil, fmt.Errorf("warp fee tx: %w", err)
	}

	encodedFee, err := feeTx.Base58()
	if err != nil {
		return nil, fmt.Errorf("warp fee tx: %w", err)
	}
	encodedTx, err := tx.Base58()
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	body, err := json.Marshal(warpRequest{
		Transactions: []string{encodedFee, encodedTx},
		LatestBlockhash: warpBlockhash{
			Blockhash:            blockhash.Hash.String(),
			LastValidBlockHeight: blockhash.LastValidBlockHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("warp status %d: %s", resp.StatusCode, string(respBody))
	}

	var out warpResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	res := &Result{Confirmed: out.Confirmed, Signature: out.Signature}
	if res.Signature == "" {
		res.Signature = tx.Signature().String()
	}
	if out.Error != "" {
		res.Err = errors.New(out.Error)
	}
	w.logger.Debug().Str("signature", res.Signature).Bool("confirmed", res.Confirmed).Msg("relay response")
	return res, nil
}
