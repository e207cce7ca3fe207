package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-sniper/internal/solana"
)

// DefaultJitoURLs are the public block engine bundle endpoints.
var DefaultJitoURLs = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
}

// JitoTipAccounts receive bundle tips.
var JitoTipAccounts = []solana.PublicKey{
	solana.MustPublicKey("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKey("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKey("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKey("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
	solana.MustPublicKey("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKey("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKey("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKey("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
}

// ErrBundleRejected is returned when no block engine accepted the bundle.
var ErrBundleRejected = errors.New("bundle rejected by all block engines")

// Jito submits the swap as a bundle with a tip transfer to every configured
// block engine, then confirms the swap through RPC.
type Jito struct {
	urls        []string
	tipLamports uint64
	client      *http.Client
	confirmer   *confirmer
	logger      zerolog.Logger
}

// NewJito creates a Jito executor. rpc is used for confirmation only.
func NewJito(urls []string, tipLamports uint64, rpc solana.RPCClient, client *http.Client, pollInterval time.Duration, logger zerolog.Logger) *Jito {
	if len(urls) == 0 {
		urls = DefaultJitoURLs
	}
	return &Jito{
		urls:        urls,
		tipLamports: tipLamports,
		client:      client,
		confirmer:   newConfirmer(rpc, pollInterval),
		logger:      logger.With().Str("component", "executor").Str("kind", KindJito).Logger(),
	}
}

// ManagesPriority is true: the tip replaces compute unit pricing.
func (j *Jito) ManagesPriority() bool { return true }

type bundleRequest struct {
	JSONRPC string     `json:"jsonrpc"`
	ID      int        `json:"id"`
	Method  string     `json:"method"`
	Params  [][]string `json:"params"`
}

type bundleResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ExecuteAndConfirm sends the bundle and waits for the swap to confirm.
func (j *Jito) ExecuteAndConfirm(ctx context.Context, tx *solana.Transaction, payer solana.Keypair, blockhash *solana.Blockhash) (*Result, error) {
	tip := JitoTipAccounts[rand.IntN(len(JitoTipAccounts))]
	tipTx, err := feeTransaction(payer, tip, j.tipLamports, blockhash)
	if err != nil {
		return nil, fmt.Errorf("jito tip tx: %w", err)
	}

	encodedTip, err := tipTx.Base58()
	if err != nil {
		return nil, fmt.Errorf("jito tip tx: %w", err)
	}
	encodedTx, err := tx.Base58()
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}

	body, err := json.Marshal(bundleRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{{encodedTip, encodedTx}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var accepted atomic.Int32
	var g errgroup.Group
	for _, url := range j.urls {
		g.Go(func() error {
			bundleID, err := j.post(ctx, url, body)
			if err != nil {
				j.logger.Debug().Err(err).Str("url", url).Msg("bundle not accepted")
				return nil
			}
			accepted.Add(1)
			j.logger.Debug().Str("url", url).Str("bundle_id", bundleID).Msg("bundle accepted")
			return nil
		})
	}
	_ = g.Wait()

	if accepted.Load() == 0 {
		return nil, ErrBundleRejected
	}
	return j.confirmer.confirm(ctx, tx.Signature().String(), blockhash)
}

func (j *Jito) post(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var out bundleResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", out.Error.Code, out.Error.Message)
	}
	return out.Result, nil
}
