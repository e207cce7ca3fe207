package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcServer answers every request with result produced by fn.
func rpcServer(t *testing.T, method string, fn func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		if method != "" && req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  fn(req),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   uint64(1000000),
				"owner":      "11111111111111111111111111111111",
				"data":       []string{"SGVsbG8gV29ybGQ=", "base64"},
				"executable": false,
				"rentEpoch":  uint64(100),
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), SystemProgramID)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Lamports != 1000000 {
		t.Errorf("expected lamports 1000000, got %d", info.Lamports)
	}

	if info.Owner != "11111111111111111111111111111111" {
		t.Errorf("unexpected owner: %s", info.Owner)
	}

	if string(info.Data) != "Hello World" {
		t.Errorf("unexpected data: %q", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", func(req rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), SystemProgramID)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})

	server := rpcServer(t, "getMultipleAccounts", func(req rpcRequest) interface{} {
		keys, ok := req.Params[0].([]interface{})
		if !ok || len(keys) != 2 {
			t.Errorf("expected 2 keys, got %v", req.Params[0])
		}
		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"lamports": uint64(5),
					"owner":    TokenProgramID.String(),
					"data":     []string{payload, "base64"},
				},
				nil,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	accounts, err := client.GetMultipleAccounts(context.Background(), []PublicKey{TokenProgramID, SystemProgramID})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}

	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}

	if accounts[0] == nil || len(accounts[0].Data) != 3 {
		t.Errorf("unexpected first account: %+v", accounts[0])
	}

	if accounts[1] != nil {
		t.Errorf("expected missing second account, got %+v", accounts[1])
	}
}

func TestHTTPClient_TokenAmounts(t *testing.T) {
	server := rpcServer(t, "", func(req rpcRequest) interface{} {
		switch req.Method {
		case "getTokenAccountBalance":
			return map[string]interface{}{
				"value": map[string]interface{}{"amount": "18446744073709551615", "decimals": 9},
			}
		case "getTokenSupply":
			return map[string]interface{}{
				"value": map[string]interface{}{"amount": "0", "decimals": 6},
			}
		case "getBalance":
			return map[string]interface{}{"value": uint64(42)}
		}
		t.Errorf("unexpected method %s", req.Method)
		return nil
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx := context.Background()

	balance, err := client.GetTokenAccountBalance(ctx, SystemProgramID)
	if err != nil {
		t.Fatalf("GetTokenAccountBalance: %v", err)
	}
	if balance != 18446744073709551615 {
		t.Errorf("expected max uint64, got %d", balance)
	}

	supply, err := client.GetTokenSupply(ctx, SystemProgramID)
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}
	if supply != 0 {
		t.Errorf("expected zero supply, got %d", supply)
	}

	lamports, err := client.GetBalance(ctx, SystemProgramID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if lamports != 42 {
		t.Errorf("expected 42 lamports, got %d", lamports)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	hash := SystemProgramID.String()

	server := rpcServer(t, "getLatestBlockhash", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"blockhash":            hash,
				"lastValidBlockHeight": uint64(3090),
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}

	if bh.Hash.String() != hash {
		t.Errorf("expected hash %s, got %s", hash, bh.Hash)
	}

	if bh.LastValidBlockHeight != 3090 {
		t.Errorf("expected last valid height 3090, got %d", bh.LastValidBlockHeight)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{9, 8, 7}

	server := rpcServer(t, "sendTransaction", func(req rpcRequest) interface{} {
		if req.Params[0] != base64.StdEncoding.EncodeToString(raw) {
			t.Errorf("unexpected payload %v", req.Params[0])
		}
		cfg := req.Params[1].(map[string]interface{})
		if cfg["encoding"] != "base64" {
			t.Errorf("expected base64 encoding, got %v", cfg["encoding"])
		}
		if cfg["skipPreflight"] != true {
			t.Errorf("expected skipPreflight true, got %v", cfg["skipPreflight"])
		}
		if cfg["preflightCommitment"] != CommitmentProcessed {
			t.Errorf("unexpected preflightCommitment %v", cfg["preflightCommitment"])
		}
		return "5sig"
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	sig, err := client.SendTransaction(context.Background(), raw, &SendOpts{
		SkipPreflight:       true,
		PreflightCommitment: CommitmentProcessed,
	})
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}

	if sig != "5sig" {
		t.Errorf("expected 5sig, got %s", sig)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, "getSignatureStatuses", func(req rpcRequest) interface{} {
		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"slot":               uint64(77),
					"confirmations":      nil,
					"err":                nil,
					"confirmationStatus": "finalized",
				},
				nil,
			},
		}
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)

	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}

	if !statuses[0].IsConfirmed() {
		t.Errorf("expected first status confirmed: %+v", statuses[0])
	}

	if statuses[1] != nil {
		t.Errorf("expected nil second status, got %+v", statuses[1])
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	height, err := client.GetBlockHeight(context.Background())
	if err != nil {
		t.Fatalf("GetBlockHeight: %v", err)
	}

	if height != 999 {
		t.Errorf("expected height 999, got %d", height)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.SendTransaction(context.Background(), []byte{1}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T", err)
	}

	if rpcErr.Code != -32002 {
		t.Errorf("expected code -32002, got %d", rpcErr.Code)
	}

	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetBlockHeight(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
