package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned by a closed WSClientImpl.
var ErrClientClosed = errors.New("client closed")

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription id.
	SubscribeTimeout time.Duration
	// Commitment is sent with every subscription.
	Commitment string
	// BufferSize is the capacity of each notification channel.
	BufferSize int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Commitment:        CommitmentConfirmed,
		BufferSize:        4096,
	}
}

// subscription is a live programSubscribe stream.
type subscription struct {
	programID PublicKey
	filter    ProgramFilter
	ch        chan ProgramNotification
}

// WSClientImpl implements WSClient using gorilla/websocket.
// Subscriptions survive reconnects: every active stream is resubscribed
// and keeps its channel.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps server subscription id to stream
	subs   map[int64]*subscription
	subsMu sync.RWMutex

	// pending maps request id to the waiter for its subscription id
	pending   map[uint64]chan int64
	pendingMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentConfirmed
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}

	c := &WSClientImpl{
		endpoint: endpoint,
		config:   cfg,
		logger:   log.With().Str("component", "ws").Logger(),
		subs:     make(map[int64]*subscription),
		pending:  make(map[uint64]chan int64),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeProgram subscribes to account updates of programID.
func (c *WSClientImpl) SubscribeProgram(ctx context.Context, programID PublicKey, filter ProgramFilter) (<-chan ProgramNotification, error) {
	sub := &subscription{
		programID: programID,
		filter:    filter,
		ch:        make(chan ProgramNotification, c.config.BufferSize),
	}

	subID, err := c.subscribe(ctx, sub)
	if err != nil {
		return nil, err
	}

	c.subsMu.Lock()
	c.subs[subID] = sub
	c.subsMu.Unlock()

	c.logger.Debug().
		Str("program", programID.String()).
		Int64("subscription", subID).
		Msg("program subscription active")

	return sub.ch, nil
}

// subscribeParams builds programSubscribe params.
func (c *WSClientImpl) subscribeParams(sub *subscription) []interface{} {
	var filters []interface{}
	if sub.filter.DataSize > 0 {
		filters = append(filters, map[string]interface{}{"dataSize": sub.filter.DataSize})
	}
	for _, m := range sub.filter.Memcmp {
		filters = append(filters, map[string]interface{}{
			"memcmp": map[string]interface{}{
				"offset": m.Offset,
				"bytes":  base58.Encode(m.Bytes),
			},
		})
	}

	config := map[string]interface{}{
		"encoding":   "base64",
		"commitment": c.config.Commitment,
	}
	if len(filters) > 0 {
		config["filters"] = filters
	}

	return []interface{}{sub.programID.String(), config}
}

// subscribe sends programSubscribe and waits for the subscription id.
func (c *WSClientImpl) subscribe(ctx context.Context, sub *subscription) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "programSubscribe",
		Params:  c.subscribeParams(sub),
	}

	confirmCh := make(chan int64, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = confirmCh
	c.pendingMu.Unlock()

	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		forget()
		return 0, fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		forget()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case subID, ok := <-confirmCh:
		if !ok {
			return 0, ErrClientClosed
		}
		return subID, nil
	case <-timer.C:
		forget()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection and every notification channel.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	return nil
}

// readLoop reads messages and dispatches them until Close.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			c.logger.Warn().Err(err).Dur("delay", reconnectDelay).Msg("websocket read failed, reconnecting")
			if !c.reconnecting.Swap(true) {
				go c.reconnect(conn, reconnectDelay)
			}

			reconnectDelay *= 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

// reconnect replaces a broken connection and resubscribes every stream.
func (c *WSClientImpl) reconnect(broken *websocket.Conn, delay time.Duration) {
	defer c.reconnecting.Store(false)

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != broken {
		// already replaced
		c.connMu.Unlock()
		return
	}
	c.conn.Close()
	c.conn = nil
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Error().Err(err).Msg("reconnect failed")
		return
	}

	// resubscribe runs off the read goroutine so confirmations can arrive
	go c.resubscribeAll()
}

// resubscribeAll moves every stream onto a fresh subscription id.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	old := make(map[int64]*subscription, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.subsMu.RUnlock()

	for oldID, sub := range old {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.subscribe(ctx, sub)
		cancel()

		if err != nil {
			c.logger.Error().Err(err).Str("program", sub.programID.String()).Msg("resubscribe failed")
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldID)
		c.subs[newID] = sub
		c.subsMu.Unlock()
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Warn().Err(err).Msg("undecodable websocket message")
		return
	}

	switch {
	case env.Method == "programNotification" && env.Params != nil:
		c.handleProgramNotification(env.Params)
	case env.Error != nil:
		c.logger.Error().Int("code", env.Error.Code).Str("msg", env.Error.Message).Uint64("id", env.ID).Msg("websocket error response")
	case env.ID != 0 && len(env.Result) > 0:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			return
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[env.ID]
		if ok {
			delete(c.pending, env.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- subID
		}
	}
}

// handleProgramNotification decodes and dispatches one account update.
// Delivery blocks rather than drops.
func (c *WSClientImpl) handleProgramNotification(params *wsNotificationParams) {
	c.subsMu.RLock()
	sub, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	value := params.Result.Value
	pubkey, err := PublicKeyFromBase58(value.Pubkey)
	if err != nil {
		c.logger.Warn().Err(err).Msg("bad pubkey in notification")
		return
	}

	info, err := value.Account.toAccountInfo()
	if err != nil {
		c.logger.Warn().Err(err).Str("pubkey", value.Pubkey).Msg("bad account data in notification")
		return
	}

	notif := ProgramNotification{
		Slot:    params.Result.Context.Slot,
		Pubkey:  pubkey,
		Account: *info,
	}

	select {
	case sub.ch <- notif:
	case <-c.done:
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Debug().Err(err).Msg("ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsEnvelope covers responses and notifications.
type wsEnvelope struct {
	ID     uint64                `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Error  *rpcError             `json:"error"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Pubkey  string       `json:"pubkey"`
		Account accountValue `json:"account"`
	} `json:"value"`
}
