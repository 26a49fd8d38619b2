package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

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
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// sigSub tracks one signature subscription for dispatch and resubscription.
type sigSub struct {
	signature  string
	commitment string
	ch         chan SignatureNotification
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to the waiting signature subscription
	subs   map[int64]*sigSub
	subsMu sync.RWMutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]*sigSub),
		pendingSubs: make(map[uint64]chan int64),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
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

// SubscribeSignature subscribes to the terminal notification for a signature.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, signature, commitment string) (<-chan SignatureNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}
	if commitment == "" {
		commitment = CommitmentConfirmed
	}

	subID, err := c.subscribeSignatureInternal(ctx, signature, commitment)
	if err != nil {
		return nil, err
	}

	// signatureSubscribe delivers a single notification; buffer of one so
	// dispatch never blocks on a departed caller.
	ch := make(chan SignatureNotification, 1)
	c.subsMu.Lock()
	c.subs[subID] = &sigSub{signature: signature, commitment: commitment, ch: ch}
	c.subsMu.Unlock()

	return ch, nil
}

// subscribeSignatureInternal sends the subscribe request and waits for the
// subscription ID, without registering a dispatch channel.
func (c *WSClientImpl) subscribeSignatureInternal(ctx context.Context, signature, commitment string) (int64, error) {
	reqID := c.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]string{"commitment": commitment},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	removePending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		removePending()
		return 0, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		removePending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	// Wait for subscription confirmation (30s timeout for slow providers)
	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		removePending()
		return 0, fmt.Errorf("subscription timeout after 30s")
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		removePending()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// Close all subscription channels
	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	// Close pending subscription channels
	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
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

			// Connection error - attempt reconnect with exponential backoff
			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			// Increase delay for next reconnect (exponential backoff)
			reconnectDelay = reconnectDelay * 2
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

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	// Wait before reconnecting
	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	// Close existing connection
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	// Attempt reconnect
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	// Resubscribe to signatures that have not been notified yet
	c.resubscribeAll()
}

// resubscribeAll resubscribes to all pending signatures after reconnect.
// Signature subscriptions are one-shot, so only undelivered ones remain.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	pending := make(map[int64]*sigSub, len(c.subs))
	for id, sub := range c.subs {
		pending[id] = sub
	}
	c.subsMu.RUnlock()

	for oldSubID, sub := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := c.subscribeSignatureInternal(ctx, sub.signature, sub.commitment)
		cancel()

		if err != nil {
			// Failed to resubscribe, keep old mapping
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldSubID)
		c.subs[newSubID] = sub
		c.subsMu.Unlock()
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	// Try to parse as subscription response first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	// Try to parse as notification
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "signatureNotification" {
		c.handleSignatureNotification(&notif)
		return
	}

	// Check for error response
	var errResp struct {
		JSONRPC string `json:"jsonrpc"`
		ID      uint64 `json:"id"`
		Error   *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		// Log error but don't crash - subscription will timeout
		fmt.Printf("[ws] Error response: code=%d msg=%s\n", errResp.Error.Code, errResp.Error.Message)
	}
}

// handleSubscribeResponse handles subscription confirmation.
func (c *WSClientImpl) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- resp.Result:
		default:
		}
	}
}

// handleSignatureNotification dispatches the one-shot notification to the
// waiting subscriber and removes the subscription.
func (c *WSClientImpl) handleSignatureNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	subID := notif.Params.Subscription

	c.subsMu.Lock()
	sub, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
	}
	c.subsMu.Unlock()

	if !ok {
		return
	}

	n := SignatureNotification{
		Signature: sub.signature,
		Err:       notif.Params.Result.Value.Err,
	}
	if notif.Params.Result.Context != nil {
		n.Slot = notif.Params.Result.Context.Slot
	}

	sub.ch <- n
	close(sub.ch)
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
					// Connection might be dead, reader will handle reconnect
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

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}
