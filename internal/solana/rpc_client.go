package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements RPCClient using HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error. Data carries the node's
// diagnostic payload (e.g. simulation logs for a rejected transaction).
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a JSON-RPC call with retries and exponential backoff.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// GetLatestBlockhash retrieves a recent blockhash for transaction building.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	params := []interface{}{
		map[string]interface{}{
			"commitment": CommitmentFinalized,
		},
	}

	var result getLatestBlockhashResult
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return nil, err
	}

	if result.Value.Blockhash == "" {
		return nil, fmt.Errorf("empty blockhash in response")
	}

	return &LatestBlockhash{
		Blockhash:            result.Value.Blockhash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

type getLatestBlockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// SendTransaction submits a signed wire transaction and returns its signature.
// A preflight simulation failure surfaces as *RPCError with the node's
// diagnostic payload intact.
func (c *HTTPClient) SendTransaction(ctx context.Context, wireTx []byte, opts *SendOpts) (string, error) {
	config := map[string]interface{}{
		"encoding": "base64",
	}
	if opts != nil {
		if opts.SkipPreflight {
			config["skipPreflight"] = true
		}
		if opts.PreflightCommitment != "" {
			config["preflightCommitment"] = opts.PreflightCommitment
		}
		if opts.MaxRetries != nil {
			config["maxRetries"] = *opts.MaxRetries
		}
	}

	params := []interface{}{
		base64.StdEncoding.EncodeToString(wireTx),
		config,
	}

	var signature string
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	if signature == "" {
		return "", fmt.Errorf("empty signature in sendTransaction response")
	}
	return signature, nil
}

// GetSignatureStatuses retrieves confirmation status for up to 256 signatures.
// Result entries are positionally aligned with the input; nil means the node
// has no record of the signature yet.
func (c *HTTPClient) GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error) {
	params := []interface{}{
		signatures,
		map[string]interface{}{
			"searchTransactionHistory": true,
		},
	}

	var result getSignatureStatusesResult
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}

	return result.Value, nil
}

type getSignatureStatusesResult struct {
	Value []*SignatureStatus `json:"value"`
}

// GetBalance retrieves the lamport balance of an address.
func (c *HTTPClient) GetBalance(ctx context.Context, pubkey string) (uint64, error) {
	params := []interface{}{pubkey}

	var result getBalanceResult
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}

	return result.Value, nil
}

type getBalanceResult struct {
	Value uint64 `json:"value"`
}
