// Package jupiter is an HTTP client for the DEX aggregator's quote and
// transaction-build endpoints.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single aggregator request.
const DefaultTimeout = 15 * time.Second

// StatusError is a non-2xx aggregator response. Status codes >= 500 are
// retryable; 4xx responses are not.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("aggregator status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may be retried as-is.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the aggregator API. Constructed with explicit configuration
// and passed by reference, never an ambient singleton.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithAPIKey sets the API key header on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates an aggregator client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuote calls the quote endpoint and returns the parsed response with
// the raw payload retained for replay to the build endpoint.
func (c *Client) GetQuote(ctx context.Context, req *QuoteRequest) (*QuoteResponse, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if req.SwapMode != "" {
		q.Set("swapMode", req.SwapMode)
	}
	if req.OnlyDirectRoutes {
		q.Set("onlyDirectRoutes", "true")
	}
	if req.PlatformFeeBps > 0 {
		q.Set("platformFeeBps", strconv.Itoa(req.PlatformFeeBps))
	}

	body, err := c.do(ctx, http.MethodGet, "/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("unmarshal quote response: %w", err)
	}
	quote.Raw = body

	return &quote, nil
}

// BuildSwapTransactions calls the transaction-build endpoint for a quote.
func (c *Client) BuildSwapTransactions(ctx context.Context, req *SwapRequest) (*SwapResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/swap", payload)
	if err != nil {
		return nil, err
	}

	var swap SwapResponse
	if err := json.Unmarshal(body, &swap); err != nil {
		return nil, fmt.Errorf("unmarshal swap response: %w", err)
	}

	return &swap, nil
}

// do performs one HTTP request and returns the response body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aggregator request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read aggregator response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
