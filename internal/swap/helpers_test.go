package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"solana-swap-service/internal/jupiter"
)

// fakeClock advances instantly on After, so poll and backoff loops run
// without real delay.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// mockAggregator implements Aggregator with scripted responses.
type mockAggregator struct {
	mu sync.Mutex

	quoteFunc  func(req *jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	swapFunc   func(req *jupiter.SwapRequest) (*jupiter.SwapResponse, error)
	quoteCalls int
	swapCalls  int

	lastQuoteReq *jupiter.QuoteRequest
	lastSwapReq  *jupiter.SwapRequest
}

func (m *mockAggregator) GetQuote(_ context.Context, req *jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	m.mu.Lock()
	m.quoteCalls++
	m.lastQuoteReq = req
	fn := m.quoteFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("no quote scripted")
	}
	return fn(req)
}

func (m *mockAggregator) BuildSwapTransactions(_ context.Context, req *jupiter.SwapRequest) (*jupiter.SwapResponse, error) {
	m.mu.Lock()
	m.swapCalls++
	m.lastSwapReq = req
	fn := m.swapFunc
	m.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("no swap build scripted")
	}
	return fn(req)
}

func (m *mockAggregator) QuoteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteCalls
}

// makeQuoteResponse builds a plausible quote response with the given hop
// count and a raw payload consistent with its fields.
func makeQuoteResponse(t *testing.T, inputMint, outputMint string, inAmount, outAmount uint64, hops int) *jupiter.QuoteResponse {
	t.Helper()

	plan := make([]jupiter.RoutePlanStep, hops)
	for i := range plan {
		plan[i] = jupiter.RoutePlanStep{
			SwapInfo: jupiter.SwapInfo{
				AmmKey:     fmt.Sprintf("pool-%d", i),
				Label:      "Orca",
				InputMint:  inputMint,
				OutputMint: outputMint,
				FeeAmount:  "100",
				FeeMint:    inputMint,
			},
			Percent: 100,
		}
	}

	resp := &jupiter.QuoteResponse{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		InAmount:    fmt.Sprintf("%d", inAmount),
		OutAmount:   fmt.Sprintf("%d", outAmount),
		SwapMode:    "ExactIn",
		SlippageBps: 100,
		RoutePlan:   plan,
		ContextSlot: 1000,
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal quote response: %v", err)
	}
	resp.Raw = raw
	return resp
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
