package swap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"solana-swap-service/internal/ata"
	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/jupiter"
)

// Aggregator is the surface of the aggregator client the pipeline uses.
type Aggregator interface {
	GetQuote(ctx context.Context, req *jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	BuildSwapTransactions(ctx context.Context, req *jupiter.SwapRequest) (*jupiter.SwapResponse, error)
}

// nativeSentinel is the pseudo-mint some clients send for raw (unwrapped)
// SOL. The settlement pipeline only trades SPL tokens; raw SOL must be
// expressed as the wrapped-native mint.
const nativeSentinel = "11111111111111111111111111111111"

// RoutePolicy controls route shape requirements.
type RoutePolicy struct {
	// OnlyDirectRoutes asks the aggregator for single-hop routes.
	OnlyDirectRoutes bool

	// RejectIndirect rejects a multi-hop quote returned despite
	// OnlyDirectRoutes. When false the violation is logged and the quote
	// is still used.
	RejectIndirect bool

	// AllowNativeSentinel permits the raw-SOL sentinel as a mint.
	AllowNativeSentinel bool
}

// QuoteParams is a validated quote request.
type QuoteParams struct {
	FromMint    string
	ToMint      string
	Amount      uint64
	SlippageBps int
	SwapMode    domain.SwapMode
}

// QuoteResolver obtains and normalizes aggregator quotes.
type QuoteResolver struct {
	agg         Aggregator
	routePolicy RoutePolicy
	feePolicy   domain.FeePolicy
	maxAttempts int
	retryDelay  time.Duration
	clock       Clock
	logger      *log.Logger
}

// NewQuoteResolver creates a QuoteResolver.
func NewQuoteResolver(agg Aggregator, routePolicy RoutePolicy, feePolicy domain.FeePolicy, logger *log.Logger) *QuoteResolver {
	return &QuoteResolver{
		agg:         agg,
		routePolicy: routePolicy,
		feePolicy:   feePolicy,
		maxAttempts: 3,
		retryDelay:  500 * time.Millisecond,
		clock:       RealClock(),
		logger:      logger,
	}
}

// Resolve validates the request, calls the aggregator and returns a
// normalized quote. Upstream failures are retried with backoff up to the
// attempt budget; validation and route errors fail immediately.
func (r *QuoteResolver) Resolve(ctx context.Context, p QuoteParams) (*domain.Quote, error) {
	if err := r.validate(p); err != nil {
		return nil, err
	}

	req := &jupiter.QuoteRequest{
		InputMint:        p.FromMint,
		OutputMint:       p.ToMint,
		Amount:           p.Amount,
		SlippageBps:      p.SlippageBps,
		SwapMode:         string(p.SwapMode),
		OnlyDirectRoutes: r.routePolicy.OnlyDirectRoutes,
	}
	if r.feePolicy.Enabled {
		req.PlatformFeeBps = r.feePolicy.Bps
	}

	var resp *jupiter.QuoteResponse
	var err error
	delay := r.retryDelay
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		resp, err = r.agg.GetQuote(ctx, req)
		if err == nil {
			break
		}
		if !retryableAggregatorError(err) {
			return nil, classifyAggregatorError("quote", err)
		}
		if attempt == r.maxAttempts {
			return nil, &UpstreamError{Op: "quote", Err: err}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-r.clock.After(delay):
		}
		delay *= 2
	}

	return r.normalize(p, resp)
}

// validate fails fast before any network call.
func (r *QuoteResolver) validate(p QuoteParams) error {
	if p.FromMint == "" || p.ToMint == "" {
		return fmt.Errorf("%w: mint addresses required", ErrInvalidInput)
	}
	if p.FromMint == p.ToMint {
		return fmt.Errorf("%w: input and output mint are identical", ErrInvalidInput)
	}
	if p.Amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !r.routePolicy.AllowNativeSentinel &&
		(p.FromMint == nativeSentinel || p.ToMint == nativeSentinel) {
		return fmt.Errorf("%w: raw-SOL sentinel not tradable, use wrapped mint %s",
			ErrInvalidInput, ata.WrappedSOLMint)
	}
	switch p.SwapMode {
	case domain.SwapModeExactIn, domain.SwapModeExactOut:
	default:
		return fmt.Errorf("%w: unknown swap mode %q", ErrInvalidInput, p.SwapMode)
	}
	return nil
}

// normalize converts the aggregator response into a domain quote and
// applies route policy.
func (r *QuoteResolver) normalize(p QuoteParams, resp *jupiter.QuoteResponse) (*domain.Quote, error) {
	if len(resp.RoutePlan) == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, p.FromMint, p.ToMint)
	}

	inAmount, err := jupiter.ParseAmount(resp.InAmount)
	if err != nil {
		return nil, fmt.Errorf("quote inAmount: %w", err)
	}
	outAmount, err := jupiter.ParseAmount(resp.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("quote outAmount: %w", err)
	}
	if inAmount == 0 || outAmount == 0 {
		return nil, fmt.Errorf("%w: aggregator quoted a zero amount", ErrNoRoute)
	}

	quote := &domain.Quote{
		InputMint:   resp.InputMint,
		OutputMint:  resp.OutputMint,
		InAmount:    inAmount,
		OutAmount:   outAmount,
		SlippageBps: resp.SlippageBps,
		SwapMode:    domain.SwapMode(resp.SwapMode),
		RoutePlan:   make([]domain.RouteHop, 0, len(resp.RoutePlan)),
		ContextSlot: resp.ContextSlot,
		RawPayload:  resp.Raw,
		FetchedAt:   r.clock.Now().UnixMilli(),
	}

	if resp.PriceImpactPct != "" {
		impact, err := strconv.ParseFloat(resp.PriceImpactPct, 64)
		if err != nil {
			return nil, fmt.Errorf("quote priceImpactPct %q: %w", resp.PriceImpactPct, err)
		}
		quote.PriceImpactPct = impact
	}

	for _, step := range resp.RoutePlan {
		feeAmount, err := jupiter.ParseAmount(step.SwapInfo.FeeAmount)
		if err != nil {
			feeAmount = 0
		}
		quote.RoutePlan = append(quote.RoutePlan, domain.RouteHop{
			AMMKey:     step.SwapInfo.AmmKey,
			Label:      step.SwapInfo.Label,
			InputMint:  step.SwapInfo.InputMint,
			OutputMint: step.SwapInfo.OutputMint,
			FeeMint:    step.SwapInfo.FeeMint,
			FeeAmount:  feeAmount,
		})
	}

	if resp.PlatformFee != nil {
		feeAmount, err := jupiter.ParseAmount(resp.PlatformFee.Amount)
		if err != nil {
			return nil, fmt.Errorf("quote platformFee amount: %w", err)
		}
		quote.PlatformFee = &domain.PlatformFee{
			FeeMint:   resp.PlatformFee.FeeMint,
			FeeAmount: feeAmount,
			FeeBps:    resp.PlatformFee.FeeBps,
		}
	}

	if r.routePolicy.OnlyDirectRoutes && !quote.IsDirect() {
		if r.routePolicy.RejectIndirect {
			return nil, fmt.Errorf("%w: %d hops", ErrIndirectRoute, len(quote.RoutePlan))
		}
		r.logger.Printf("policy violation: requested direct route, aggregator returned %d hops for %s -> %s",
			len(quote.RoutePlan), p.FromMint, p.ToMint)
	}

	return quote, nil
}

// retryableAggregatorError reports whether the aggregator call may be
// retried: network failures and 5xx responses qualify.
func retryableAggregatorError(err error) bool {
	var se *jupiter.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Network-level failures have no status code
	return true
}

// classifyAggregatorError maps a non-retryable aggregator error into the
// pipeline taxonomy.
func classifyAggregatorError(op string, err error) error {
	var se *jupiter.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("aggregator %s rejected: %w", op, err)
	}
	return &UpstreamError{Op: op, Err: err}
}
