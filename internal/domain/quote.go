package domain

// SwapMode determines which side of the swap carries the fixed amount.
type SwapMode string

// Swap mode constants
const (
	SwapModeExactIn  SwapMode = "ExactIn"
	SwapModeExactOut SwapMode = "ExactOut"
)

// RouteHop represents one leg of a multi-step swap through an intermediate market.
type RouteHop struct {
	AMMKey     string // pool/market address
	Label      string // AMM name (Raydium, Orca, ...)
	InputMint  string
	OutputMint string
	FeeMint    string // mint the AMM fee is paid in
	FeeAmount  uint64
}

// PlatformFee describes the platform fee the aggregator priced into the quote.
type PlatformFee struct {
	FeeMint   string
	FeeAmount uint64
	FeeBps    int
}

// Quote is a normalized aggregator quote. Immutable once returned; it expires
// after a short aggregator-defined window and must be re-resolved when stale.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	SlippageBps    int
	SwapMode       SwapMode
	PriceImpactPct float64
	RoutePlan      []RouteHop
	PlatformFee    *PlatformFee
	ContextSlot    int64

	// RawPayload holds the aggregator's original quote response verbatim,
	// replayed to the transaction-build endpoint.
	RawPayload []byte

	// FetchedAt is when the quote was obtained (Unix ms).
	FetchedAt int64
}

// IsDirect reports whether the quote routes through a single hop.
func (q *Quote) IsDirect() bool {
	return len(q.RoutePlan) == 1
}
