package jupiter

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// QuoteRequest holds quote endpoint query parameters.
type QuoteRequest struct {
	InputMint        string
	OutputMint       string
	Amount           uint64
	SlippageBps      int
	SwapMode         string // ExactIn | ExactOut
	OnlyDirectRoutes bool
	PlatformFeeBps   int // 0 disables the platform fee
}

// SwapInfo is one leg of the aggregator's route plan.
type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// RoutePlanStep wraps a SwapInfo with its share of the input.
type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

// PlatformFeeInfo is the platform fee section of a quote.
type PlatformFeeInfo struct {
	Amount  string `json:"amount"`
	FeeMint string `json:"feeMint"`
	FeeBps  int    `json:"feeBps"`
}

// QuoteResponse is the aggregator's quote payload. Known fields are parsed
// strictly; anything the schema does not cover lands in Extensions instead
// of being dropped, so schema drift is visible rather than silent.
type QuoteResponse struct {
	InputMint            string           `json:"inputMint"`
	InAmount             string           `json:"inAmount"`
	OutputMint           string           `json:"outputMint"`
	OutAmount            string           `json:"outAmount"`
	OtherAmountThreshold string           `json:"otherAmountThreshold"`
	SwapMode             string           `json:"swapMode"`
	SlippageBps          int              `json:"slippageBps"`
	PlatformFee          *PlatformFeeInfo `json:"platformFee"`
	PriceImpactPct       string           `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep  `json:"routePlan"`
	ContextSlot          int64            `json:"contextSlot"`

	// Extensions holds fields the schema does not model.
	Extensions map[string]json.RawMessage `json:"-"`

	// Raw is the response body verbatim, replayed to the build endpoint.
	Raw []byte `json:"-"`
}

// quoteKnownFields are the top-level keys the strict schema consumes.
var quoteKnownFields = map[string]bool{
	"inputMint": true, "inAmount": true, "outputMint": true, "outAmount": true,
	"otherAmountThreshold": true, "swapMode": true, "slippageBps": true,
	"platformFee": true, "priceImpactPct": true, "routePlan": true,
	"contextSlot": true,
}

// UnmarshalJSON parses known fields and diverts the rest into Extensions.
func (q *QuoteResponse) UnmarshalJSON(data []byte) error {
	type alias QuoteResponse
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k := range fields {
		if quoteKnownFields[k] {
			delete(fields, k)
		}
	}

	*q = QuoteResponse(known)
	if len(fields) > 0 {
		q.Extensions = fields
	}
	return nil
}

// ParseAmount parses one of the response's stringified integer amounts.
func ParseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// SwapRequest is the transaction-build endpoint body. QuoteResponse carries
// the quote payload verbatim; the aggregator rejects modified quotes.
type SwapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	FeeAccount                string          `json:"feeAccount,omitempty"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports,omitempty"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit,omitempty"`
}

// SwapResponse carries the built transactions, base64-encoded per role.
// Setup and cleanup are optional depending on the route.
type SwapResponse struct {
	SetupTransaction     string `json:"setupTransaction,omitempty"`
	SwapTransaction      string `json:"swapTransaction"`
	CleanupTransaction   string `json:"cleanupTransaction,omitempty"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}
