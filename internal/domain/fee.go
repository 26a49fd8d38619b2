package domain

// FeePolicy configures platform fee collection.
type FeePolicy struct {
	Enabled bool
	Bps     int    // platform fee in basis points, applied by the aggregator
	Owner   string // platform fee owner address (base58)
}

// FeeDecision is the resolved fee mint and the platform's token account for
// it. Derived deterministically from a quote and a fee policy; embedded in
// the trade record rather than persisted on its own.
type FeeDecision struct {
	FeeMint    string
	FeeAccount string // platform's associated token account for FeeMint
}
