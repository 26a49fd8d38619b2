package swap

import (
	"fmt"

	"solana-swap-service/internal/ata"
	"solana-swap-service/internal/domain"
)

// FeeResolver picks the mint a platform fee is collected in and derives the
// platform's token account for it. Pure and deterministic: same quote and
// policy always yield the same decision.
type FeeResolver struct {
	policy domain.FeePolicy
}

// NewFeeResolver creates a FeeResolver.
func NewFeeResolver(policy domain.FeePolicy) *FeeResolver {
	return &FeeResolver{policy: policy}
}

// Resolve selects the fee mint and derives the platform fee account.
// Returns nil when fee collection is disabled.
//
// Selection order:
//  1. The mint the aggregator already priced the fee in, when present.
//  2. ExactOut swaps must collect in the input mint.
//  3. A wrapped-native mint on either side of the swap.
//  4. The input mint.
func (r *FeeResolver) Resolve(quote *domain.Quote) (*domain.FeeDecision, error) {
	if !r.policy.Enabled {
		return nil, nil
	}
	if r.policy.Owner == "" {
		return nil, fmt.Errorf("fee policy enabled without owner address")
	}

	mint := r.selectMint(quote)
	account, _, err := ata.FindAssociatedTokenAddress(r.policy.Owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive fee account for mint %s: %w", mint, err)
	}

	return &domain.FeeDecision{
		FeeMint:    mint,
		FeeAccount: account,
	}, nil
}

func (r *FeeResolver) selectMint(quote *domain.Quote) string {
	if quote.PlatformFee != nil && quote.PlatformFee.FeeMint != "" {
		return quote.PlatformFee.FeeMint
	}
	if quote.SwapMode == domain.SwapModeExactOut {
		return quote.InputMint
	}
	if quote.InputMint == ata.WrappedSOLMint || quote.OutputMint == ata.WrappedSOLMint {
		return ata.WrappedSOLMint
	}
	return quote.InputMint
}
