package swap

import (
	"context"
	"encoding/base64"
	"fmt"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/jupiter"
)

// TransactionAssembler asks the aggregator to build the transactions for a
// resolved quote. The quote's raw payload is replayed verbatim so the
// aggregator builds exactly what it priced.
type TransactionAssembler struct {
	agg               Aggregator
	wrapUnwrapSol     bool
	prioritizationFee uint64
}

// AssemblerOption configures the assembler.
type AssemblerOption func(*TransactionAssembler)

// WithPrioritizationFee sets the priority fee in lamports attached to the
// built swap transaction.
func WithPrioritizationFee(lamports uint64) AssemblerOption {
	return func(a *TransactionAssembler) { a.prioritizationFee = lamports }
}

// NewTransactionAssembler creates a TransactionAssembler. Wrapped-SOL
// handling is delegated to the aggregator by default.
func NewTransactionAssembler(agg Aggregator, opts ...AssemblerOption) *TransactionAssembler {
	a := &TransactionAssembler{
		agg:           agg,
		wrapUnwrapSol: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the ordered unsigned transaction set for the quote.
// A missing swap-role transaction is an error; setup and cleanup are
// optional.
func (a *TransactionAssembler) Assemble(ctx context.Context, quote *domain.Quote, wallet string, fee *domain.FeeDecision) (domain.UnsignedTransactionSet, uint64, error) {
	if len(quote.RawPayload) == 0 {
		return nil, 0, fmt.Errorf("quote has no raw payload to replay")
	}

	req := &jupiter.SwapRequest{
		QuoteResponse:             quote.RawPayload,
		UserPublicKey:             wallet,
		WrapAndUnwrapSol:          a.wrapUnwrapSol,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: a.prioritizationFee,
	}
	if fee != nil {
		req.FeeAccount = fee.FeeAccount
	}

	resp, err := a.agg.BuildSwapTransactions(ctx, req)
	if err != nil {
		return nil, 0, classifyAggregatorError("swap build", err)
	}

	var set domain.UnsignedTransactionSet
	for _, entry := range []struct {
		role    domain.TransactionRole
		payload string
	}{
		{domain.RoleSetup, resp.SetupTransaction},
		{domain.RoleSwap, resp.SwapTransaction},
		{domain.RoleCleanup, resp.CleanupTransaction},
	} {
		if entry.payload == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(entry.payload)
		if err != nil {
			return nil, 0, fmt.Errorf("decode %s transaction: %w", entry.role, err)
		}
		set = append(set, domain.UnsignedTransaction{Role: entry.role, Payload: raw})
	}

	if set.Swap() == nil {
		return nil, 0, ErrSwapTransactionMissing
	}
	return set, resp.LastValidBlockHeight, nil
}
