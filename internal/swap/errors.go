// Package swap implements the trade settlement pipeline: quote resolution,
// fee account selection, account provisioning, transaction assembly,
// signing/submission and confirmation tracking.
package swap

import (
	"errors"
	"fmt"
)

// Pipeline errors. Classification follows the settlement error taxonomy:
// invalid input fails fast with no network calls, upstream errors are
// retryable with bounded backoff, route and on-chain errors are not.
var (
	// ErrInvalidInput marks a request rejected before any network call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoRoute means the aggregator found no path between the mints.
	// Non-retryable; the user must change the pair or amount.
	ErrNoRoute = errors.New("no viable route")

	// ErrSwapTransactionMissing means the build response lacked the
	// swap-role transaction. Setup/cleanup absence is normal; this is not.
	ErrSwapTransactionMissing = errors.New("aggregator response missing swap transaction")

	// ErrIndirectRoute marks a multi-hop quote rejected under a
	// direct-only policy with RejectIndirect set.
	ErrIndirectRoute = errors.New("multi-hop route under direct-only policy")

	// ErrQuoteExpired marks a quote older than the configured TTL.
	ErrQuoteExpired = errors.New("quote expired")
)

// UpstreamError wraps a transient aggregator or RPC failure. Retryable.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// OnChainError is a simulation or execution rejection by the ledger.
// Non-retryable; Detail carries the node's diagnostics verbatim.
type OnChainError struct {
	Signature string // empty when rejected before submission
	Detail    string
}

func (e *OnChainError) Error() string {
	if e.Signature == "" {
		return fmt.Sprintf("on-chain rejection: %s", e.Detail)
	}
	return fmt.Sprintf("on-chain rejection (%s): %s", e.Signature, e.Detail)
}

// IsRetryable reports whether the error may be retried with backoff.
func IsRetryable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
