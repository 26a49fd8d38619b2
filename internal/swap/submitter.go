package swap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/solana"
)

// Submitter signs aggregator-built transactions with the trade wallet and
// submits them in role order. When a set has multiple transactions, each is
// confirmed before the next is sent so account-creation effects are visible
// to the swap. The final transaction's confirmation is left to the caller.
type Submitter struct {
	rpc      solana.RPCClient
	tracker  *ConfirmationTracker
	sendOpts *solana.SendOpts
	logger   *log.Logger
}

// NewSubmitter creates a Submitter. Preflight simulation stays enabled so
// a doomed swap is rejected before it costs a fee.
func NewSubmitter(rpc solana.RPCClient, tracker *ConfirmationTracker, logger *log.Logger) *Submitter {
	return &Submitter{
		rpc:     rpc,
		tracker: tracker,
		sendOpts: &solana.SendOpts{
			PreflightCommitment: solana.CommitmentConfirmed,
		},
		logger: logger,
	}
}

// Submit signs and submits the set with wallet, returning signatures in
// submission order. On error the returned signatures cover everything
// already submitted; callers must treat those as possibly landed.
func (s *Submitter) Submit(ctx context.Context, set domain.UnsignedTransactionSet, wallet *solana.Keypair) ([]string, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("empty transaction set")
	}

	txs := make([]*solana.WireTransaction, len(set))
	for i, unsigned := range set {
		tx, err := solana.ParseWireTransaction(unsigned.Payload)
		if err != nil {
			return nil, fmt.Errorf("parse %s transaction: %w", unsigned.Role, err)
		}
		tx.Sign(wallet)
		if missing := tx.MissingSigners(); len(missing) > 0 {
			return nil, fmt.Errorf("%s transaction still missing signers: %s",
				unsigned.Role, strings.Join(missing, ", "))
		}
		txs[i] = tx
	}

	var signatures []string
	for i, tx := range txs {
		role := set[i].Role
		signature, err := s.rpc.SendTransaction(ctx, tx.Serialize(), s.sendOpts)
		if err != nil {
			return signatures, mapSendError(string(role), err)
		}
		signatures = append(signatures, signature)
		s.logger.Printf("submitted %s transaction: %s", role, signature)

		// Earlier transactions in the set prepare accounts the later ones
		// depend on, so they must land first.
		if i < len(txs)-1 {
			result, err := s.tracker.Track(ctx, signature, solana.CommitmentConfirmed)
			if err != nil {
				return signatures, err
			}
			switch result.State {
			case ConfirmationConfirmed, ConfirmationFinalized:
			case ConfirmationFailed:
				return signatures, &OnChainError{Signature: signature, Detail: result.ErrDetail}
			default:
				return signatures, &UpstreamError{
					Op:  string(role),
					Err: fmt.Errorf("confirmation timed out for %s", signature),
				}
			}
		}
	}

	return signatures, nil
}

// mapSendError classifies a sendTransaction failure: a node RPC error is an
// on-chain rejection carrying the node's diagnostics verbatim, anything
// else is a retryable upstream failure.
func mapSendError(op string, err error) error {
	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		detail := rpcErr.Message
		if len(rpcErr.Data) > 0 {
			detail = fmt.Sprintf("%s: %s", rpcErr.Message, string(rpcErr.Data))
		}
		return &OnChainError{Detail: detail}
	}
	return &UpstreamError{Op: op, Err: err}
}
