package swap

import (
	"context"
	"fmt"
	"log"
	"time"

	"solana-swap-service/internal/solana"
)

// ConfirmationState is the tracker's view of one submitted transaction.
type ConfirmationState string

// Confirmation states. Failed and Finalized are terminal; Confirmed is
// terminal when the target commitment is confirmed. TimedOut means the
// outcome is unknown, not that the transaction failed.
const (
	ConfirmationPending   ConfirmationState = "pending"
	ConfirmationConfirmed ConfirmationState = "confirmed"
	ConfirmationFinalized ConfirmationState = "finalized"
	ConfirmationFailed    ConfirmationState = "failed"
	ConfirmationTimedOut  ConfirmationState = "timed_out"
)

// ConfirmationResult is the tracker's verdict for one signature.
type ConfirmationResult struct {
	Signature string
	State     ConfirmationState
	Slot      int64
	ErrDetail string // node diagnostics verbatim, set only for Failed
}

// commitmentRank orders commitment levels.
var commitmentRank = map[string]int{
	solana.CommitmentProcessed: 0,
	solana.CommitmentConfirmed: 1,
	solana.CommitmentFinalized: 2,
}

// ConfirmationTracker polls a submitted transaction to a terminal state.
// It observes only; it never resubmits.
type ConfirmationTracker struct {
	rpc          solana.RPCClient
	ws           solana.WSClient // optional fast path, may be nil
	clock        Clock
	pollInterval time.Duration
	maxAttempts  int
	logger       *log.Logger
}

// TrackerOption configures the tracker.
type TrackerOption func(*ConfirmationTracker)

// WithWSClient enables the websocket signature-subscription fast path.
func WithWSClient(ws solana.WSClient) TrackerOption {
	return func(t *ConfirmationTracker) { t.ws = ws }
}

// WithPollInterval sets the delay between status polls.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *ConfirmationTracker) { t.pollInterval = d }
}

// WithMaxAttempts bounds the number of status polls before timing out.
func WithMaxAttempts(n int) TrackerOption {
	return func(t *ConfirmationTracker) { t.maxAttempts = n }
}

// WithClock injects a clock, used by tests.
func WithClock(c Clock) TrackerOption {
	return func(t *ConfirmationTracker) { t.clock = c }
}

// NewConfirmationTracker creates a tracker with poll defaults sized for a
// ~60s confirmation window.
func NewConfirmationTracker(rpc solana.RPCClient, logger *log.Logger, opts ...TrackerOption) *ConfirmationTracker {
	t := &ConfirmationTracker{
		rpc:          rpc,
		clock:        RealClock(),
		pollInterval: 2 * time.Second,
		maxAttempts:  30,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track follows signature until it reaches targetCommitment, fails on-chain
// or the poll budget runs out. A websocket notification short-circuits the
// poll loop when a WS client is configured.
func (t *ConfirmationTracker) Track(ctx context.Context, signature, targetCommitment string) (*ConfirmationResult, error) {
	if _, ok := commitmentRank[targetCommitment]; !ok {
		return nil, fmt.Errorf("unknown commitment %q", targetCommitment)
	}

	var wsCh <-chan solana.SignatureNotification
	if t.ws != nil {
		ch, err := t.ws.SubscribeSignature(ctx, signature, targetCommitment)
		if err != nil {
			t.logger.Printf("signature subscription failed, polling only: %v", err)
		} else {
			wsCh = ch
		}
	}

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		res, err := t.CheckOnce(ctx, signature, targetCommitment)
		if err == nil && res.State != ConfirmationPending {
			return res, nil
		}
		if err != nil {
			t.logger.Printf("status poll for %s: %v", signature, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case note, ok := <-wsCh:
			if !ok {
				wsCh = nil
				continue
			}
			return t.resultFromNotification(signature, targetCommitment, note), nil
		case <-t.clock.After(t.pollInterval):
		}
	}

	return &ConfirmationResult{Signature: signature, State: ConfirmationTimedOut}, nil
}

// CheckOnce performs a single status query. Returns a Pending result when
// the signature is unknown or below the target commitment.
func (t *ConfirmationTracker) CheckOnce(ctx context.Context, signature, targetCommitment string) (*ConfirmationResult, error) {
	statuses, err := t.rpc.GetSignatureStatuses(ctx, []string{signature})
	if err != nil {
		return nil, &UpstreamError{Op: "getSignatureStatuses", Err: err}
	}

	if len(statuses) == 0 || statuses[0] == nil {
		return &ConfirmationResult{Signature: signature, State: ConfirmationPending}, nil
	}

	status := statuses[0]
	if status.Err != nil {
		return &ConfirmationResult{
			Signature: signature,
			State:     ConfirmationFailed,
			Slot:      status.Slot,
			ErrDetail: fmt.Sprintf("%v", status.Err),
		}, nil
	}

	if status.ConfirmationStatus == solana.CommitmentFinalized {
		return &ConfirmationResult{Signature: signature, State: ConfirmationFinalized, Slot: status.Slot}, nil
	}
	if commitmentRank[status.ConfirmationStatus] >= commitmentRank[targetCommitment] {
		return &ConfirmationResult{Signature: signature, State: ConfirmationConfirmed, Slot: status.Slot}, nil
	}
	return &ConfirmationResult{Signature: signature, State: ConfirmationPending, Slot: status.Slot}, nil
}

func (t *ConfirmationTracker) resultFromNotification(signature, targetCommitment string, note solana.SignatureNotification) *ConfirmationResult {
	if note.Err != nil {
		return &ConfirmationResult{
			Signature: signature,
			State:     ConfirmationFailed,
			Slot:      note.Slot,
			ErrDetail: fmt.Sprintf("%v", note.Err),
		}
	}
	state := ConfirmationConfirmed
	if targetCommitment == solana.CommitmentFinalized {
		state = ConfirmationFinalized
	}
	return &ConfirmationResult{Signature: signature, State: state, Slot: note.Slot}
}
