package swap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-service/internal/solana"
	"solana-swap-service/internal/solana/stub"
)

// sequencedRPC serves a scripted sequence of signature statuses, repeating
// the last entry once the script runs out.
type sequencedRPC struct {
	*stub.RPCClient
	mu    sync.Mutex
	seq   []*solana.SignatureStatus
	calls int
}

func newSequencedRPC(seq ...*solana.SignatureStatus) *sequencedRPC {
	return &sequencedRPC{RPCClient: stub.NewRPCClient(), seq: seq}
}

func (s *sequencedRPC) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	var status *solana.SignatureStatus
	if len(s.seq) > 0 {
		status = s.seq[0]
		if len(s.seq) > 1 {
			s.seq = s.seq[1:]
		}
	}

	out := make([]*solana.SignatureStatus, len(signatures))
	for i := range signatures {
		out[i] = status
	}
	return out, nil
}

func (s *sequencedRPC) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestTracker(rpc solana.RPCClient, maxAttempts int) *ConfirmationTracker {
	return NewConfirmationTracker(rpc, testLogger(),
		WithClock(newFakeClock()),
		WithPollInterval(time.Millisecond),
		WithMaxAttempts(maxAttempts),
	)
}

func TestTracker_FailedImmediately(t *testing.T) {
	rpc := newSequencedRPC(&solana.SignatureStatus{
		Slot:               100,
		Err:                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		ConfirmationStatus: solana.CommitmentConfirmed,
	})
	tracker := newTestTracker(rpc, 10)

	result, err := tracker.Track(context.Background(), "sig1", solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationFailed, result.State,
		"an execution error must fail the trade even at the target commitment")
	assert.Contains(t, result.ErrDetail, "InstructionError")
	assert.Equal(t, 1, rpc.Calls())
}

func TestTracker_PendingThenConfirmed(t *testing.T) {
	rpc := newSequencedRPC(
		nil,
		&solana.SignatureStatus{Slot: 100, ConfirmationStatus: solana.CommitmentProcessed},
		&solana.SignatureStatus{Slot: 101, ConfirmationStatus: solana.CommitmentConfirmed},
	)
	tracker := newTestTracker(rpc, 10)

	result, err := tracker.Track(context.Background(), "sig1", solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, result.State)
	assert.Equal(t, int64(101), result.Slot)
	assert.Equal(t, 3, rpc.Calls())
}

func TestTracker_Finalized(t *testing.T) {
	rpc := newSequencedRPC(
		&solana.SignatureStatus{Slot: 100, ConfirmationStatus: solana.CommitmentFinalized},
	)
	tracker := newTestTracker(rpc, 10)

	result, err := tracker.Track(context.Background(), "sig1", solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationFinalized, result.State)
}

func TestTracker_ConfirmedBelowFinalizedTarget(t *testing.T) {
	rpc := newSequencedRPC(
		&solana.SignatureStatus{Slot: 100, ConfirmationStatus: solana.CommitmentConfirmed},
	)
	tracker := newTestTracker(rpc, 3)

	// Target finalized: confirmed is still pending
	result, err := tracker.Track(context.Background(), "sig1", solana.CommitmentFinalized)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationTimedOut, result.State)
}

func TestTracker_TimedOut(t *testing.T) {
	rpc := newSequencedRPC(nil)
	tracker := newTestTracker(rpc, 5)

	result, err := tracker.Track(context.Background(), "sig1", solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationTimedOut, result.State)
	assert.Equal(t, 5, rpc.Calls(), "poll budget must be honored")
}

func TestTracker_UnknownCommitment(t *testing.T) {
	tracker := newTestTracker(newSequencedRPC(), 5)
	_, err := tracker.Track(context.Background(), "sig1", "eventually")
	assert.Error(t, err)
}

func TestTracker_CheckOnce(t *testing.T) {
	rpc := newSequencedRPC(nil)
	tracker := newTestTracker(rpc, 5)

	result, err := tracker.CheckOnce(context.Background(), "sig1", solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationPending, result.State)

	rpc.seq = []*solana.SignatureStatus{{Slot: 200, ConfirmationStatus: solana.CommitmentFinalized}}
	result, err = tracker.CheckOnce(context.Background(), "sig2", solana.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationFinalized, result.State)
}
