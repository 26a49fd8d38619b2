package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/storage"
)

func makeTrade(id, wallet string, createdAt int64) *domain.Trade {
	return &domain.Trade{
		TradeID:     id,
		Wallet:      wallet,
		FromMint:    "So11111111111111111111111111111111111111112",
		ToMint:      "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		Amount:      1_000_000_000,
		SlippageBps: 100,
		SwapMode:    domain.SwapModeExactIn,
		Status:      domain.TradeRequested,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func TestTradeStore_CreateAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := makeTrade("t1", "wallet-a", 1000)
	require.NoError(t, store.Create(ctx, trade))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, trade.Wallet, got.Wallet)
	assert.Equal(t, domain.TradeRequested, got.Status)

	// Duplicate key
	err = store.Create(ctx, makeTrade("t1", "wallet-a", 1001))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Not found
	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_CreateRejectsEmptyID(t *testing.T) {
	store := NewTradeStore()
	err := store.Create(context.Background(), makeTrade("", "wallet-a", 1000))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeStore_UpdateStatus_ForwardPath(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, makeTrade("t1", "wallet-a", 1000)))

	out := uint64(157_000_000)
	feeMint := "So11111111111111111111111111111111111111112"
	require.NoError(t, store.UpdateStatus(ctx, "t1", domain.TradeQuoted, &storage.TradeUpdate{
		OutAmount: &out,
		FeeMint:   &feeMint,
	}))
	require.NoError(t, store.UpdateStatus(ctx, "t1", domain.TradeSubmitting, nil))
	require.NoError(t, store.UpdateStatus(ctx, "t1", domain.TradeAwaitingConfirmation, &storage.TradeUpdate{
		Signatures: []string{"sig1"},
	}))
	require.NoError(t, store.UpdateStatus(ctx, "t1", domain.TradeConfirmed, nil))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeConfirmed, got.Status)
	require.NotNil(t, got.OutAmount)
	assert.Equal(t, out, *got.OutAmount)
	require.NotNil(t, got.FeeMint)
	assert.Equal(t, feeMint, *got.FeeMint)
	assert.Equal(t, []string{"sig1"}, got.Signatures)
}

func TestTradeStore_UpdateStatus_RejectsIllegalTransitions(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, makeTrade("t1", "wallet-a", 1000)))

	// Skipping a state
	err := store.UpdateStatus(ctx, "t1", domain.TradeSubmitting, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	// Failed is reachable from any non-terminal state
	reason := "no funds"
	require.NoError(t, store.UpdateStatus(ctx, "t1", domain.TradeFailed, &storage.TradeUpdate{FailureReason: &reason}))

	// Terminal states never move again
	err = store.UpdateStatus(ctx, "t1", domain.TradeConfirmed, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	err = store.UpdateStatus(ctx, "t1", domain.TradeFailed, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	// Unknown trade
	err = store.UpdateStatus(ctx, "missing", domain.TradeQuoted, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_ListByWallet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, makeTrade("t1", "wallet-a", 1000)))
	require.NoError(t, store.Create(ctx, makeTrade("t2", "wallet-a", 3000)))
	require.NoError(t, store.Create(ctx, makeTrade("t3", "wallet-b", 2000)))
	require.NoError(t, store.Create(ctx, makeTrade("t4", "wallet-a", 2000)))

	trades, err := store.ListByWallet(ctx, "wallet-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "t2", trades[0].TradeID, "newest first")
	assert.Equal(t, "t4", trades[1].TradeID)
	assert.Equal(t, "t1", trades[2].TradeID)

	// Pagination
	trades, err = store.ListByWallet(ctx, "wallet-a", 1, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "t4", trades[0].TradeID)

	// Offset past the end
	trades, err = store.ListByWallet(ctx, "wallet-a", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, trades)

	// Unknown wallet
	trades, err = store.ListByWallet(ctx, "wallet-z", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestTradeStore_CloneIsolation(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, makeTrade("t1", "wallet-a", 1000)))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	got.Wallet = "mutated"
	got.Signatures = append(got.Signatures, "sig-x")

	fresh, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "wallet-a", fresh.Wallet)
	assert.Empty(t, fresh.Signatures)
}

func TestTradeEventStore_InsertAndGet(t *testing.T) {
	store := NewTradeEventStore()
	ctx := context.Background()

	events := []*domain.TradeStatusEvent{
		{TradeID: "t1", Status: domain.TradeQuoted, TimestampMs: 2000},
		{TradeID: "t1", Status: domain.TradeRequested, TimestampMs: 1000},
		{TradeID: "t2", Status: domain.TradeRequested, TimestampMs: 1500},
	}
	for _, e := range events {
		require.NoError(t, store.Insert(ctx, e))
	}

	got, err := store.GetByTradeID(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.TradeRequested, got[0].Status, "ordered by timestamp ascending")
	assert.Equal(t, domain.TradeQuoted, got[1].Status)

	got, err = store.GetByTradeID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
