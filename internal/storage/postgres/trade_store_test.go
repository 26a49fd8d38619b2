package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/storage"
)

func createTestTrade(tradeID, wallet string, createdAt int64) *domain.Trade {
	return &domain.Trade{
		TradeID:     tradeID,
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

func TestTradeStore_CreateAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	trade := createTestTrade("trade-001", "wallet-a", 1000)
	require.NoError(t, store.Create(ctx, trade))

	got, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)
	assert.Equal(t, trade.TradeID, got.TradeID)
	assert.Equal(t, trade.Wallet, got.Wallet)
	assert.Equal(t, trade.FromMint, got.FromMint)
	assert.Equal(t, trade.ToMint, got.ToMint)
	assert.Equal(t, trade.Amount, got.Amount)
	assert.Equal(t, trade.SlippageBps, got.SlippageBps)
	assert.Equal(t, domain.SwapModeExactIn, got.SwapMode)
	assert.Equal(t, domain.TradeRequested, got.Status)
	assert.Nil(t, got.FeeMint)
	assert.Nil(t, got.OutAmount)
	assert.Nil(t, got.FailureReason)
	assert.Empty(t, got.Signatures)

	// Duplicate key
	err = store.Create(ctx, createTestTrade("trade-001", "wallet-a", 1001))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Not found
	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_UpdateStatus_FullLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)
	require.NoError(t, store.Create(ctx, createTestTrade("trade-001", "wallet-a", 1000)))

	out := uint64(157_000_000)
	feeMint := "So11111111111111111111111111111111111111112"
	feeAccount := "FeeAccount1111111111111111111111111111111111"
	require.NoError(t, store.UpdateStatus(ctx, "trade-001", domain.TradeQuoted, &storage.TradeUpdate{
		OutAmount:  &out,
		FeeMint:    &feeMint,
		FeeAccount: &feeAccount,
	}))
	require.NoError(t, store.UpdateStatus(ctx, "trade-001", domain.TradeSubmitting, nil))
	require.NoError(t, store.UpdateStatus(ctx, "trade-001", domain.TradeAwaitingConfirmation, &storage.TradeUpdate{
		Signatures: []string{"sig-setup", "sig-swap"},
	}))
	require.NoError(t, store.UpdateStatus(ctx, "trade-001", domain.TradeConfirmed, nil))

	got, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeConfirmed, got.Status)
	require.NotNil(t, got.OutAmount)
	assert.Equal(t, out, *got.OutAmount)
	require.NotNil(t, got.FeeMint)
	assert.Equal(t, feeMint, *got.FeeMint)
	require.NotNil(t, got.FeeAccount)
	assert.Equal(t, feeAccount, *got.FeeAccount)
	assert.Equal(t, []string{"sig-setup", "sig-swap"}, got.Signatures)
	assert.Greater(t, got.UpdatedAt, got.CreatedAt)
}

func TestTradeStore_UpdateStatus_RejectsIllegalTransitions(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)
	require.NoError(t, store.Create(ctx, createTestTrade("trade-001", "wallet-a", 1000)))

	// Skipping a state
	err := store.UpdateStatus(ctx, "trade-001", domain.TradeSubmitting, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	// Failed from any non-terminal state
	reason := "simulation failed"
	require.NoError(t, store.UpdateStatus(ctx, "trade-001", domain.TradeFailed, &storage.TradeUpdate{
		FailureReason: &reason,
	}))

	got, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)
	assert.Equal(t, domain.TradeFailed, got.Status)
	require.NotNil(t, got.FailureReason)
	assert.Equal(t, reason, *got.FailureReason)

	// Terminal states never move again
	err = store.UpdateStatus(ctx, "trade-001", domain.TradeConfirmed, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	// Unknown trade
	err = store.UpdateStatus(ctx, "missing", domain.TradeQuoted, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_ListByWallet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeStore(pool)

	require.NoError(t, store.Create(ctx, createTestTrade("trade-001", "wallet-a", 1000)))
	require.NoError(t, store.Create(ctx, createTestTrade("trade-002", "wallet-a", 3000)))
	require.NoError(t, store.Create(ctx, createTestTrade("trade-003", "wallet-b", 2000)))
	require.NoError(t, store.Create(ctx, createTestTrade("trade-004", "wallet-a", 2000)))

	trades, err := store.ListByWallet(ctx, "wallet-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "trade-002", trades[0].TradeID, "newest first")
	assert.Equal(t, "trade-004", trades[1].TradeID)
	assert.Equal(t, "trade-001", trades[2].TradeID)

	// Pagination
	trades, err = store.ListByWallet(ctx, "wallet-a", 1, 1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "trade-004", trades[0].TradeID)

	// Unknown wallet
	trades, err = store.ListByWallet(ctx, "wallet-z", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}
