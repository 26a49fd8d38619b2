package storage

import (
	"context"

	"solana-swap-service/internal/domain"
)

// TradeUpdate carries the optional fields set alongside a status change.
// Nil fields are left untouched.
type TradeUpdate struct {
	FeeMint       *string
	FeeAccount    *string
	OutAmount     *uint64
	Signatures    []string
	FailureReason *string
}

// TradeStore provides access to trade_records storage. The settlement
// pipeline owns every mutation; stores never advance a trade on their own.
type TradeStore interface {
	// Create adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Create(ctx context.Context, t *domain.Trade) error

	// UpdateStatus advances a trade's status and sets the given fields.
	// Returns ErrNotFound if the trade does not exist and
	// ErrInvalidTransition if the move is backwards or out of a terminal
	// state.
	UpdateStatus(ctx context.Context, tradeID string, status domain.TradeStatus, update *TradeUpdate) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// ListByWallet retrieves trades for a wallet, newest first.
	ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]*domain.Trade, error)
}

// TradeEventStore provides access to the append-only trade_status_events
// analytics log.
type TradeEventStore interface {
	// Insert appends a status transition event.
	Insert(ctx context.Context, e *domain.TradeStatusEvent) error

	// GetByTradeID retrieves all events for a trade, ordered by timestamp ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.TradeStatusEvent, error)
}
