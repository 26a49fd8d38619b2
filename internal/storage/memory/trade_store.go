// Package memory provides in-memory storage implementations for tests and
// the --use-memory mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/storage"
)

// TradeStore implements storage.TradeStore in memory.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string]*domain.Trade
}

// NewTradeStore creates a new in-memory TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{trades: make(map[string]*domain.Trade)}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Create adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Create(_ context.Context, t *domain.Trade) error {
	if t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trades[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	s.trades[t.TradeID] = cloneTrade(t)
	return nil
}

// UpdateStatus advances a trade's status and sets the given fields.
func (s *TradeStore) UpdateStatus(_ context.Context, tradeID string, status domain.TradeStatus, update *storage.TradeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.trades[tradeID]
	if !exists {
		return storage.ErrNotFound
	}

	if !t.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, t.Status, status)
	}

	t.Status = status
	if update != nil {
		if update.FeeMint != nil {
			t.FeeMint = update.FeeMint
		}
		if update.FeeAccount != nil {
			t.FeeAccount = update.FeeAccount
		}
		if update.OutAmount != nil {
			t.OutAmount = update.OutAmount
		}
		if update.Signatures != nil {
			t.Signatures = append([]string(nil), update.Signatures...)
		}
		if update.FailureReason != nil {
			t.FailureReason = update.FailureReason
		}
	}
	t.UpdatedAt = time.Now().UnixMilli()

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.trades[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneTrade(t), nil
}

// ListByWallet retrieves trades for a wallet, newest first.
func (s *TradeStore) ListByWallet(_ context.Context, wallet string, limit, offset int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	var matched []*domain.Trade
	for _, t := range s.trades {
		if t.Wallet == wallet {
			matched = append(matched, cloneTrade(t))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].TradeID > matched[j].TradeID
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// cloneTrade deep-copies a trade so callers cannot mutate store state.
func cloneTrade(t *domain.Trade) *domain.Trade {
	c := *t
	c.Signatures = append([]string(nil), t.Signatures...)
	if t.FeeMint != nil {
		v := *t.FeeMint
		c.FeeMint = &v
	}
	if t.FeeAccount != nil {
		v := *t.FeeAccount
		c.FeeAccount = &v
	}
	if t.OutAmount != nil {
		v := *t.OutAmount
		c.OutAmount = &v
	}
	if t.FailureReason != nil {
		v := *t.FailureReason
		c.FailureReason = &v
	}
	return &c
}
