package memory

import (
	"context"
	"sort"
	"sync"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore in memory.
type TradeEventStore struct {
	mu     sync.RWMutex
	events []*domain.TradeStatusEvent
}

// NewTradeEventStore creates a new in-memory TradeEventStore.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert appends a status transition event.
func (s *TradeEventStore) Insert(_ context.Context, e *domain.TradeStatusEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	s.events = append(s.events, &c)
	return nil
}

// GetByTradeID retrieves all events for a trade, ordered by timestamp ASC.
func (s *TradeEventStore) GetByTradeID(_ context.Context, tradeID string) ([]*domain.TradeStatusEvent, error) {
	s.mu.RLock()
	var out []*domain.TradeStatusEvent
	for _, e := range s.events {
		if e.TradeID == tradeID {
			c := *e
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].TimestampMs < out[j].TimestampMs
	})
	return out, nil
}
