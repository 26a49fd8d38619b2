package clickhouse

import (
	"context"
	"fmt"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
// The event log is append-only; MergeTree duplicates are acceptable for
// analytics and deduplicated at query time.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert appends a status transition event.
func (s *TradeEventStore) Insert(ctx context.Context, e *domain.TradeStatusEvent) error {
	query := `
		INSERT INTO trade_status_events (trade_id, status, detail, timestamp_ms)
		VALUES (?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query, e.TradeID, string(e.Status), e.Detail, e.TimestampMs)
	if err != nil {
		return fmt.Errorf("insert trade status event: %w", err)
	}
	return nil
}

// GetByTradeID retrieves all events for a trade, ordered by timestamp ASC.
func (s *TradeEventStore) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.TradeStatusEvent, error) {
	query := `
		SELECT trade_id, status, detail, timestamp_ms
		FROM trade_status_events
		WHERE trade_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("get trade status events: %w", err)
	}
	defer rows.Close()

	var events []*domain.TradeStatusEvent
	for rows.Next() {
		var e domain.TradeStatusEvent
		var status string
		if err := rows.Scan(&e.TradeID, &status, &e.Detail, &e.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan trade status event row: %w", err)
		}
		e.Status = domain.TradeStatus(status)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade status event rows: %w", err)
	}

	return events, nil
}
