package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-swap-service/internal/domain"
	"solana-swap-service/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, wallet, from_mint, to_mint, amount, slippage_bps, swap_mode,
	status, fee_mint, fee_account, out_amount, signatures, failure_reason,
	created_at, updated_at
`

// Create adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Create(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trade_records (
			trade_id, wallet, from_mint, to_mint, amount, slippage_bps, swap_mode,
			status, fee_mint, fee_account, out_amount, signatures, failure_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15
		)
	`

	var outAmount *int64
	if t.OutAmount != nil {
		v := int64(*t.OutAmount)
		outAmount = &v
	}

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Wallet, t.FromMint, t.ToMint, int64(t.Amount), t.SlippageBps, string(t.SwapMode),
		string(t.Status), t.FeeMint, t.FeeAccount, outAmount, t.Signatures, t.FailureReason,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// UpdateStatus advances a trade's status and sets the given fields. The
// current row is locked so the forward-only check and the write are atomic.
func (s *TradeStore) UpdateStatus(ctx context.Context, tradeID string, status domain.TradeStatus, update *storage.TradeUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT status FROM trade_records WHERE trade_id = $1 FOR UPDATE`, tradeID,
	).Scan(&current)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock trade record: %w", err)
	}

	if !domain.TradeStatus(current).CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", storage.ErrInvalidTransition, current, status)
	}

	query := `
		UPDATE trade_records SET
			status = $2,
			fee_mint = COALESCE($3, fee_mint),
			fee_account = COALESCE($4, fee_account),
			out_amount = COALESCE($5, out_amount),
			signatures = COALESCE($6, signatures),
			failure_reason = COALESCE($7, failure_reason),
			updated_at = (extract(epoch from now()) * 1000)::bigint
		WHERE trade_id = $1
	`

	var feeMint, feeAccount, failureReason *string
	var outAmount *int64
	var signatures []string
	if update != nil {
		feeMint = update.FeeMint
		feeAccount = update.FeeAccount
		failureReason = update.FailureReason
		signatures = update.Signatures
		if update.OutAmount != nil {
			v := int64(*update.OutAmount)
			outAmount = &v
		}
	}

	if _, err := tx.Exec(ctx, query, tradeID, string(status), feeMint, feeAccount, outAmount, signatures, failureReason); err != nil {
		return fmt.Errorf("update trade record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_records WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// ListByWallet retrieves trades for a wallet, newest first.
func (s *TradeStore) ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]*domain.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE wallet = $1
		ORDER BY created_at DESC, trade_id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.pool.Query(ctx, query, wallet, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trade records by wallet: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade
	var amount int64
	var outAmount *int64
	var swapMode, status string

	err := row.Scan(
		&t.TradeID, &t.Wallet, &t.FromMint, &t.ToMint, &amount, &t.SlippageBps, &swapMode,
		&status, &t.FeeMint, &t.FeeAccount, &outAmount, &t.Signatures, &t.FailureReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Amount = uint64(amount)
	t.SwapMode = domain.SwapMode(swapMode)
	t.Status = domain.TradeStatus(status)
	if outAmount != nil {
		v := uint64(*outAmount)
		t.OutAmount = &v
	}

	return &t, nil
}
