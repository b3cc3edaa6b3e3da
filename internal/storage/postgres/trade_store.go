package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/storage"
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
	trade_id, mint, direction, amount_usd, filled_usd, price_usd,
	token_amount, tx_signature, status, attempts, error_message,
	created_at, confirmed_at
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	query := `
		INSERT INTO trades (` + tradeColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Mint, t.Direction, t.AmountUsd, t.FilledUsd, t.PriceUsd,
		t.TokenAmount, t.TxSignature, t.Status, t.Attempts, t.ErrorMessage,
		t.CreatedAt, t.ConfirmedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Update overwrites a trade's mutable fields. Returns ErrNotFound if
// trade_id does not exist.
func (s *TradeStore) Update(ctx context.Context, t *domain.Trade) error {
	query := `
		UPDATE trades
		SET filled_usd = $2, price_usd = $3, token_amount = $4,
			tx_signature = $5, status = $6, attempts = $7,
			error_message = $8, confirmed_at = $9
		WHERE trade_id = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		t.TradeID, t.FilledUsd, t.PriceUsd, t.TokenAmount,
		t.TxSignature, t.Status, t.Attempts,
		t.ErrorMessage, t.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves all trades for a mint, ordered by created_at ASC.
func (s *TradeStore) GetByMint(ctx context.Context, mint string) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE mint = $1
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get trades by mint: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByStatus retrieves all trades with the given status.
func (s *TradeStore) GetByStatus(ctx context.Context, status domain.TradeStatus) ([]*domain.Trade, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trades
		WHERE status = $1
		ORDER BY created_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("get trades by status: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var t domain.Trade

	err := row.Scan(
		&t.TradeID, &t.Mint, &t.Direction, &t.AmountUsd, &t.FilledUsd, &t.PriceUsd,
		&t.TokenAmount, &t.TxSignature, &t.Status, &t.Attempts, &t.ErrorMessage,
		&t.CreatedAt, &t.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// scanTrades scans multiple rows into a slice of Trade.
func scanTrades(rows pgx.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
