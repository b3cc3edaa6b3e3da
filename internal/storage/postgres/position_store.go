package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/storage"
)

// liveMintConstraint is the partial unique index enforcing one
// non-terminal position per mint.
const liveMintConstraint = "positions_live_mint_idx"

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	position_id, mint, pair, symbol, state, entry_price, entry_usd,
	token_amount, exit_price, proceeds_usd, buy_trade_id, sell_trade_id,
	created_at, closed_at
`

// Create adds a new position. The partial unique index on live mints
// makes the duplicate check and the insert one atomic statement.
func (s *PositionStore) Create(ctx context.Context, p *domain.Position) error {
	query := `
		INSERT INTO positions (` + positionColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID, p.Mint, p.Pair, p.Symbol, p.State, p.EntryPrice, p.EntryUsd,
		p.TokenAmount, p.ExitPrice, p.ProceedsUsd, p.BuyTradeID, p.SellTradeID,
		p.CreatedAt, p.ClosedAt,
	)
	if err != nil {
		switch name := duplicateConstraint(err); {
		case name == liveMintConstraint:
			return storage.ErrDuplicatePosition
		case name != "":
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// Update overwrites a position's mutable fields. The stored state is
// read under lock and must admit the new state.
func (s *PositionStore) Update(ctx context.Context, p *domain.Position) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored domain.PositionState
	err = tx.QueryRow(ctx,
		`SELECT state FROM positions WHERE position_id = $1 FOR UPDATE`,
		p.PositionID,
	).Scan(&stored)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock position: %w", err)
	}

	if stored != p.State && !stored.CanTransition(p.State) {
		return storage.ErrIllegalTransition
	}

	_, err = tx.Exec(ctx, `
		UPDATE positions
		SET state = $2, entry_price = $3, entry_usd = $4, token_amount = $5,
			exit_price = $6, proceeds_usd = $7, buy_trade_id = $8,
			sell_trade_id = $9, closed_at = $10
		WHERE position_id = $1
	`,
		p.PositionID, p.State, p.EntryPrice, p.EntryUsd, p.TokenAmount,
		p.ExitPrice, p.ProceedsUsd, p.BuyTradeID,
		p.SellTradeID, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE position_id = $1`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetByState retrieves all positions in the given state, ordered by
// created_at ASC.
func (s *PositionStore) GetByState(ctx context.Context, state domain.PositionState) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE state = $1
		ORDER BY created_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, state)
	if err != nil {
		return nil, fmt.Errorf("get positions by state: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// GetNonTerminalByMint retrieves the live position for a mint, if any.
func (s *PositionStore) GetNonTerminalByMint(ctx context.Context, mint string) (*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE mint = $1 AND state NOT IN ('CLOSED', 'FAILED')
	`

	row := s.pool.QueryRow(ctx, query, mint)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get live position by mint: %w", err)
	}
	return p, nil
}

// GetAll retrieves every position, ordered by created_at ASC.
func (s *PositionStore) GetAll(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY created_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// scanPosition scans a single row into a Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position

	err := row.Scan(
		&p.PositionID, &p.Mint, &p.Pair, &p.Symbol, &p.State, &p.EntryPrice, &p.EntryUsd,
		&p.TokenAmount, &p.ExitPrice, &p.ProceedsUsd, &p.BuyTradeID, &p.SellTradeID,
		&p.CreatedAt, &p.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// scanPositions scans multiple rows into a slice of Position.
func scanPositions(rows pgx.Rows) ([]*domain.Position, error) {
	var positions []*domain.Position

	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}

	return positions, nil
}
