package storage

import (
	"context"

	"solana-trading-engine/internal/domain"
)

// TradeStore provides access to trade records. Rows are an append-only
// audit trail: inserts plus status updates by the executor, no deletes.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// Update overwrites a trade's mutable fields (status, fill, signature,
	// attempts). Returns ErrNotFound if trade_id does not exist.
	Update(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.Trade, error)

	// GetByMint retrieves all trades for a mint, ordered by created_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Trade, error)

	// GetByStatus retrieves all trades with the given status.
	GetByStatus(ctx context.Context, status domain.TradeStatus) ([]*domain.Trade, error)
}

// PositionStore provides access to positions. Positions are created once,
// mutated only through legal state transitions, and never deleted.
type PositionStore interface {
	// Create adds a new position. Returns ErrDuplicatePosition if a
	// non-terminal position already exists for the mint, ErrDuplicateKey
	// if position_id exists. The uniqueness check and the insert are atomic.
	Create(ctx context.Context, p *domain.Position) error

	// Update overwrites a position's mutable fields. The stored state must
	// admit the new state per the position state machine, otherwise
	// ErrIllegalTransition is returned. Returns ErrNotFound if not exists.
	Update(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetByState retrieves all positions in the given state, ordered by
	// created_at ASC.
	GetByState(ctx context.Context, state domain.PositionState) ([]*domain.Position, error)

	// GetNonTerminalByMint retrieves the open/opening/closing position for
	// a mint, if any. Returns ErrNotFound when none exists.
	GetNonTerminalByMint(ctx context.Context, mint string) (*domain.Position, error)

	// GetAll retrieves every position, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*domain.Position, error)
}

// PriceObservationStore records per-tick price observations for
// post-trade analysis. Append-only.
type PriceObservationStore interface {
	// InsertBulk adds multiple observations. Duplicates are not expected;
	// implementations may reject or ignore them.
	InsertBulk(ctx context.Context, points []*domain.PriceObservation) error

	// GetByPositionID retrieves all observations for a position, ordered
	// by observed_at ASC.
	GetByPositionID(ctx context.Context, positionID string) ([]*domain.PriceObservation, error)
}
