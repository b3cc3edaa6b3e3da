package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/storage"
)

// PriceObservationStore implements storage.PriceObservationStore using
// ClickHouse. MergeTree is append-only which matches the observation
// trail exactly; the tracker never rewrites a sample.
type PriceObservationStore struct {
	conn *Conn
}

// NewPriceObservationStore creates a new PriceObservationStore.
func NewPriceObservationStore(conn *Conn) *PriceObservationStore {
	return &PriceObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)

// InsertBulk adds multiple observations in one batch.
func (s *PriceObservationStore) InsertBulk(ctx context.Context, points []*domain.PriceObservation) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_observations (
			position_id, mint, price_usd, multiple, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.PositionID, p.Mint, p.PriceUsd, p.Multiple, uint64(p.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPositionID retrieves all observations for a position, ordered by
// observed_at ASC.
func (s *PriceObservationStore) GetByPositionID(ctx context.Context, positionID string) ([]*domain.PriceObservation, error) {
	query := `
		SELECT position_id, mint, price_usd, multiple, observed_at
		FROM price_observations
		WHERE position_id = ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("query by position id: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// scanObservations scans rows into a slice of PriceObservation.
func scanObservations(rows driver.Rows) ([]*domain.PriceObservation, error) {
	var points []*domain.PriceObservation

	for rows.Next() {
		var p domain.PriceObservation
		var observedAt uint64

		if err := rows.Scan(&p.PositionID, &p.Mint, &p.PriceUsd, &p.Multiple, &observedAt); err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		p.ObservedAt = int64(observedAt)

		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return points, nil
}
