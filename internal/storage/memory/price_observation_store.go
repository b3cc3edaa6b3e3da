package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/storage"
)

// PriceObservationStore is an in-memory implementation of
// storage.PriceObservationStore.
type PriceObservationStore struct {
	mu   sync.RWMutex
	data []*domain.PriceObservation
}

// NewPriceObservationStore creates a new in-memory observation store.
func NewPriceObservationStore() *PriceObservationStore {
	return &PriceObservationStore{}
}

// Compile-time interface check.
var _ storage.PriceObservationStore = (*PriceObservationStore)(nil)

// InsertBulk adds multiple observations.
func (s *PriceObservationStore) InsertBulk(_ context.Context, points []*domain.PriceObservation) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p == nil || p.PositionID == "" {
			return storage.ErrInvalidInput
		}
		cp := *p
		s.data = append(s.data, &cp)
	}

	return nil
}

// GetByPositionID retrieves all observations for a position, ordered by
// observed_at ASC.
func (s *PriceObservationStore) GetByPositionID(_ context.Context, positionID string) ([]*domain.PriceObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceObservation
	for _, p := range s.data {
		if p.PositionID == positionID {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt < result[j].ObservedAt
	})

	return result, nil
}
