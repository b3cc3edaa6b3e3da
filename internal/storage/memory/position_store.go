package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
// The uniqueness check in Create and the insert happen under one lock,
// so overlapping cycles cannot create two live positions for a mint.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Create adds a new position. Returns ErrDuplicatePosition if a
// non-terminal position already exists for the mint.
func (s *PositionStore) Create(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, existing := range s.data {
		if existing.Mint == p.Mint && !existing.State.Terminal() {
			return storage.ErrDuplicatePosition
		}
	}

	cp := *p
	s.data[p.PositionID] = &cp
	return nil
}

// Update overwrites a position's mutable fields after validating the
// state transition against the stored state.
func (s *PositionStore) Update(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.data[p.PositionID]
	if !exists {
		return storage.ErrNotFound
	}

	if stored.State != p.State && !stored.State.CanTransition(p.State) {
		return storage.ErrIllegalTransition
	}

	cp := *p
	s.data[p.PositionID] = &cp
	return nil
}

// GetByID retrieves a position by its ID. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *p
	return &cp, nil
}

// GetByState retrieves all positions in the given state, ordered by created_at ASC.
func (s *PositionStore) GetByState(_ context.Context, state domain.PositionState) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.State == state {
			cp := *p
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}

// GetNonTerminalByMint retrieves the live position for a mint, if any.
func (s *PositionStore) GetNonTerminalByMint(_ context.Context, mint string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.data {
		if p.Mint == mint && !p.State.Terminal() {
			cp := *p
			return &cp, nil
		}
	}

	return nil, storage.ErrNotFound
}

// GetAll retrieves every position, ordered by created_at ASC.
func (s *PositionStore) GetAll(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		cp := *p
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt < result[j].CreatedAt
	})

	return result, nil
}
