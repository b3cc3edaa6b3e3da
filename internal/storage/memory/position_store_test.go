package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/storage"
)

func TestPositionStore_CreateAndGet(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	pos := &domain.Position{
		PositionID: "pos1",
		Mint:       "mint1",
		Pair:       "pair1",
		State:      domain.PositionOpening,
		CreatedAt:  1000,
	}

	if err := store.Create(ctx, pos); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByID(ctx, "pos1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.State != domain.PositionOpening {
		t.Errorf("State mismatch: got %s", got.State)
	}
}

func TestPositionStore_DuplicatePosition(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	first := &domain.Position{PositionID: "pos1", Mint: "mint1", State: domain.PositionOpen, CreatedAt: 1}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	second := &domain.Position{PositionID: "pos2", Mint: "mint1", State: domain.PositionOpening, CreatedAt: 2}
	err := store.Create(ctx, second)
	if !errors.Is(err, storage.ErrDuplicatePosition) {
		t.Errorf("Expected ErrDuplicatePosition, got %v", err)
	}
}

func TestPositionStore_CreateAfterTerminal(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	closed := &domain.Position{PositionID: "pos1", Mint: "mint1", State: domain.PositionClosed, CreatedAt: 1}
	if err := store.Create(ctx, closed); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A terminal position does not block a new one for the same mint.
	reopened := &domain.Position{PositionID: "pos2", Mint: "mint1", State: domain.PositionOpening, CreatedAt: 2}
	if err := store.Create(ctx, reopened); err != nil {
		t.Errorf("Create after terminal should succeed, got %v", err)
	}
}

func TestPositionStore_UpdateTransitions(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	pos := &domain.Position{PositionID: "pos1", Mint: "mint1", State: domain.PositionOpening, CreatedAt: 1}
	if err := store.Create(ctx, pos); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// OPENING -> OPEN is legal.
	pos.State = domain.PositionOpen
	pos.EntryPrice = 1.0
	if err := store.Update(ctx, pos); err != nil {
		t.Fatalf("OPENING->OPEN update failed: %v", err)
	}

	// OPEN -> CLOSED skips CLOSING and must be rejected.
	bad := *pos
	bad.State = domain.PositionClosed
	err := store.Update(ctx, &bad)
	if !errors.Is(err, storage.ErrIllegalTransition) {
		t.Errorf("Expected ErrIllegalTransition, got %v", err)
	}

	// OPEN -> CLOSING -> OPEN (sell retry path) is legal.
	pos.State = domain.PositionClosing
	if err := store.Update(ctx, pos); err != nil {
		t.Fatalf("OPEN->CLOSING update failed: %v", err)
	}
	pos.State = domain.PositionOpen
	if err := store.Update(ctx, pos); err != nil {
		t.Fatalf("CLOSING->OPEN update failed: %v", err)
	}
}

func TestPositionStore_GetNonTerminalByMint(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	_ = store.Create(ctx, &domain.Position{PositionID: "pos1", Mint: "mint1", State: domain.PositionFailed, CreatedAt: 1})
	_ = store.Create(ctx, &domain.Position{PositionID: "pos2", Mint: "mint1", State: domain.PositionOpen, CreatedAt: 2})

	got, err := store.GetNonTerminalByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetNonTerminalByMint failed: %v", err)
	}
	if got.PositionID != "pos2" {
		t.Errorf("Expected pos2, got %s", got.PositionID)
	}

	_, err = store.GetNonTerminalByMint(ctx, "mint2")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPositionStore_ConcurrentCreateSameMint(t *testing.T) {
	store := NewPositionStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	created := make(chan string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p := &domain.Position{
				PositionID: "pos" + string(rune('a'+n)),
				Mint:       "mint1",
				State:      domain.PositionOpening,
				CreatedAt:  int64(n),
			}
			if err := store.Create(ctx, p); err == nil {
				created <- p.PositionID
			}
		}(i)
	}
	wg.Wait()
	close(created)

	count := 0
	for range created {
		count++
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 successful create, got %d", count)
	}
}
