package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/executor"
	"solana-trading-engine/internal/storage/memory"
)

// fakePrices maps mint to a fixed price.
type fakePrices struct {
	prices map[string]float64
	err    error
}

func (f *fakePrices) CurrentPrice(_ context.Context, mint, _ string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.prices[mint], nil
}

// failingExecutor returns a FAILED trade for every sell.
type failingExecutor struct{}

func (failingExecutor) ExecuteBuy(_ context.Context, _ *domain.TokenCandidate, _ float64) (*domain.Trade, error) {
	return nil, errors.New("not used")
}

func (failingExecutor) ExecuteSell(_ context.Context, p *domain.Position, _ float64) (*domain.Trade, error) {
	return &domain.Trade{
		TradeID:      "failed-sell",
		Mint:         p.Mint,
		Direction:    domain.DirectionSell,
		Status:       domain.TradeStatusFailed,
		ErrorMessage: "no route",
	}, nil
}

// slowSellExecutor confirms sells after a delay and counts them per
// position.
type slowSellExecutor struct {
	mu    sync.Mutex
	delay time.Duration
	sells map[string]int
}

func (s *slowSellExecutor) ExecuteBuy(_ context.Context, _ *domain.TokenCandidate, _ float64) (*domain.Trade, error) {
	return nil, errors.New("not used")
}

func (s *slowSellExecutor) ExecuteSell(_ context.Context, p *domain.Position, priceUsd float64) (*domain.Trade, error) {
	s.mu.Lock()
	s.sells[p.PositionID]++
	s.mu.Unlock()
	time.Sleep(s.delay)
	return &domain.Trade{
		TradeID:   "sell-" + p.PositionID,
		Mint:      p.Mint,
		Direction: domain.DirectionSell,
		Status:    domain.TradeStatusConfirmed,
		PriceUsd:  priceUsd,
		FilledUsd: priceUsd * float64(p.TokenAmount) / 1e9,
	}, nil
}

type fixture struct {
	tracker      *Tracker
	positions    *memory.PositionStore
	observations *memory.PriceObservationStore
	prices       *fakePrices
}

func newFixture(t *testing.T, exec executor.Executor) *fixture {
	t.Helper()
	positions := memory.NewPositionStore()
	observations := memory.NewPriceObservationStore()
	prices := &fakePrices{prices: make(map[string]float64)}

	if exec == nil {
		exec = executor.NewSimulated(memory.NewTradeStore(), zerolog.Nop())
	}

	return &fixture{
		tracker:      New(positions, observations, prices, exec, DefaultConfig(), zerolog.Nop()),
		positions:    positions,
		observations: observations,
		prices:       prices,
	}
}

func openPosition(t *testing.T, f *fixture, mint string, entryPrice float64) *domain.Position {
	t.Helper()
	p := &domain.Position{
		PositionID:  "pos-" + mint,
		Mint:        mint,
		Pair:        "pair-" + mint,
		State:       domain.PositionOpen,
		EntryPrice:  entryPrice,
		EntryUsd:    5,
		TokenAmount: int64(5 / entryPrice * 1e9),
		CreatedAt:   time.Now().UnixMilli(),
	}
	if err := f.positions.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestTickHoldsBelowTakeProfit(t *testing.T) {
	f := newFixture(t, nil)
	p := openPosition(t, f, "mint1", 0.5)
	f.prices.prices["mint1"] = 1.0 // 2x, below 3x

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if report.Closed != 0 {
		t.Errorf("closed = %d, want 0", report.Closed)
	}
	if len(report.Items) != 1 || report.Items[0].Outcome != domain.TickHeld {
		t.Fatalf("items = %+v, want one HELD", report.Items)
	}
	if report.Items[0].Multiple != 2.0 {
		t.Errorf("multiple = %f, want 2", report.Items[0].Multiple)
	}

	stored, _ := f.positions.GetByID(context.Background(), p.PositionID)
	if stored.State != domain.PositionOpen {
		t.Errorf("state = %s, want OPEN", stored.State)
	}

	obs, err := f.observations.GetByPositionID(context.Background(), p.PositionID)
	if err != nil {
		t.Fatalf("GetByPositionID: %v", err)
	}
	if len(obs) != 1 || obs[0].PriceUsd != 1.0 {
		t.Errorf("observations = %+v, want one sample at 1.0", obs)
	}
}

func TestTickClosesAtTakeProfit(t *testing.T) {
	f := newFixture(t, nil)
	p := openPosition(t, f, "mint1", 0.5)
	f.prices.prices["mint1"] = 1.5 // exactly 3x

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if report.Closed != 1 {
		t.Fatalf("closed = %d, want 1", report.Closed)
	}
	if report.Items[0].Outcome != domain.TickClosed {
		t.Fatalf("outcome = %s, want CLOSED", report.Items[0].Outcome)
	}

	stored, _ := f.positions.GetByID(context.Background(), p.PositionID)
	if stored.State != domain.PositionClosed {
		t.Fatalf("state = %s, want CLOSED", stored.State)
	}
	if stored.ExitPrice != 1.5 {
		t.Errorf("exit price = %f, want 1.5", stored.ExitPrice)
	}
	if stored.ProceedsUsd < 14.9 || stored.ProceedsUsd > 15.1 {
		t.Errorf("proceeds = %f, want about 15", stored.ProceedsUsd)
	}
	if stored.SellTradeID == "" {
		t.Error("sell trade id not recorded")
	}
	if stored.ClosedAt == 0 {
		t.Error("closed at not set")
	}
}

func TestTickSerializesOverlappingInvocations(t *testing.T) {
	exec := &slowSellExecutor{delay: 100 * time.Millisecond, sells: map[string]int{}}
	f := newFixture(t, exec)
	p := openPosition(t, f, "mint1", 0.5)
	f.prices.prices["mint1"] = 1.5 // 3x, sell triggers

	// Second tick starts while the first tick's sell is still in flight.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.tracker.Tick(context.Background()); err != nil {
				t.Errorf("Tick: %v", err)
			}
		}()
		time.Sleep(20 * time.Millisecond)
	}
	wg.Wait()

	if got := exec.sells[p.PositionID]; got != 1 {
		t.Fatalf("sell attempts = %d, want 1", got)
	}
	stored, _ := f.positions.GetByID(context.Background(), p.PositionID)
	if stored.State != domain.PositionClosed {
		t.Fatalf("state = %s, want CLOSED", stored.State)
	}
}

func TestTickFailedSellReturnsToOpen(t *testing.T) {
	f := newFixture(t, failingExecutor{})
	p := openPosition(t, f, "mint1", 0.5)
	f.prices.prices["mint1"] = 2.0 // 4x

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if report.Items[0].Outcome != domain.TickSellFailed {
		t.Fatalf("outcome = %s, want SELL_FAILED", report.Items[0].Outcome)
	}

	stored, _ := f.positions.GetByID(context.Background(), p.PositionID)
	if stored.State != domain.PositionOpen {
		t.Fatalf("state = %s, want OPEN for retry next tick", stored.State)
	}
}

func TestTickRetriesStuckClosing(t *testing.T) {
	f := newFixture(t, nil)
	p := &domain.Position{
		PositionID:  "pos-stuck",
		Mint:        "mint1",
		State:       domain.PositionClosing,
		EntryPrice:  0.5,
		TokenAmount: 10_000_000_000,
		CreatedAt:   time.Now().UnixMilli(),
	}
	if err := f.positions.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Below take-profit now, but the close was already triggered.
	f.prices.prices["mint1"] = 1.0

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if report.Closed != 1 {
		t.Fatalf("closed = %d, want 1", report.Closed)
	}
	stored, _ := f.positions.GetByID(context.Background(), p.PositionID)
	if stored.State != domain.PositionClosed {
		t.Fatalf("state = %s, want CLOSED", stored.State)
	}
}

func TestTickNoPrice(t *testing.T) {
	f := newFixture(t, nil)
	openPosition(t, f, "mint1", 0.5)
	f.prices.err = errors.New("rate limited")

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if report.Items[0].Outcome != domain.TickNoPrice {
		t.Fatalf("outcome = %s, want NO_PRICE", report.Items[0].Outcome)
	}
	obs, _ := f.observations.GetByPositionID(context.Background(), "pos-mint1")
	if len(obs) != 0 {
		t.Errorf("recorded %d observations without a price", len(obs))
	}
}

func TestTickExpiresStaleOpening(t *testing.T) {
	f := newFixture(t, nil)
	stale := &domain.Position{
		PositionID: "pos-stale",
		Mint:       "mint1",
		State:      domain.PositionOpening,
		CreatedAt:  time.Now().Add(-10 * time.Minute).UnixMilli(),
	}
	fresh := &domain.Position{
		PositionID: "pos-fresh",
		Mint:       "mint2",
		State:      domain.PositionOpening,
		CreatedAt:  time.Now().UnixMilli(),
	}
	for _, p := range []*domain.Position{stale, fresh} {
		if err := f.positions.Create(context.Background(), p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	outcomes := map[string]string{}
	for _, item := range report.Items {
		outcomes[item.PositionID] = item.Outcome
	}
	if outcomes["pos-stale"] != domain.TickExpired {
		t.Errorf("stale outcome = %s, want EXPIRED", outcomes["pos-stale"])
	}
	if outcomes["pos-fresh"] != domain.TickHeld {
		t.Errorf("fresh outcome = %s, want HELD", outcomes["pos-fresh"])
	}

	storedStale, _ := f.positions.GetByID(context.Background(), "pos-stale")
	if storedStale.State != domain.PositionFailed {
		t.Errorf("stale state = %s, want FAILED", storedStale.State)
	}
	storedFresh, _ := f.positions.GetByID(context.Background(), "pos-fresh")
	if storedFresh.State != domain.PositionOpening {
		t.Errorf("fresh state = %s, want OPENING", storedFresh.State)
	}
}

func TestTickIsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	openPosition(t, f, "mint1", 0.5)
	openPosition(t, f, "mint2", 0.5)
	f.prices.prices["mint1"] = 0 // no quote for mint1
	f.prices.prices["mint2"] = 1.5

	report, err := f.tracker.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if report.Closed != 1 {
		t.Errorf("closed = %d, want the priced position closed", report.Closed)
	}
	outcomes := map[string]string{}
	for _, item := range report.Items {
		outcomes[item.Mint] = item.Outcome
	}
	if outcomes["mint1"] != domain.TickNoPrice {
		t.Errorf("mint1 outcome = %s, want NO_PRICE", outcomes["mint1"])
	}
	if outcomes["mint2"] != domain.TickClosed {
		t.Errorf("mint2 outcome = %s, want CLOSED", outcomes["mint2"])
	}
}
