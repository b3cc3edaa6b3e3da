package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-engine/internal/budget"
	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/evaluator"
	"solana-trading-engine/internal/executor"
	"solana-trading-engine/internal/storage/memory"
)

// fakeSource returns a fixed batch per call.
type fakeSource struct {
	batch []*domain.TokenCandidate
	err   error
}

func (f *fakeSource) Discover(_ context.Context) ([]*domain.TokenCandidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

type fixture struct {
	engine    *Engine
	source    *fakeSource
	ledger    *budget.Ledger
	positions *memory.PositionStore
	trades    *memory.TradeStore
}

func newFixture(t *testing.T, dailyCap float64) *fixture {
	t.Helper()
	source := &fakeSource{}
	ledger := budget.NewLedger(dailyCap)
	positions := memory.NewPositionStore()
	trades := memory.NewTradeStore()
	exec := executor.NewSimulated(trades, zerolog.Nop())

	return &fixture{
		engine:    New(source, evaluator.New(evaluator.DefaultConfig()), ledger, exec, positions, zerolog.Nop()),
		source:    source,
		ledger:    ledger,
		positions: positions,
		trades:    trades,
	}
}

func tierDCandidate(mint string) *domain.TokenCandidate {
	return &domain.TokenCandidate{
		Mint:         mint,
		Pair:         "pair-" + mint,
		Symbol:       "TST",
		PriceUsd:     0.5,
		LiquidityUsd: 50_000,
		Volume24hUsd: 10_000,
		HasProfile:   true,
		HasBooster:   true,
		PairCreated:  time.Now().Add(-1 * time.Hour).UnixMilli(),
	}
}

func TestRunCycleOpensPosition(t *testing.T) {
	f := newFixture(t, 2000)
	f.source.batch = []*domain.TokenCandidate{tierDCandidate("mint1")}

	report, err := f.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Bought != 1 {
		t.Fatalf("bought = %d, want 1", report.Bought)
	}
	item := report.Items[0]
	if item.Outcome != domain.OutcomeBought {
		t.Fatalf("outcome = %s, want BOUGHT", item.Outcome)
	}
	if item.ReasonCode != domain.TierD {
		t.Errorf("reason = %s, want TIER_D", item.ReasonCode)
	}
	if item.AmountUsd != 5 {
		t.Errorf("amount = %f, want 5", item.AmountUsd)
	}

	pos, err := f.positions.GetByID(context.Background(), item.PositionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if pos.State != domain.PositionOpen {
		t.Errorf("state = %s, want OPEN", pos.State)
	}
	if pos.EntryPrice != 0.5 {
		t.Errorf("entry price = %f, want 0.5", pos.EntryPrice)
	}
	if pos.EntryUsd != 5 {
		t.Errorf("entry usd = %f, want 5", pos.EntryUsd)
	}
	if pos.TokenAmount != 10_000_000_000 {
		t.Errorf("token amount = %d, want 10000000000", pos.TokenAmount)
	}
	if pos.BuyTradeID != item.TradeID {
		t.Errorf("buy trade id = %s, want %s", pos.BuyTradeID, item.TradeID)
	}

	if got := f.ledger.CommittedToday(); got != 5 {
		t.Errorf("committed = %f, want 5", got)
	}
	if got := f.ledger.PendingToday(); got != 0 {
		t.Errorf("pending = %f, want 0", got)
	}
}

func TestRunCycleSkipsBelowAdmission(t *testing.T) {
	f := newFixture(t, 2000)
	c := tierDCandidate("mint1")
	c.LiquidityUsd = 100 // below minimum
	f.source.batch = []*domain.TokenCandidate{c}

	report, err := f.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Skipped != 1 || report.Bought != 0 {
		t.Fatalf("skipped = %d bought = %d, want 1/0", report.Skipped, report.Bought)
	}
	if report.Items[0].Outcome != domain.OutcomeSkipped {
		t.Errorf("outcome = %s, want SKIPPED", report.Items[0].Outcome)
	}
	if all, _ := f.positions.GetAll(context.Background()); len(all) != 0 {
		t.Errorf("opened %d positions for a skip", len(all))
	}
}

func TestRunCycleDeduplicatesWithinBatch(t *testing.T) {
	f := newFixture(t, 2000)
	f.source.batch = []*domain.TokenCandidate{
		tierDCandidate("mint1"),
		tierDCandidate("mint1"),
	}

	report, err := f.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Bought != 1 {
		t.Fatalf("bought = %d, want 1", report.Bought)
	}
	if report.Items[1].Outcome != domain.OutcomeDuplicate {
		t.Errorf("second outcome = %s, want DUPLICATE", report.Items[1].Outcome)
	}
	if got := f.ledger.CommittedToday(); got != 5 {
		t.Errorf("committed = %f, want 5 for a single buy", got)
	}
}

func TestRunCycleDeduplicatesAcrossCycles(t *testing.T) {
	f := newFixture(t, 2000)
	f.source.batch = []*domain.TokenCandidate{tierDCandidate("mint1")}

	if _, err := f.engine.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	report, err := f.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if report.Bought != 0 {
		t.Fatalf("bought = %d, want 0 on rerun", report.Bought)
	}
	if report.Items[0].Outcome != domain.OutcomeDuplicate {
		t.Errorf("outcome = %s, want DUPLICATE", report.Items[0].Outcome)
	}
}

func TestRunCycleEnforcesDailyCap(t *testing.T) {
	f := newFixture(t, 12) // fits two TIER_D buys, not three
	f.source.batch = []*domain.TokenCandidate{
		tierDCandidate("mint1"),
		tierDCandidate("mint2"),
		tierDCandidate("mint3"),
	}

	report, err := f.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Bought != 2 {
		t.Fatalf("bought = %d, want 2", report.Bought)
	}
	if report.Items[2].Outcome != domain.OutcomeBudgetExceeded {
		t.Errorf("third outcome = %s, want BUDGET_EXCEEDED", report.Items[2].Outcome)
	}
	if got := f.ledger.CommittedToday(); got != 10 {
		t.Errorf("committed = %f, want 10", got)
	}
}

func TestRunCycleReleasesBudgetOnFailedBuy(t *testing.T) {
	f := newFixture(t, 2000)
	c := tierDCandidate("mint1")
	c.PriceUsd = 0 // simulated executor fails the fill without a price
	f.source.batch = []*domain.TokenCandidate{c}

	report, err := f.engine.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	item := report.Items[0]
	if item.Outcome != domain.OutcomeBuyFailed {
		t.Fatalf("outcome = %s, want BUY_FAILED", item.Outcome)
	}

	if got := f.ledger.CommittedToday(); got != 0 {
		t.Errorf("committed = %f, want 0 after release", got)
	}
	if got := f.ledger.PendingToday(); got != 0 {
		t.Errorf("pending = %f, want 0 after release", got)
	}

	pos, err := f.positions.GetByID(context.Background(), item.PositionID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if pos.State != domain.PositionFailed {
		t.Errorf("state = %s, want FAILED", pos.State)
	}
	// The mint is free for a later cycle.
	if _, err := f.positions.GetNonTerminalByMint(context.Background(), "mint1"); err == nil {
		t.Error("failed position should not block the mint")
	}
}

func TestRunCycleDiscoveryError(t *testing.T) {
	f := newFixture(t, 2000)
	f.source.err = errors.New("listing api down")

	if _, err := f.engine.RunCycle(context.Background()); err == nil {
		t.Fatal("expected discovery error to propagate")
	}
}
