// Package engine orchestrates one trading cycle: discover candidates,
// size the bets, reserve budget, execute buys, and open positions. Each
// candidate is processed independently; one failure never aborts the
// cycle.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-trading-engine/internal/budget"
	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/evaluator"
	"solana-trading-engine/internal/executor"
	"solana-trading-engine/internal/idhash"
	"solana-trading-engine/internal/storage"
)

// CandidateSource produces the candidate batch for one cycle.
type CandidateSource interface {
	Discover(ctx context.Context) ([]*domain.TokenCandidate, error)
}

// Engine runs trading cycles. At most one cycle executes at a time;
// overlapping RunCycle calls serialize.
type Engine struct {
	mu        sync.Mutex
	source    CandidateSource
	eval      *evaluator.Evaluator
	ledger    *budget.Ledger
	exec      executor.Executor
	positions storage.PositionStore
	logger    zerolog.Logger
	now       func() time.Time
}

// New creates an engine.
func New(
	source CandidateSource,
	eval *evaluator.Evaluator,
	ledger *budget.Ledger,
	exec executor.Executor,
	positions storage.PositionStore,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		source:    source,
		eval:      eval,
		ledger:    ledger,
		exec:      exec,
		positions: positions,
		logger:    logger.With().Str("component", "engine").Logger(),
		now:       time.Now,
	}
}

// RunCycle executes one full trading cycle and reports the outcome per
// candidate. The returned error is non-nil only when discovery itself
// fails; per-candidate failures land in the report.
func (e *Engine) RunCycle(ctx context.Context) (*domain.CycleReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := &domain.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: e.now().UnixMilli(),
	}
	logger := e.logger.With().Str("cycle", report.CycleID).Logger()

	candidates, err := e.source.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover candidates: %w", err)
	}
	report.Candidates = len(candidates)

	for _, c := range candidates {
		item := e.processCandidate(ctx, c)
		report.Items = append(report.Items, item)
		switch item.Outcome {
		case domain.OutcomeBought:
			report.Bought++
		case domain.OutcomeBuyFailed, domain.OutcomeError:
			report.Failed++
		default:
			report.Skipped++
		}
	}

	report.FinishedAt = e.now().UnixMilli()
	logger.Info().Int("candidates", report.Candidates).Int("bought", report.Bought).
		Int("skipped", report.Skipped).Int("failed", report.Failed).
		Float64("committed_today_usd", e.ledger.CommittedToday()).
		Msg("cycle finished")
	return report, nil
}

// processCandidate takes one candidate through evaluation, budget
// reservation, buy execution, and position opening.
func (e *Engine) processCandidate(ctx context.Context, c *domain.TokenCandidate) domain.CycleItem {
	item := domain.CycleItem{Mint: c.Mint, Symbol: c.Symbol}

	// Fast-path dedupe. The store's Create enforces the invariant
	// atomically; this check just avoids wasted quotes.
	if existing, err := e.positions.GetNonTerminalByMint(ctx, c.Mint); err == nil && existing != nil {
		item.Outcome = domain.OutcomeDuplicate
		item.PositionID = existing.PositionID
		return item
	}

	decision := e.eval.Evaluate(c)
	item.ReasonCode = decision.ReasonCode
	if !decision.Buy() {
		item.Outcome = domain.OutcomeSkipped
		return item
	}
	item.AmountUsd = decision.AmountUsd

	reservation, err := e.ledger.Reserve(decision.AmountUsd)
	if err != nil {
		if errors.Is(err, budget.ErrDailyCapExceeded) {
			item.Outcome = domain.OutcomeBudgetExceeded
			return item
		}
		item.Outcome = domain.OutcomeError
		item.Error = err.Error()
		return item
	}

	createdAt := e.now().UnixMilli()
	position := &domain.Position{
		PositionID: idhash.ComputePositionID(c.Mint, c.Pair, createdAt),
		Mint:       c.Mint,
		Pair:       c.Pair,
		Symbol:     c.Symbol,
		State:      domain.PositionOpening,
		CreatedAt:  createdAt,
	}
	if err := e.positions.Create(ctx, position); err != nil {
		e.mustRelease(reservation)
		if errors.Is(err, storage.ErrDuplicatePosition) {
			item.Outcome = domain.OutcomeDuplicate
			return item
		}
		item.Outcome = domain.OutcomeError
		item.Error = err.Error()
		return item
	}
	item.PositionID = position.PositionID

	trade, err := e.exec.ExecuteBuy(ctx, c, decision.AmountUsd)
	if err != nil {
		e.mustRelease(reservation)
		e.failPosition(ctx, position)
		item.Outcome = domain.OutcomeError
		item.Error = err.Error()
		return item
	}
	item.TradeID = trade.TradeID
	position.BuyTradeID = trade.TradeID

	if trade.Status != domain.TradeStatusConfirmed {
		e.mustRelease(reservation)
		e.failPosition(ctx, position)
		item.Outcome = domain.OutcomeBuyFailed
		item.Error = trade.ErrorMessage
		return item
	}

	if err := e.ledger.Commit(reservation); err != nil {
		// Settling twice means a bug, not a candidate problem.
		e.logger.Error().Err(err).Str("mint", c.Mint).Msg("commit reservation failed")
	}

	if err := position.Transition(domain.PositionOpen); err != nil {
		item.Outcome = domain.OutcomeError
		item.Error = err.Error()
		return item
	}
	position.EntryPrice = trade.PriceUsd
	position.EntryUsd = trade.FilledUsd
	position.TokenAmount = trade.TokenAmount
	if err := e.positions.Update(ctx, position); err != nil {
		item.Outcome = domain.OutcomeError
		item.Error = err.Error()
		return item
	}

	item.Outcome = domain.OutcomeBought
	e.logger.Info().Str("mint", c.Mint).Str("tier", decision.ReasonCode).
		Float64("amount_usd", decision.AmountUsd).Str("position", position.PositionID).
		Msg("position opened")
	return item
}

// failPosition marks an OPENING position FAILED after a buy that never
// confirmed.
func (e *Engine) failPosition(ctx context.Context, p *domain.Position) {
	if err := p.Transition(domain.PositionFailed); err != nil {
		e.logger.Error().Err(err).Str("position", p.PositionID).Msg("fail transition rejected")
		return
	}
	p.ClosedAt = e.now().UnixMilli()
	if err := e.positions.Update(ctx, p); err != nil {
		e.logger.Error().Err(err).Str("position", p.PositionID).Msg("persist failed position")
	}
}

// mustRelease returns a reservation to the budget, logging settlement
// bugs instead of propagating them.
func (e *Engine) mustRelease(r *budget.Reservation) {
	if err := e.ledger.Release(r); err != nil {
		e.logger.Error().Err(err).Msg("release reservation failed")
	}
}
