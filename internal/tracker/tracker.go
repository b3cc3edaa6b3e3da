// Package tracker supervises the position lifecycle. Each tick it
// expires stale OPENING positions, samples prices for OPEN ones, records
// the observations, and closes positions that hit the take-profit
// multiple. The tracker is the exclusive mutator of positions after the
// orchestrator creates them.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/executor"
	"solana-trading-engine/internal/observability"
	"solana-trading-engine/internal/storage"
)

// PriceSource supplies the current USD price for a token pair.
type PriceSource interface {
	CurrentPrice(ctx context.Context, mint, pair string) (float64, error)
}

// Config holds the tracking policy.
type Config struct {
	TakeProfitMultiple float64       // close when price/entry reaches this
	OpeningGrace       time.Duration // OPENING older than this goes FAILED
}

// DefaultConfig returns the operator defaults: 3x take-profit, five
// minutes of grace for unconfirmed buys.
func DefaultConfig() Config {
	return Config{
		TakeProfitMultiple: 3.0,
		OpeningGrace:       5 * time.Minute,
	}
}

// Tracker runs position supervision ticks. At most one tick executes at
// a time; the scheduler and manual triggers serialize, so a position's
// sell is never in flight in two ticks at once.
type Tracker struct {
	mu           sync.Mutex
	positions    storage.PositionStore
	observations storage.PriceObservationStore
	prices       PriceSource
	exec         executor.Executor
	cfg          Config
	logger       zerolog.Logger
	now          func() time.Time
	tickID       int64
}

// New creates a tracker.
func New(
	positions storage.PositionStore,
	observations storage.PriceObservationStore,
	prices PriceSource,
	exec executor.Executor,
	cfg Config,
	logger zerolog.Logger,
) *Tracker {
	return &Tracker{
		positions:    positions,
		observations: observations,
		prices:       prices,
		exec:         exec,
		cfg:          cfg,
		logger:       logger.With().Str("component", "tracker").Logger(),
		now:          time.Now,
	}
}

// Tick runs one supervision pass. Per-position failures are isolated:
// one broken position never blocks the rest of the book. The returned
// error is non-nil only when the position book itself cannot be read.
func (t *Tracker) Tick(ctx context.Context) (*domain.TickReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tickID++
	report := &domain.TickReport{
		TickID:    t.tickID,
		StartedAt: t.now().UnixMilli(),
	}

	opening, err := t.positions.GetByState(ctx, domain.PositionOpening)
	if err != nil {
		return nil, fmt.Errorf("load opening positions: %w", err)
	}
	for _, p := range opening {
		report.Items = append(report.Items, t.expireIfStale(ctx, p))
	}

	open, err := t.positions.GetByState(ctx, domain.PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}
	// Sells left in CLOSING by a crashed tick are retried here.
	closing, err := t.positions.GetByState(ctx, domain.PositionClosing)
	if err != nil {
		return nil, fmt.Errorf("load closing positions: %w", err)
	}
	report.Open = len(open) + len(closing)

	var samples []*domain.PriceObservation
	for _, p := range append(open, closing...) {
		item, obs := t.track(ctx, p)
		report.Items = append(report.Items, item)
		if obs != nil {
			samples = append(samples, obs)
		}
		if item.Outcome == domain.TickClosed {
			report.Closed++
		}
	}

	if len(samples) > 0 {
		if err := t.observations.InsertBulk(ctx, samples); err != nil {
			// Analytics only; the position book is already consistent.
			t.logger.Warn().Err(err).Int("samples", len(samples)).Msg("recording observations failed")
		}
	}

	report.FinishedAt = t.now().UnixMilli()
	t.logger.Info().Int64("tick", report.TickID).Int("open", report.Open).
		Int("closed", report.Closed).Msg("tick finished")
	return report, nil
}

// expireIfStale fails an OPENING position whose buy never confirmed
// within the grace period.
func (t *Tracker) expireIfStale(ctx context.Context, p *domain.Position) domain.TickItem {
	item := domain.TickItem{PositionID: p.PositionID, Mint: p.Mint, Outcome: domain.TickHeld}

	age := t.now().UnixMilli() - p.CreatedAt
	if age < t.cfg.OpeningGrace.Milliseconds() {
		return item
	}

	if err := p.Transition(domain.PositionFailed); err != nil {
		item.Outcome = domain.TickError
		item.Error = err.Error()
		return item
	}
	p.ClosedAt = t.now().UnixMilli()
	if err := t.positions.Update(ctx, p); err != nil {
		item.Outcome = domain.TickError
		item.Error = err.Error()
		return item
	}

	item.Outcome = domain.TickExpired
	t.logger.Warn().Str("position", p.PositionID).Str("mint", p.Mint).
		Msg("opening position expired")
	return item
}

// track samples one position's price and closes it when the take-profit
// multiple is reached.
func (t *Tracker) track(ctx context.Context, p *domain.Position) (domain.TickItem, *domain.PriceObservation) {
	item := domain.TickItem{PositionID: p.PositionID, Mint: p.Mint}

	price, err := t.prices.CurrentPrice(ctx, p.Mint, p.Pair)
	if err != nil || price <= 0 {
		observability.RecordPriceFailure()
		item.Outcome = domain.TickNoPrice
		if err != nil {
			item.Error = err.Error()
		}
		return item, nil
	}

	multiple := p.Multiple(price)
	item.PriceUsd = price
	item.Multiple = multiple

	obs := &domain.PriceObservation{
		PositionID: p.PositionID,
		Mint:       p.Mint,
		PriceUsd:   price,
		Multiple:   multiple,
		ObservedAt: t.now().UnixMilli(),
	}

	if multiple < t.cfg.TakeProfitMultiple && p.State == domain.PositionOpen {
		item.Outcome = domain.TickHeld
		return item, obs
	}

	if err := t.close(ctx, p, price); err != nil {
		item.Outcome = domain.TickSellFailed
		item.Error = err.Error()
		return item, obs
	}

	item.Outcome = domain.TickClosed
	return item, obs
}

// close moves the position through CLOSING and sells the full holding.
// A failed sell returns the position to OPEN for the next tick.
func (t *Tracker) close(ctx context.Context, p *domain.Position, price float64) error {
	if p.State == domain.PositionOpen {
		if err := p.Transition(domain.PositionClosing); err != nil {
			return err
		}
		if err := t.positions.Update(ctx, p); err != nil {
			return fmt.Errorf("persist closing: %w", err)
		}
	}

	trade, err := t.exec.ExecuteSell(ctx, p, price)
	if err != nil {
		return fmt.Errorf("execute sell: %w", err)
	}
	p.SellTradeID = trade.TradeID

	if trade.Status != domain.TradeStatusConfirmed {
		if terr := p.Transition(domain.PositionOpen); terr != nil {
			return terr
		}
		if uerr := t.positions.Update(ctx, p); uerr != nil {
			return fmt.Errorf("persist reopen: %w", uerr)
		}
		return fmt.Errorf("sell failed: %s", trade.ErrorMessage)
	}

	if err := p.Transition(domain.PositionClosed); err != nil {
		return err
	}
	p.ExitPrice = trade.PriceUsd
	p.ProceedsUsd = trade.FilledUsd
	p.ClosedAt = t.now().UnixMilli()
	if err := t.positions.Update(ctx, p); err != nil {
		return fmt.Errorf("persist close: %w", err)
	}

	observability.RecordPositionClosed(p.Multiple(p.ExitPrice))
	t.logger.Info().Str("position", p.PositionID).Str("mint", p.Mint).
		Float64("entry", p.EntryPrice).Float64("exit", p.ExitPrice).
		Float64("proceeds_usd", p.ProceedsUsd).Msg("position closed")
	return nil
}
