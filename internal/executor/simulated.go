package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/idhash"
	"solana-trading-engine/internal/observability"
	"solana-trading-engine/internal/storage"
)

// Simulated fills every swap at the observed market price without
// touching the chain. Trade records go through the same store so the
// rest of the system cannot tell the modes apart.
type Simulated struct {
	trades storage.TradeStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewSimulated creates a simulated executor.
func NewSimulated(trades storage.TradeStore, logger zerolog.Logger) *Simulated {
	return &Simulated{
		trades: trades,
		logger: logger.With().Str("component", "executor").Str("mode", "simulated").Logger(),
		now:    time.Now,
	}
}

var _ Executor = (*Simulated)(nil)

// ExecuteBuy records a synthetic full fill at the candidate's price.
func (s *Simulated) ExecuteBuy(ctx context.Context, candidate *domain.TokenCandidate, amountUsd float64) (*domain.Trade, error) {
	if candidate.PriceUsd <= 0 {
		return s.record(ctx, candidate.Mint, domain.DirectionBuy, amountUsd, 0, 0,
			"no price for simulated fill")
	}
	tokens := tokensFromUsd(amountUsd, candidate.PriceUsd)
	return s.record(ctx, candidate.Mint, domain.DirectionBuy, amountUsd, candidate.PriceUsd, tokens, "")
}

// ExecuteSell records a synthetic full fill of the position at priceUsd.
func (s *Simulated) ExecuteSell(ctx context.Context, position *domain.Position, priceUsd float64) (*domain.Trade, error) {
	amountUsd := priceUsd * float64(position.TokenAmount) / splBaseUnits
	if priceUsd <= 0 {
		return s.record(ctx, position.Mint, domain.DirectionSell, 0, 0, position.TokenAmount,
			"no price for simulated fill")
	}
	return s.record(ctx, position.Mint, domain.DirectionSell, amountUsd, priceUsd, position.TokenAmount, "")
}

// record persists one synthetic trade, CONFIRMED unless failReason is set.
func (s *Simulated) record(
	ctx context.Context,
	mint string,
	direction domain.TradeDirection,
	amountUsd, priceUsd float64,
	tokenAmount int64,
	failReason string,
) (*domain.Trade, error) {
	createdAt := s.now().UnixMilli()
	trade := &domain.Trade{
		TradeID:   idhash.ComputeTradeID(mint, direction, amountUsd, createdAt),
		Mint:      mint,
		Direction: direction,
		AmountUsd: amountUsd,
		Status:    domain.TradeStatusPending,
		Attempts:  1,
		CreatedAt: createdAt,
	}

	if err := s.trades.Insert(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	if failReason != "" {
		trade.Status = domain.TradeStatusFailed
		trade.ErrorMessage = failReason
		s.logger.Warn().Str("mint", mint).Str("direction", string(direction)).
			Str("reason", failReason).Msg("simulated swap failed")
	} else {
		trade.Status = domain.TradeStatusConfirmed
		trade.TxSignature = "sim-" + trade.TradeID[:16]
		trade.FilledUsd = amountUsd
		trade.PriceUsd = priceUsd
		trade.TokenAmount = tokenAmount
		trade.ConfirmedAt = createdAt
		s.logger.Info().Str("mint", mint).Str("direction", string(direction)).
			Float64("filled_usd", amountUsd).Msg("simulated swap confirmed")
	}

	if err := s.trades.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}

	observability.RecordTrade(string(trade.Direction), string(trade.Status), trade.Attempts, trade.FilledUsd)
	return trade, nil
}
