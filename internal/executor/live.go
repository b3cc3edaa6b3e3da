package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/idhash"
	"solana-trading-engine/internal/jupiter"
	"solana-trading-engine/internal/observability"
	"solana-trading-engine/internal/solana"
	"solana-trading-engine/internal/storage"
	"solana-trading-engine/internal/wallet"
)

// Confirmer is the optional WebSocket fast path for confirmation.
type Confirmer interface {
	WaitForConfirmation(ctx context.Context, signature string) (*solana.SignatureStatus, error)
}

// Live executes real swaps: quote, sign, submit, confirm.
type Live struct {
	quoter    Quoter
	sender    solana.TxSender
	confirmer Confirmer // nil means poll-only
	keypair   *wallet.Keypair
	trades    storage.TradeStore
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

// NewLive creates a live executor.
func NewLive(
	quoter Quoter,
	sender solana.TxSender,
	confirmer Confirmer,
	keypair *wallet.Keypair,
	trades storage.TradeStore,
	cfg Config,
	logger zerolog.Logger,
) *Live {
	return &Live{
		quoter:    quoter,
		sender:    sender,
		confirmer: confirmer,
		keypair:   keypair,
		trades:    trades,
		cfg:       cfg,
		logger:    logger.With().Str("component", "executor").Str("mode", "live").Logger(),
		now:       time.Now,
	}
}

// Compile-time interface check.
var _ Executor = (*Live)(nil)

// ExecuteBuy swaps amountUsd of USDC into the candidate's token.
func (l *Live) ExecuteBuy(ctx context.Context, candidate *domain.TokenCandidate, amountUsd float64) (*domain.Trade, error) {
	return l.execute(ctx, swapSpec{
		mint:       candidate.Mint,
		direction:  domain.DirectionBuy,
		amountUsd:  amountUsd,
		inputMint:  jupiter.USDCMint,
		outputMint: candidate.Mint,
		inAmount:   jupiter.UsdToBaseUnits(amountUsd),
		markPrice:  candidate.PriceUsd,
	})
}

// ExecuteSell swaps the position's holdings back to USDC.
func (l *Live) ExecuteSell(ctx context.Context, position *domain.Position, priceUsd float64) (*domain.Trade, error) {
	return l.execute(ctx, swapSpec{
		mint:       position.Mint,
		direction:  domain.DirectionSell,
		amountUsd:  priceUsd * float64(position.TokenAmount) / splBaseUnits,
		inputMint:  position.Mint,
		outputMint: jupiter.USDCMint,
		inAmount:   position.TokenAmount,
		markPrice:  priceUsd,
	})
}

// swapSpec is one swap request, direction-agnostic.
type swapSpec struct {
	mint       string
	direction  domain.TradeDirection
	amountUsd  float64
	inputMint  string
	outputMint string
	inAmount   int64
	markPrice  float64
}

// execute runs the full attempt protocol and persists the trade record.
// The returned trade is CONFIRMED or FAILED; errors are storage failures.
func (l *Live) execute(ctx context.Context, spec swapSpec) (*domain.Trade, error) {
	createdAt := l.now().UnixMilli()
	trade := &domain.Trade{
		TradeID:   idhash.ComputeTradeID(spec.mint, spec.direction, spec.amountUsd, createdAt),
		Mint:      spec.mint,
		Direction: spec.direction,
		AmountUsd: spec.amountUsd,
		Status:    domain.TradeStatusPending,
		CreatedAt: createdAt,
	}

	if err := l.trades.Insert(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	fill, err := l.attemptWithRetry(ctx, spec, trade)
	if err != nil {
		trade.Status = domain.TradeStatusFailed
		trade.ErrorMessage = err.Error()
		l.logger.Warn().Str("mint", spec.mint).Str("direction", string(spec.direction)).
			Int("attempts", trade.Attempts).Err(err).Msg("swap failed")
	} else {
		trade.Status = domain.TradeStatusConfirmed
		trade.TxSignature = fill.signature
		trade.FilledUsd = fill.filledUsd
		trade.PriceUsd = fill.priceUsd
		trade.TokenAmount = fill.tokenAmount
		trade.ConfirmedAt = l.now().UnixMilli()
		l.logger.Info().Str("mint", spec.mint).Str("direction", string(spec.direction)).
			Str("signature", fill.signature).Float64("filled_usd", fill.filledUsd).
			Msg("swap confirmed")
	}

	if err := l.trades.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("update trade: %w", err)
	}

	observability.RecordTrade(string(trade.Direction), string(trade.Status), trade.Attempts, trade.FilledUsd)
	return trade, nil
}

// fillResult is the outcome of one confirmed attempt.
type fillResult struct {
	signature   string
	filledUsd   float64
	priceUsd    float64
	tokenAmount int64
}

// attemptWithRetry retries the attempt protocol with exponential backoff
// up to the configured limit.
func (l *Live) attemptWithRetry(ctx context.Context, spec swapSpec, trade *domain.Trade) (*fillResult, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.cfg.InitialBackoff
	bo.MaxInterval = l.cfg.MaxBackoff
	bo.MaxElapsedTime = 0 // bounded by attempt count and ctx, not wall time

	var fill *fillResult
	operation := func() error {
		trade.Attempts++
		result, err := l.attempt(ctx, spec)
		if err != nil {
			l.logger.Debug().Str("mint", spec.mint).Int("attempt", trade.Attempts).
				Err(err).Msg("swap attempt failed")
			return err
		}
		fill = result
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(l.cfg.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return fill, nil
}

// attempt runs one quote → sign → submit → confirm round.
func (l *Live) attempt(ctx context.Context, spec swapSpec) (*fillResult, error) {
	quote, err := l.quoter.GetQuote(ctx, spec.inputMint, spec.outputMint, spec.inAmount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	unsigned, err := l.quoter.BuildSwapTransaction(ctx, quote, l.keypair.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("%w: build transaction: %v", ErrSubmissionFailed, err)
	}

	signed, err := l.keypair.SignTransaction(unsigned)
	if err != nil {
		// A malformed payload will not improve with retries, but the
		// next attempt requotes and rebuilds, so it stays retryable.
		return nil, fmt.Errorf("%w: sign transaction: %v", ErrSubmissionFailed, err)
	}

	signature, err := l.sender.SendTransaction(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	if err := l.awaitConfirmation(ctx, signature); err != nil {
		return nil, err
	}

	return l.fillFromQuote(spec, quote, signature), nil
}

// awaitConfirmation waits for the signature to confirm, via WebSocket
// when available, otherwise by polling, bounded by ConfirmTimeout.
func (l *Live) awaitConfirmation(ctx context.Context, signature string) error {
	confirmCtx, cancel := context.WithTimeout(ctx, l.cfg.ConfirmTimeout)
	defer cancel()

	if l.confirmer != nil {
		status, err := l.confirmer.WaitForConfirmation(confirmCtx, signature)
		if err == nil {
			if status.Err != nil {
				return fmt.Errorf("%w: transaction failed on chain: %v", ErrSubmissionFailed, status.Err)
			}
			return nil
		}
		// Fall through to polling on any subscription failure.
		l.logger.Debug().Str("signature", signature).Err(err).Msg("ws confirmation unavailable, polling")
	}

	ticker := time.NewTicker(l.cfg.ConfirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-confirmCtx.Done():
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, signature)
		case <-ticker.C:
			status, err := l.sender.GetSignatureStatus(confirmCtx, signature)
			if err != nil {
				continue
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return fmt.Errorf("%w: transaction failed on chain: %v", ErrSubmissionFailed, status.Err)
			}
			if status.Confirmed() {
				return nil
			}
		}
	}
}

// fillFromQuote derives the realized fill from the executed quote.
func (l *Live) fillFromQuote(spec swapSpec, quote *jupiter.Quote, signature string) *fillResult {
	fill := &fillResult{signature: signature}

	switch spec.direction {
	case domain.DirectionBuy:
		fill.filledUsd = spec.amountUsd
		fill.tokenAmount = quote.OutAmount
		if quote.OutAmount > 0 {
			fill.priceUsd = spec.amountUsd / (float64(quote.OutAmount) / splBaseUnits)
		} else {
			fill.priceUsd = spec.markPrice
		}
	case domain.DirectionSell:
		fill.filledUsd = float64(quote.OutAmount) / 1e6 // USDC out
		fill.tokenAmount = spec.inAmount
		fill.priceUsd = spec.markPrice
	}

	return fill
}
