// Package executor turns investment decisions into swaps. Two
// implementations share one retry/state-transition contract: Live signs
// and submits real transactions, Simulated fabricates deterministic
// fills. Tests written against Simulated validate the same control flow
// Live runs.
package executor

import (
	"context"
	"errors"
	"time"

	"solana-trading-engine/internal/domain"
	"solana-trading-engine/internal/jupiter"
)

// Error taxonomy for swap attempts. All three are retryable up to the
// configured attempt limit, then the trade goes FAILED.
var (
	ErrQuoteUnavailable    = errors.New("quote unavailable")
	ErrSubmissionFailed    = errors.New("transaction submission failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// splBaseUnits assumes the standard 9 decimals for SPL token quantity
// accounting when the mint's decimals are unknown.
const splBaseUnits = 1e9

// Executor executes buys and sells. Swap failures are reported on the
// returned trade's status, not as an error; a non-nil error means the
// trade record itself could not be persisted.
type Executor interface {
	// ExecuteBuy swaps amountUsd of USDC into the candidate's token.
	ExecuteBuy(ctx context.Context, candidate *domain.TokenCandidate, amountUsd float64) (*domain.Trade, error)

	// ExecuteSell swaps the position's holdings back to USDC at the
	// given observed price.
	ExecuteSell(ctx context.Context, position *domain.Position, priceUsd float64) (*domain.Trade, error)
}

// Quoter is the aggregator surface the live executor needs.
type Quoter interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount int64) (*jupiter.Quote, error)
	BuildSwapTransaction(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (string, error)
}

// Config holds the shared retry and confirmation policy.
type Config struct {
	MaxAttempts     int           // swap attempts before FAILED
	InitialBackoff  time.Duration // first retry delay, doubled per attempt
	MaxBackoff      time.Duration
	ConfirmTimeout  time.Duration // per-attempt confirmation budget
	ConfirmInterval time.Duration // status poll interval
}

// DefaultConfig mirrors the operator defaults: 5 attempts, 1s initial
// backoff, 60s confirmation budget.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		InitialBackoff:  1 * time.Second,
		MaxBackoff:      30 * time.Second,
		ConfirmTimeout:  60 * time.Second,
		ConfirmInterval: 2 * time.Second,
	}
}

// tokensFromUsd converts a USD notional at a price into base units under
// the default SPL decimal assumption.
func tokensFromUsd(amountUsd, priceUsd float64) int64 {
	if priceUsd <= 0 {
		return 0
	}
	return int64(amountUsd / priceUsd * splBaseUnits)
}
