// Package evaluator maps a candidate token's signals to an investment
// decision. Evaluation is a pure function of the candidate and the
// static configuration: no I/O, no mutation, deterministic.
package evaluator

import (
	"time"

	"solana-trading-engine/internal/domain"
)

// Config holds the sizing policy. Tier amounts are configuration, not
// code, so operators can retune without redeploying.
type Config struct {
	// Admission filters. A candidate below either minimum is always
	// skipped, whatever its profile/booster signals.
	MinLiquidityUsd float64
	MinVolumeUsd    float64

	// MaxListingAge bounds what counts as a "new listing". A candidate
	// with unknown age is treated as not new.
	MaxListingAge time.Duration

	// Tier amounts in USD, most specific first.
	TierDAmountUsd float64 // new listing + profile + booster
	TierCAmountUsd float64 // new listing + profile
	TierAAmountUsd float64 // new listing only
}

// DefaultConfig mirrors the operator defaults: 1/3/5 USD tiers,
// 1000 USD admission minimums, 24h listing window.
func DefaultConfig() Config {
	return Config{
		MinLiquidityUsd: 1000,
		MinVolumeUsd:    1000,
		MaxListingAge:   24 * time.Hour,
		TierDAmountUsd:  5,
		TierCAmountUsd:  3,
		TierAAmountUsd:  1,
	}
}

// Evaluator sizes bets from candidate signals via ordered tier rules.
type Evaluator struct {
	cfg   Config
	rules []tierRule
	now   func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// New creates an evaluator with the given sizing policy.
func New(cfg Config, opts ...Option) *Evaluator {
	e := &Evaluator{
		cfg:   cfg,
		rules: tierRules(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate produces an InvestmentDecision for a candidate. Never errors:
// malformed fields take the most conservative reading (absent flag means
// false, unknown volume means 0), which at worst yields a skip.
func (e *Evaluator) Evaluate(c *domain.TokenCandidate) *domain.InvestmentDecision {
	decision := &domain.InvestmentDecision{
		Mint:       c.Mint,
		Pair:       c.Pair,
		ReasonCode: domain.TierSkip,
	}

	sig := e.signals(c)

	// Admission filters apply before any tiering.
	if !sig.admitted {
		return decision
	}

	// Most specific matching tier wins. Tiers are mutually exclusive and
	// ordered by specificity, so the first match is the only match.
	for _, rule := range e.rules {
		if rule.match(sig) {
			decision.ReasonCode = rule.code
			decision.AmountUsd = rule.amount(e.cfg)
			return decision
		}
	}

	return decision
}

// signals is the normalized view of a candidate the tier rules see.
type signals struct {
	admitted   bool
	newListing bool
	hasProfile bool
	hasBooster bool
}

func (e *Evaluator) signals(c *domain.TokenCandidate) signals {
	nowMs := e.now().UnixMilli()
	age := c.AgeMs(nowMs)

	return signals{
		admitted: c.Mint != "" &&
			c.LiquidityUsd >= e.cfg.MinLiquidityUsd &&
			c.Volume24hUsd >= e.cfg.MinVolumeUsd,
		newListing: age >= 0 && age <= e.cfg.MaxListingAge.Milliseconds(),
		hasProfile: c.HasProfile,
		hasBooster: c.HasBooster,
	}
}
