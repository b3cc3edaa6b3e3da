package evaluator

import "solana-trading-engine/internal/domain"

// tierRule is one sizing rule: a predicate over the candidate's signals
// and the amount the matching tier invests.
type tierRule struct {
	code   string
	match  func(signals) bool
	amount func(Config) float64
}

// tierRules returns the sizing rules in descending specificity. Order is
// load-bearing: evaluation stops at the first match.
func tierRules() []tierRule {
	return []tierRule{
		{
			code:   domain.TierD,
			match:  func(s signals) bool { return s.newListing && s.hasProfile && s.hasBooster },
			amount: func(c Config) float64 { return c.TierDAmountUsd },
		},
		{
			code:   domain.TierC,
			match:  func(s signals) bool { return s.newListing && s.hasProfile },
			amount: func(c Config) float64 { return c.TierCAmountUsd },
		},
		{
			code:   domain.TierA,
			match:  func(s signals) bool { return s.newListing },
			amount: func(c Config) float64 { return c.TierAAmountUsd },
		},
	}
}
