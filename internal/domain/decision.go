package domain

// Sizing tier codes, ordered by specificity. The most specific matching
// tier wins; TierSkip means no investment.
const (
	TierD    = "TIER_D" // new listing + profile + booster
	TierC    = "TIER_C" // new listing + profile
	TierA    = "TIER_A" // new listing only
	TierSkip = "SKIP"
)

// InvestmentDecision is the evaluator's output for one candidate.
// AmountUsd == 0 means skip. Ephemeral unless the amount is positive.
type InvestmentDecision struct {
	Mint       string
	Pair       string
	AmountUsd  float64
	ReasonCode string // tier that matched, or SKIP
}

// Buy reports whether the decision calls for a purchase.
func (d *InvestmentDecision) Buy() bool {
	return d.AmountUsd > 0
}
