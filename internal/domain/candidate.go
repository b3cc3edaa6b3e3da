package domain

// TokenCandidate represents a newly observed token eligible for evaluation.
// Produced by the discovery collaborator; immutable once received.
type TokenCandidate struct {
	Mint         string  // token mint address
	Pair         string  // DEX pair identifier
	Name         string
	Symbol       string
	PriceUsd     float64
	LiquidityUsd float64
	Volume24hUsd float64
	HasProfile   bool  // verified profile on the listing site
	HasBooster   bool  // paid boost active
	PairCreated  int64 // pair creation timestamp (ms), 0 if unknown
	DiscoveredAt int64 // discovery timestamp (ms)
}

// AgeMs returns the candidate's listing age relative to now (ms).
// Returns -1 when the pair creation time is unknown.
func (c *TokenCandidate) AgeMs(nowMs int64) int64 {
	if c.PairCreated <= 0 {
		return -1
	}
	return nowMs - c.PairCreated
}
