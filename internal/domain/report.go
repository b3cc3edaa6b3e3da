package domain

// Per-candidate cycle outcomes.
const (
	OutcomeSkipped        = "SKIPPED"         // evaluator decided not to invest
	OutcomeBought         = "BOUGHT"          // buy confirmed, position opened
	OutcomeDuplicate      = "DUPLICATE"       // non-terminal position already exists
	OutcomeBudgetExceeded = "BUDGET_EXCEEDED" // daily cap refused the reservation
	OutcomeBuyFailed      = "BUY_FAILED"      // buy exhausted retries
	OutcomeError          = "ERROR"           // storage or internal failure
)

// CycleItem is the per-candidate outcome of one trading cycle.
type CycleItem struct {
	Mint       string
	Symbol     string
	Outcome    string
	ReasonCode string  // tier that matched, or SKIP
	AmountUsd  float64 // requested notional, 0 on skip
	TradeID    string
	PositionID string
	Error      string
}

// CycleReport enumerates every candidate processed by RunCycle.
type CycleReport struct {
	CycleID    string
	StartedAt  int64 // ms
	FinishedAt int64 // ms
	Candidates int
	Bought     int
	Skipped    int
	Failed     int
	Items      []CycleItem
}

// Per-position tick outcomes.
const (
	TickHeld       = "HELD"        // below take-profit, still open
	TickClosed     = "CLOSED"      // sell confirmed
	TickSellFailed = "SELL_FAILED" // sell exhausted retries, back to OPEN
	TickExpired    = "EXPIRED"     // OPENING grace period exceeded
	TickNoPrice    = "NO_PRICE"    // price source had no quote
	TickError      = "ERROR"       // storage or internal failure
)

// TickItem is the per-position outcome of one tracking tick.
type TickItem struct {
	PositionID string
	Mint       string
	Outcome    string
	PriceUsd   float64
	Multiple   float64
	Error      string
}

// TickReport enumerates every position touched by a tracking tick.
type TickReport struct {
	TickID     int64 // monotonically increasing per tracker instance
	StartedAt  int64 // ms
	FinishedAt int64 // ms
	Open       int
	Closed     int
	Items      []TickItem
}
