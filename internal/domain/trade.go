package domain

// TradeDirection is the side of a swap.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "BUY"
	DirectionSell TradeDirection = "SELL"
)

// TradeStatus is the lifecycle status of a swap attempt.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusConfirmed TradeStatus = "CONFIRMED"
	TradeStatusFailed    TradeStatus = "FAILED"
)

// Trade is a single executed or attempted swap. The Swap Executor is the
// exclusive mutator of trade records; stored rows are an audit trail and
// are never deleted.
type Trade struct {
	TradeID      string
	Mint         string
	Direction    TradeDirection
	AmountUsd    float64 // requested notional
	FilledUsd    float64 // realized notional, set on confirmation
	PriceUsd     float64 // execution price, set on confirmation
	TokenAmount  int64   // token base units bought (BUY) or sold (SELL)
	TxSignature  string  // empty until submitted
	Status       TradeStatus
	Attempts     int
	ErrorMessage string // last failure reason, empty when confirmed
	CreatedAt    int64  // ms
	ConfirmedAt  int64  // ms, 0 until confirmed
}
