package domain

import "fmt"

// PositionState is the lifecycle state of a position.
//
// Normal path: OPENING → OPEN → CLOSING → CLOSED.
// Exceptional: OPENING → FAILED (buy never confirmed),
// CLOSING → OPEN (sell failed, retried on the next tick).
// CLOSED and FAILED are terminal.
type PositionState string

const (
	PositionOpening PositionState = "OPENING"
	PositionOpen    PositionState = "OPEN"
	PositionClosing PositionState = "CLOSING"
	PositionClosed  PositionState = "CLOSED"
	PositionFailed  PositionState = "FAILED"
)

// legalTransitions encodes the position state machine.
var legalTransitions = map[PositionState][]PositionState{
	PositionOpening: {PositionOpen, PositionFailed},
	PositionOpen:    {PositionClosing},
	PositionClosing: {PositionClosed, PositionOpen},
}

// Terminal reports whether the state admits no further transitions.
func (s PositionState) Terminal() bool {
	return s == PositionClosed || s == PositionFailed
}

// CanTransition reports whether s → next is a legal transition.
func (s PositionState) CanTransition(next PositionState) bool {
	for _, t := range legalTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Position is the unit the tracker supervises. The orchestrator creates
// positions; the tracker is the exclusive mutator afterwards. Positions
// are closed logically and retained in storage, never deleted.
type Position struct {
	PositionID  string
	Mint        string
	Pair        string
	Symbol      string
	State       PositionState
	EntryPrice  float64 // set when the buy confirms
	EntryUsd    float64 // committed notional
	TokenAmount int64   // token base units held
	ExitPrice   float64 // set when the sell confirms
	ProceedsUsd float64 // realized proceeds, set on close
	BuyTradeID  string
	SellTradeID string // empty until a sell is attempted
	CreatedAt   int64  // ms
	ClosedAt    int64  // ms, 0 until terminal
}

// Transition moves the position to next, enforcing the state machine.
func (p *Position) Transition(next PositionState) error {
	if !p.State.CanTransition(next) {
		return fmt.Errorf("illegal position transition %s -> %s for %s", p.State, next, p.PositionID)
	}
	p.State = next
	return nil
}

// Multiple returns exit price over entry price, 0 when entry is unknown.
func (p *Position) Multiple(currentPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return currentPrice / p.EntryPrice
}
