package storage

import "errors"

// Storage errors shared by all implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDuplicatePosition is returned by PositionStore.Create when a
	// non-terminal position already exists for the mint. This is the
	// dedupe guard: a token has at most one non-terminal position.
	ErrDuplicatePosition = errors.New("non-terminal position already exists for mint")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrIllegalTransition is returned when a position update violates
	// the position state machine.
	ErrIllegalTransition = errors.New("illegal position state transition")
)
