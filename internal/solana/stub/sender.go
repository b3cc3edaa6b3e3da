// Package stub provides map-backed fakes of the solana collaborators
// for testing.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-trading-engine/internal/solana"
)

// TxSender implements solana.TxSender for testing.
type TxSender struct {
	mu sync.Mutex

	// Statuses maps signature to the status returned by GetSignatureStatus.
	Statuses map[string]*solana.SignatureStatus

	// SendErr, when set, is returned by every SendTransaction call.
	SendErr error

	// FailSends makes the next N SendTransaction calls fail.
	FailSends int

	// Sent records every submitted payload.
	Sent []string

	sendCount int
}

// NewTxSender creates a stub sender.
func NewTxSender() *TxSender {
	return &TxSender{
		Statuses: make(map[string]*solana.SignatureStatus),
	}
}

// Compile-time interface check.
var _ solana.TxSender = (*TxSender)(nil)

// SendTransaction records the payload and returns a synthetic signature.
// The signature is immediately registered as confirmed unless a status
// was pre-seeded.
func (s *TxSender) SendTransaction(_ context.Context, txBase64 string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SendErr != nil {
		return "", s.SendErr
	}
	if s.FailSends > 0 {
		s.FailSends--
		return "", errors.New("stub submission failure")
	}

	s.sendCount++
	sig := fmt.Sprintf("stubsig-%d", s.sendCount)
	s.Sent = append(s.Sent, txBase64)

	if _, seeded := s.Statuses[sig]; !seeded {
		s.Statuses[sig] = &solana.SignatureStatus{ConfirmationStatus: "confirmed"}
	}

	return sig, nil
}

// GetSignatureStatus returns the seeded status, nil when unknown.
func (s *TxSender) GetSignatureStatus(_ context.Context, signature string) (*solana.SignatureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.Statuses[signature], nil
}

// SendCount returns how many submissions succeeded.
func (s *TxSender) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCount
}
