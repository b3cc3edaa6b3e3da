// Package solana provides the blockchain endpoint collaborators: a
// JSON-RPC transaction sender with healthy-endpoint selection and a
// WebSocket confirmation subscriber.
package solana

import "context"

// SignatureStatus is the confirmation status of a submitted transaction.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	ConfirmationStatus string      // "processed" | "confirmed" | "finalized"
	Err                interface{} // non-nil when the transaction failed on chain
}

// Confirmed reports whether the transaction reached at least the
// confirmed commitment without an on-chain error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// TxSender defines the transaction submission interface. Implementations
// are treated as unreliable; callers wrap use in their own retry policy.
type TxSender interface {
	// SendTransaction submits a base64-encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatus retrieves the confirmation status for a
	// signature. Returns nil status when the signature is unknown.
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}
