// Package wallet holds the trading keypair and signs swap transactions
// produced by the aggregator.
package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Errors returned by keypair loading and signing.
var (
	ErrBadKeyLength = errors.New("secret key must be 64 bytes")
	ErrOffCurve     = errors.New("public key is not on the ed25519 curve")
	ErrNoSignerSlot = errors.New("transaction has no signature slot")
	ErrShortPayload = errors.New("transaction payload too short")
)

// Keypair is an ed25519 signing keypair for the trading wallet.
type Keypair struct {
	secret ed25519.PrivateKey
	public ed25519.PublicKey
}

// Load decodes a base58-encoded 64-byte secret key (the standard Solana
// wallet export format) and validates the embedded public key.
func Load(secretBase58 string) (*Keypair, error) {
	raw, err := base58.Decode(secretBase58)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, ErrBadKeyLength
	}

	kp := &Keypair{
		secret: ed25519.PrivateKey(raw),
		public: ed25519.PublicKey(raw[32:]),
	}

	if !onCurve(kp.public) {
		return nil, ErrOffCurve
	}

	return kp, nil
}

// PublicKey returns the wallet address in base58.
func (k *Keypair) PublicKey() string {
	return base58.Encode(k.public)
}

// Sign signs an arbitrary message.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.secret, message)
}

// SignTransaction signs a base64-encoded serialized transaction as the
// fee payer and returns it re-encoded. The wire layout is a shortvec
// count of 64-byte signatures followed by the message; the fee payer's
// signature occupies slot zero.
func (k *Keypair) SignTransaction(txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, offset, err := decodeShortvecLen(raw)
	if err != nil {
		return "", err
	}
	if numSigs == 0 {
		return "", ErrNoSignerSlot
	}

	msgStart := offset + numSigs*ed25519.SignatureSize
	if len(raw) <= msgStart {
		return "", ErrShortPayload
	}

	sig := ed25519.Sign(k.secret, raw[msgStart:])
	copy(raw[offset:offset+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// ValidateAddress reports whether s is a well-formed base58 ed25519
// public key. Off-curve addresses (PDAs) are accepted for mints.
func ValidateAddress(s string) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return fmt.Errorf("address must be 32 bytes, got %d", len(raw))
	}
	return nil
}

// onCurve checks that a 32-byte public key is a valid curve point.
func onCurve(pub []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(pub)
	return err == nil
}

// decodeShortvecLen decodes Solana's compact-u16 length prefix.
// Returns the value and the number of bytes consumed.
func decodeShortvecLen(data []byte) (int, int, error) {
	value := 0
	shift := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, ErrShortPayload
		}
		b := data[i]
		value |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("malformed shortvec length")
}
