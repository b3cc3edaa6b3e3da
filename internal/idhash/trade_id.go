package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-trading-engine/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(mint|direction|amount_usd|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	mint string,
	direction domain.TradeDirection,
	amountUsd float64,
	createdAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%.6f|%d",
		mint,
		string(direction),
		amountUsd,
		createdAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
