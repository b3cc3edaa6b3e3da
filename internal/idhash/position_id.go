package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePositionID computes a deterministic position_id using SHA256.
// Formula: SHA256(mint|pair|created_at)
// Returns hex-encoded hash (64 characters).
func ComputePositionID(mint, pair string, createdAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", mint, pair, createdAt)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
