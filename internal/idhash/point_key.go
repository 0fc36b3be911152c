package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"market-chart-lab/internal/price"
)

// ComputePointKey computes the deterministic merge key of a price point.
// Formula: SHA256(provenance|timestamp|yes rounded to 6 decimals)
// Returns hex-encoded hash (64 characters).
func ComputePointKey(provenance string, timestamp int64, yes float64) string {
	data := fmt.Sprintf("%s|%d|%s",
		provenance,
		timestamp,
		price.Format6(yes),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
