package ledger

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Default market event signatures. Market and trader are indexed; the data
// section carries shares (word 0) and the post-trade yes price (word 1).
const (
	BuyEventSignature  = "Buy(bytes32,address,uint256,uint256)"
	SellEventSignature = "Sell(bytes32,address,uint256,uint256)"
)

// Keccak256Hex returns the 0x-prefixed Keccak-256 digest of data.
func Keccak256Hex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// EventTopic returns topics[0] for an event signature.
func EventTopic(signature string) string {
	return Keccak256Hex([]byte(signature))
}

// MarketTopic returns the indexed bytes32 topic for a market id.
// Hex ids of up to 32 bytes are left-padded; any other id is hashed.
func MarketTopic(marketID string) string {
	id := strings.ToLower(strings.TrimSpace(marketID))
	if raw, ok := strings.CutPrefix(id, "0x"); ok && len(raw) > 0 && len(raw) <= 64 && isHex(raw) {
		return "0x" + strings.Repeat("0", 64-len(raw)) + raw
	}
	return Keccak256Hex([]byte(marketID))
}

// NormalizeTopic lowercases a topic for comparison.
func NormalizeTopic(topic string) string {
	return strings.ToLower(topic)
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
