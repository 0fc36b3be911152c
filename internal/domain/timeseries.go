package domain

import (
	"strings"

	"market-chart-lab/internal/price"
)

// Provenance tags for synthetic points. Real points carry a transaction identity.
const (
	ProvenanceSeed       = "seed"
	ProvenanceSync       = "sync"
	ProvenanceSyncUpdate = "sync-update"
	ProvenanceLivePrefix = "live-"
)

// PricePoint is a timestamped YES-probability sample for one market.
// Points are created once by a producer and never mutated afterwards.
type PricePoint struct {
	Timestamp      int64   // Unix timestamp in seconds
	YesProbability float64 // clamped to [0,1]
	NoProbability  float64 // 1 - yes, clamped to [0,1]
	Provenance     string  // tx identity | "seed" | "sync" | "sync-update" | "live-<n>"
}

// NewPricePoint builds a point with yes clamped to [0,1] and no derived from it.
func NewPricePoint(ts int64, yes float64, provenance string) PricePoint {
	yes = price.Clamp01(yes)
	return PricePoint{
		Timestamp:      ts,
		YesProbability: yes,
		NoProbability:  price.Complement(yes),
		Provenance:     provenance,
	}
}

// IsSeed reports whether p is the synthetic creation baseline.
func (p PricePoint) IsSeed() bool {
	return p.Provenance == ProvenanceSeed
}

// IsSync reports whether p carries an externally observed price rather than a trade.
func (p PricePoint) IsSync() bool {
	return p.Provenance == ProvenanceSync || p.Provenance == ProvenanceSyncUpdate
}

// IsSynthetic reports whether p was produced locally rather than observed on-chain.
func (p PricePoint) IsSynthetic() bool {
	return p.IsSeed() || p.IsSync() || strings.HasPrefix(p.Provenance, ProvenanceLivePrefix)
}
