package chart

import (
	"strconv"

	"github.com/google/btree"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/idhash"
	"market-chart-lab/internal/price"
)

const btreeDegree = 16

func byTimestamp(a, b domain.PricePoint) bool {
	return a.Timestamp < b.Timestamp
}

// Merger holds the canonical series for a session.
//
// Real points are kept in a B-tree keyed by timestamp, so the series is always
// ascending and timestamp-unique; a later-merged point at an occupied timestamp
// replaces the earlier one. Every merge key ever accepted is remembered, which
// makes re-merging any point a no-op regardless of interleaving.
// The seed is held separately and never dropped.
type Merger struct {
	seed    domain.PricePoint
	hasSeed bool
	points  *btree.BTreeG[domain.PricePoint]
	keys    map[string]struct{}
}

// NewMerger creates an empty merger.
func NewMerger() *Merger {
	return &Merger{
		points: btree.NewG(btreeDegree, byTimestamp),
		keys:   make(map[string]struct{}),
	}
}

// MergeKey returns the idempotency key of a point.
func MergeKey(p domain.PricePoint) string {
	return idhash.ComputePointKey(p.Provenance, p.Timestamp, p.YesProbability)
}

// Merge inserts points and returns how many changed the series.
// A seed point is accepted only while no seed is set.
func (m *Merger) Merge(points ...domain.PricePoint) int {
	changed := 0
	for _, p := range points {
		if !price.Finite(p.YesProbability) {
			continue
		}
		key := MergeKey(p)
		if _, ok := m.keys[key]; ok {
			continue
		}

		if p.IsSeed() {
			if m.hasSeed {
				continue
			}
			m.keys[key] = struct{}{}
			m.seed = p
			m.hasSeed = true
			changed++
			continue
		}

		m.keys[key] = struct{}{}
		m.points.ReplaceOrInsert(p)
		changed++
	}
	return changed
}

// HasSeed reports whether a seed point is set.
func (m *Merger) HasSeed() bool {
	return m.hasSeed
}

// Seed returns the seed as it appears in the series.
func (m *Merger) Seed() (domain.PricePoint, bool) {
	if !m.hasSeed {
		return domain.PricePoint{}, false
	}
	seed := m.seed
	if first, ok := m.points.Min(); ok && first.Timestamp <= seed.Timestamp {
		seed.Timestamp = first.Timestamp - 1
	}
	return seed, true
}

// Len returns the number of points in the series, seed included.
func (m *Merger) Len() int {
	n := m.points.Len()
	if m.hasSeed {
		n++
	}
	return n
}

// RealLen returns the number of non-seed points.
func (m *Merger) RealLen() int {
	return m.points.Len()
}

// Last returns the latest point of the series.
func (m *Merger) Last() (domain.PricePoint, bool) {
	if p, ok := m.points.Max(); ok {
		return p, true
	}
	return m.Seed()
}

// Series returns the canonical series: the seed followed by real points in
// strictly ascending timestamp order. With no real points only the seed is returned.
// A real point at or before the seed moves the seed to one second before it.
func (m *Merger) Series() []domain.PricePoint {
	out := make([]domain.PricePoint, 0, m.Len())
	if seed, ok := m.Seed(); ok {
		out = append(out, seed)
	}
	m.points.Ascend(func(p domain.PricePoint) bool {
		out = append(out, p)
		return true
	})
	return out
}

func uitoa(n uint64) string {
	return strconv.FormatUint(n, 10)
}
