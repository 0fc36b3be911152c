package chart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/domain"
)

func pt(ts int64, yes float64, provenance string) domain.PricePoint {
	return domain.NewPricePoint(ts, yes, provenance)
}

func assertStrictlyAscending(t *testing.T, series []domain.PricePoint) {
	t.Helper()
	for i := 1; i < len(series); i++ {
		require.Less(t, series[i-1].Timestamp, series[i].Timestamp, "series not strictly ascending at %d", i)
	}
}

func TestMerger_SeedOnly(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(1000, 0.5, domain.ProvenanceSeed))

	series := m.Series()
	require.Len(t, series, 1)
	assert.True(t, series[0].IsSeed())
	assert.Equal(t, int64(1000), series[0].Timestamp)
	assert.Equal(t, 0.5, series[0].NoProbability)
}

func TestMerger_OrdersOutOfOrderInput(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(50, 0.5, domain.ProvenanceSeed))
	m.Merge(pt(300, 0.3, "0xc"), pt(100, 0.1, "0xa"))
	m.Merge(pt(200, 0.2, "0xb"))

	series := m.Series()
	require.Len(t, series, 4)
	assertStrictlyAscending(t, series)
	assert.Equal(t, []string{"seed", "0xa", "0xb", "0xc"}, provenances(series))
}

func TestMerger_Idempotent(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(50, 0.5, domain.ProvenanceSeed))
	p := pt(100, 0.4, "0xabc")

	assert.Equal(t, 1, m.Merge(p))
	before := m.Series()

	assert.Equal(t, 0, m.Merge(p))
	// Same key after 6-decimal rounding
	assert.Equal(t, 0, m.Merge(pt(100, 0.4000000001, "0xabc")))
	assert.Equal(t, before, m.Series())
}

func TestMerger_SameTimestampLastWriteWins(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(50, 0.5, domain.ProvenanceSeed))
	m.Merge(pt(100, 0.4, "0xfff"))
	m.Merge(pt(100, 0.6, "0x000"))

	series := m.Series()
	require.Len(t, series, 2)
	assert.Equal(t, "0x000", series[1].Provenance)
	assert.Equal(t, 0.6, series[1].YesProbability)

	// Re-submitting the superseded point does not flip it back
	assert.Equal(t, 0, m.Merge(pt(100, 0.4, "0xfff")))
	assert.Equal(t, "0x000", m.Series()[1].Provenance)
}

func TestMerger_SeedNeverDroppedOrReplaced(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(1000, 0.5, domain.ProvenanceSeed))
	assert.Equal(t, 0, m.Merge(pt(2000, 0.5, domain.ProvenanceSeed)))

	m.Merge(pt(1500, 0.7, "0x1"))
	series := m.Series()
	require.Len(t, series, 2)
	assert.True(t, series[0].IsSeed())
	assert.Equal(t, int64(1000), series[0].Timestamp)
}

func TestMerger_SeedReanchoredBeforeEarlierPoint(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(1000, 0.5, domain.ProvenanceSeed))
	m.Merge(pt(1000, 0.6, "0x1"), pt(900, 0.55, "0x0"))

	series := m.Series()
	require.Len(t, series, 3)
	assert.True(t, series[0].IsSeed())
	assert.Equal(t, int64(899), series[0].Timestamp)
	assertStrictlyAscending(t, series)

	seed, ok := m.Seed()
	require.True(t, ok)
	assert.Equal(t, int64(899), seed.Timestamp)
}

func TestMerger_SkipsNonFinite(t *testing.T) {
	m := NewMerger()
	m.Merge(pt(50, 0.5, domain.ProvenanceSeed))
	bad := domain.PricePoint{Timestamp: 100, YesProbability: math.NaN(), Provenance: "0x1"}

	assert.Equal(t, 0, m.Merge(bad))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.RealLen())
}

func TestMerger_Last(t *testing.T) {
	m := NewMerger()
	_, ok := m.Last()
	assert.False(t, ok)

	m.Merge(pt(50, 0.5, domain.ProvenanceSeed))
	last, ok := m.Last()
	require.True(t, ok)
	assert.True(t, last.IsSeed())

	m.Merge(pt(70, 0.8, "0x1"), pt(60, 0.7, "0x0"))
	last, _ = m.Last()
	assert.Equal(t, "0x1", last.Provenance)
}

func provenances(series []domain.PricePoint) []string {
	out := make([]string, len(series))
	for i, p := range series {
		out[i] = p.Provenance
	}
	return out
}
