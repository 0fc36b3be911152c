// Package reporting renders reconciled series as JSON-ready reports, CSV and Markdown.
package reporting

import (
	"time"

	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/domain"
)

// Generator builds reports from a canonical series.
type Generator struct {
	gaps chart.GapConfig
	now  func() time.Time
}

// NewGenerator creates a generator using gaps to detect breaks.
func NewGenerator(gaps chart.GapConfig) *Generator {
	if !gaps.Valid() {
		gaps = chart.DefaultGapConfig()
	}
	return &Generator{
		gaps: gaps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for a session snapshot and its series.
func (g *Generator) Generate(snap chart.Snapshot, series []domain.PricePoint) *Report {
	return &Report{
		GeneratedAt: g.now(),
		MarketID:    snap.MarketID,
		SessionID:   snap.SessionID.String(),
		Version:     snap.Version,
		Summary:     summarize(series),
		Points:      pointRows(series),
		Gaps:        g.gapRows(chart.Annotate(series, g.gaps)),
	}
}

func summarize(series []domain.PricePoint) Summary {
	var s Summary
	s.TotalPoints = len(series)
	if len(series) == 0 {
		return s
	}

	s.FirstTS = series[0].Timestamp
	s.LastTS = series[len(series)-1].Timestamp
	s.LastYes = series[len(series)-1].YesProbability
	s.MinYes, s.MaxYes = 1, 0

	for _, p := range series {
		switch {
		case !p.IsSynthetic():
			s.LedgerPoints++
		case p.IsSeed():
			s.SeedPoints++
		case p.IsSync():
			s.SyncPoints++
		default:
			s.LivePoints++
		}
		if p.YesProbability < s.MinYes {
			s.MinYes = p.YesProbability
		}
		if p.YesProbability > s.MaxYes {
			s.MaxYes = p.YesProbability
		}
	}
	return s
}

func pointRows(series []domain.PricePoint) []PointRow {
	rows := make([]PointRow, len(series))
	for i, p := range series {
		rows[i] = PointRow{
			Timestamp:  p.Timestamp,
			Yes:        p.YesProbability,
			No:         p.NoProbability,
			Provenance: p.Provenance,
		}
	}
	return rows
}

// gapRows pairs consecutive breakpoints back into the gaps they bracket.
func (g *Generator) gapRows(points []chart.RenderPoint) []GapRow {
	var rows []GapRow
	for i := 0; i+1 < len(points); i++ {
		if !points[i].IsBreak() || !points[i+1].IsBreak() {
			continue
		}
		from := points[i].Timestamp - g.gaps.Inset
		to := points[i+1].Timestamp + g.gaps.Inset
		rows = append(rows, GapRow{From: from, To: to, Duration: to - from})
		i++
	}
	return rows
}
