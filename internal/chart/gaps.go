package chart

import "market-chart-lab/internal/domain"

// Gap annotation defaults, in seconds.
const (
	DefaultGapThreshold int64 = 120
	DefaultBreakInset   int64 = 30
)

// GapConfig configures Annotate.
type GapConfig struct {
	Threshold int64
	Inset     int64
}

// DefaultGapConfig returns the default gap annotation configuration.
func DefaultGapConfig() GapConfig {
	return GapConfig{Threshold: DefaultGapThreshold, Inset: DefaultBreakInset}
}

// Valid reports whether breakpoints fall strictly inside every annotated gap.
func (c GapConfig) Valid() bool {
	return c.Inset > 0 && c.Threshold >= 2*c.Inset
}

// RenderPoint is a renderer sample. A nil Yes marks a break in the line.
type RenderPoint struct {
	Timestamp int64    `json:"t"`
	Yes       *float64 `json:"yes"`
}

// IsBreak reports whether p is a gap breakpoint.
func (p RenderPoint) IsBreak() bool {
	return p.Yes == nil
}

// Annotate converts an ascending series into render points, inserting two
// valueless breakpoints (earlier+Inset, later-Inset) between consecutive
// points more than Threshold apart, unless the earlier point is the seed.
// The input is not modified.
func Annotate(series []domain.PricePoint, cfg GapConfig) []RenderPoint {
	if !cfg.Valid() {
		cfg = DefaultGapConfig()
	}

	out := make([]RenderPoint, 0, len(series))
	for i, p := range series {
		if i > 0 {
			prev := series[i-1]
			if !prev.IsSeed() && p.Timestamp-prev.Timestamp > cfg.Threshold {
				out = append(out,
					RenderPoint{Timestamp: prev.Timestamp + cfg.Inset},
					RenderPoint{Timestamp: p.Timestamp - cfg.Inset},
				)
			}
		}
		yes := p.YesProbability
		out = append(out, RenderPoint{Timestamp: p.Timestamp, Yes: &yes})
	}
	return out
}
