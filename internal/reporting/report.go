package reporting

import "time"

// Report describes one reconciled market series.
type Report struct {
	// Metadata
	GeneratedAt time.Time `json:"generatedAt"`
	MarketID    string    `json:"marketId"`
	SessionID   string    `json:"sessionId"`
	Version     uint64    `json:"version"`

	Summary Summary `json:"summary"`

	// Points in ascending timestamp order
	Points []PointRow `json:"points"`

	// Gaps the renderer breaks the line across
	Gaps []GapRow `json:"gaps"`
}

// Summary aggregates the series by point origin.
type Summary struct {
	TotalPoints  int     `json:"totalPoints"`
	LedgerPoints int     `json:"ledgerPoints"` // points carrying a transaction identity
	SeedPoints   int     `json:"seedPoints"`
	SyncPoints   int     `json:"syncPoints"`
	LivePoints   int     `json:"livePoints"`
	FirstTS      int64   `json:"firstTs"`
	LastTS       int64   `json:"lastTs"`
	MinYes       float64 `json:"minYes"`
	MaxYes       float64 `json:"maxYes"`
	LastYes      float64 `json:"lastYes"`
}

// PointRow is one series point.
type PointRow struct {
	Timestamp  int64   `json:"t"`
	Yes        float64 `json:"yes"`
	No         float64 `json:"no"`
	Provenance string  `json:"provenance"`
}

// GapRow is an interval wider than the gap threshold.
type GapRow struct {
	From     int64 `json:"from"`
	To       int64 `json:"to"`
	Duration int64 `json:"durationSeconds"`
}
