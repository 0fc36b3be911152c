package reporting

import (
	"fmt"
	"strings"

	"market-chart-lab/internal/price"
)

// RenderCSV renders series points as CSV string.
func RenderCSV(points []PointRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("timestamp,yes,no,provenance\n")

	// Rows
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s\n",
			p.Timestamp,
			price.Format6(p.Yes),
			price.Format6(p.No),
			p.Provenance,
		))
	}

	return sb.String()
}

// RenderGapsCSV renders gap rows as CSV string.
func RenderGapsCSV(gaps []GapRow) string {
	var sb strings.Builder
	sb.WriteString("from,to,duration_seconds\n")
	for _, g := range gaps {
		sb.WriteString(fmt.Sprintf("%d,%d,%d\n", g.From, g.To, g.Duration))
	}
	return sb.String()
}
