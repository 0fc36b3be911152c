package reporting

import (
	"fmt"
	"strings"
	"time"

	"market-chart-lab/internal/price"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Market Series Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Market: `%s` | Session: `%s` | Version: %d\n\n", r.MarketID, r.SessionID, r.Version))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Points | %d |\n", r.Summary.TotalPoints))
	sb.WriteString(fmt.Sprintf("| Ledger Points | %d |\n", r.Summary.LedgerPoints))
	sb.WriteString(fmt.Sprintf("| Seed Points | %d |\n", r.Summary.SeedPoints))
	sb.WriteString(fmt.Sprintf("| Sync Points | %d |\n", r.Summary.SyncPoints))
	sb.WriteString(fmt.Sprintf("| Live Points | %d |\n", r.Summary.LivePoints))
	if r.Summary.TotalPoints > 0 {
		sb.WriteString(fmt.Sprintf("| First Timestamp | %d |\n", r.Summary.FirstTS))
		sb.WriteString(fmt.Sprintf("| Last Timestamp | %d |\n", r.Summary.LastTS))
		sb.WriteString(fmt.Sprintf("| Yes Range | %s - %s |\n", price.Format6(r.Summary.MinYes), price.Format6(r.Summary.MaxYes)))
		sb.WriteString(fmt.Sprintf("| Last Yes | %s |\n", price.Format6(r.Summary.LastYes)))
	}
	sb.WriteString("\n")

	// Gaps
	sb.WriteString("## Gaps\n\n")
	if len(r.Gaps) == 0 {
		sb.WriteString("No gaps.\n\n")
	} else {
		sb.WriteString("| From | To | Duration (s) |\n")
		sb.WriteString("|------|----|--------------|\n")
		for _, g := range r.Gaps {
			sb.WriteString(fmt.Sprintf("| %d | %d | %d |\n", g.From, g.To, g.Duration))
		}
		sb.WriteString("\n")
	}

	// Points
	sb.WriteString("## Points\n\n")
	sb.WriteString("| Timestamp | Yes | No | Provenance |\n")
	sb.WriteString("|-----------|-----|----|------------|\n")
	for _, p := range r.Points {
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n",
			p.Timestamp, price.Format6(p.Yes), price.Format6(p.No), p.Provenance))
	}

	return sb.String()
}
