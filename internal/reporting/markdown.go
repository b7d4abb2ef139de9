package reporting

import (
	"fmt"
	"strings"
	"time"

	"market-feature-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Panel Report: %s\n\n", r.Panel))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Shape
	sb.WriteString("## Shape\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Rows))
	sb.WriteString(fmt.Sprintf("| Columns | %d |\n", r.Columns))
	sb.WriteString(fmt.Sprintf("| First Date | %s |\n", r.First.Format(domain.DateLayout)))
	sb.WriteString(fmt.Sprintf("| Last Date | %s |\n", r.Last.Format(domain.DateLayout)))
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", len(r.Instruments)))
	sb.WriteString("\n")

	if len(r.Instruments) > 0 {
		sb.WriteString(fmt.Sprintf("Instruments: %s\n\n", strings.Join(r.Instruments, ", ")))
	}

	// Column statistics
	sb.WriteString("## Column Statistics\n\n")
	sb.WriteString("| Column | Mean | Std | Min | Max |\n")
	sb.WriteString("|--------|------|-----|-----|-----|\n")
	for _, s := range r.Stats {
		sb.WriteString(fmt.Sprintf("| %s | %.6g | %.6g | %.6g | %.6g |\n",
			s.Name, s.Mean, s.Std, s.Min, s.Max))
	}
	sb.WriteString("\n")

	return sb.String()
}
