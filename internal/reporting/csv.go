package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders column statistics as CSV string.
func RenderCSV(stats []ColumnStats) string {
	var sb strings.Builder

	// Header
	sb.WriteString("column,mean,std,min,max\n")

	// Rows
	for _, s := range stats {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f\n",
			s.Name, s.Mean, s.Std, s.Min, s.Max))
	}

	return sb.String()
}
