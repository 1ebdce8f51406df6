package report

import (
	"fmt"
	"strings"
)

// MarkdownTitle is the top-level heading of the Markdown report.
const MarkdownTitle = "## Coverage Report"

// MarkdownReport renders the table as one section per file, each holding a
// Line | Function | Coverage table in record order.
func MarkdownReport(table *Table) string {
	lines := []string{MarkdownTitle}

	for _, fc := range table.files {
		lines = append(lines, fmt.Sprintf("### %s\n", fc.File))
		lines = append(lines, "| Line | Function | Coverage |")
		lines = append(lines, "|---|---|---|")

		for _, rec := range fc.Records {
			lines = append(lines, fmt.Sprintf("| %s | %s | %s |", rec.Line, rec.Function, rec.Percentage))
		}

		lines = append(lines, "\n")
	}

	return strings.Join(lines, "\n")
}
