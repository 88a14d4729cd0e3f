package cleaning

import (
	"fmt"
	"strings"
)

const reportWidth = 60

// Report renders the per-file section of a cleaning report.
func (r *Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", r.Filename)
	fmt.Fprintf(&b, "  Dirty BEFORE: %.2f%% (%s)\n", r.Before.Score, r.Before.Severity)

	if r.Err != nil {
		fmt.Fprintf(&b, "  ERROR: cleaning aborted, no cleaned file was produced\n")
		fmt.Fprintf(&b, "    • %v\n", r.Err)
		b.WriteString(strings.Repeat("-", reportWidth) + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  Dirty AFTER : %.2f%%\n", r.After.Score)
	fmt.Fprintf(&b, "  Severity: %s\n", r.After.Severity)

	writeSection(&b, "Changes applied", r.Changes)
	writeSection(&b, "Remaining issues", r.RemainingIssues)
	if len(r.Warnings) > 0 {
		writeSection(&b, "Warnings", r.Warnings)
	}
	if r.Splits != nil {
		writeSection(&b, "Splits", []string{r.Splits.Summary()})
	}

	b.WriteString(strings.Repeat("-", reportWidth) + "\n")
	return b.String()
}

func writeSection(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "  %s:\n", title)
	if len(items) == 0 {
		b.WriteString("    • (none)\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "    • %s\n", it)
	}
}

// Report renders the consolidated report for a run.
func Report(results []Result) string {
	var b strings.Builder
	b.WriteString("Multi-File Cleaning Report\n")
	b.WriteString(strings.Repeat("=", reportWidth) + "\n\n")
	for i := range results {
		b.WriteString(results[i].Report())
		b.WriteString("\n")
	}
	return b.String()
}
