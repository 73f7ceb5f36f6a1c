package export

import (
	"fmt"
	"strings"
	"time"

	"gallery/internal/domain"
)

// ReportEntryName is the archive entry holding the failure report.
const ReportEntryName = "export-report.txt"

// RenderReport produces the plain-text failure report embedded in the
// archive when any asset could not be delivered.
func RenderReport(r domain.ExportReport) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Export report for %q\n", r.CollectionName)
	fmt.Fprintf(&b, "Generated: %s\n\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Delivered: %d file(s)\n", r.SuccessCount)
	fmt.Fprintf(&b, "Failed: %d file(s)\n\n", len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "  - %s: %s\n", f.Filename, f.Reason)
	}
	b.WriteString("\nPlease retry the failed items individually or contact support.\n")
	return []byte(b.String())
}
