package banwave

import (
	"fmt"
	"strings"

	"github.com/neverhome/neverhome-bot/internal/model"
)

const (
	previewLimit       = 5
	failureDetailLimit = 10
	parseErrorLimit    = 10
)

// RenderPreview lists the wave contents for a dry run or pre-execution
// confirmation: the full listing for up to previewLimit entries, otherwise
// the first previewLimit plus a remainder count.
func RenderPreview(entries []model.BanEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Total Entries:** %d\n\n", len(entries))

	if len(entries) <= previewLimit {
		b.WriteString("**Entries:**\n")
		for _, entry := range entries {
			fmt.Fprintf(&b, "• %s: %s (%s)\n", entry.Username, entry.Reason, entry.DurationLabel())
		}
	} else {
		fmt.Fprintf(&b, "**First %d entries:**\n", previewLimit)
		for _, entry := range entries[:previewLimit] {
			fmt.Fprintf(&b, "• %s: %s (%s)\n", entry.Username, entry.Reason, entry.DurationLabel())
		}
		fmt.Fprintf(&b, "... and %d more entries\n", len(entries)-previewLimit)
	}

	return b.String()
}

// RenderSummary builds the final wave report: counts, then the first
// failureDetailLimit failures itemized per row with an explicit remainder
// suffix. This cap is independent of the parse-error cap.
func RenderSummary(summary model.WaveSummary) string {
	var b strings.Builder

	b.WriteString("✅ **Ban Wave Complete**\n")
	fmt.Fprintf(&b, "**Successful:** %d\n", summary.SuccessCount())
	fmt.Fprintf(&b, "**Failed:** %d\n", summary.FailureCount())

	if summary.FailureCount() == 0 {
		return b.String()
	}

	b.WriteString("\n❌ **Failures:**\n")

	shown := summary.Failed
	if len(shown) > failureDetailLimit {
		shown = shown[:failureDetailLimit]
	}
	for _, failure := range shown {
		fmt.Fprintf(&b, "• Row %d (%s): %s\n", failure.RowNum, failure.Username, failure.FailureDetail())
	}

	if summary.FailureCount() > failureDetailLimit {
		fmt.Fprintf(&b, "... and %d more failures\n", summary.FailureCount()-failureDetailLimit)
	}

	return b.String()
}

// RenderParseErrors caps the parse-error listing the same way the failure
// summary is capped, but over its own independent list.
func RenderParseErrors(parseErrors []string) string {
	var b strings.Builder

	b.WriteString("❌ CSV parsing errors:\n")

	shown := parseErrors
	if len(shown) > parseErrorLimit {
		shown = shown[:parseErrorLimit]
	}
	b.WriteString(strings.Join(shown, "\n"))

	if len(parseErrors) > parseErrorLimit {
		fmt.Fprintf(&b, "\n... and %d more errors", len(parseErrors)-parseErrorLimit)
	}

	return b.String()
}
