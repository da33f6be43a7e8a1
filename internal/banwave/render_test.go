package banwave

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neverhome/neverhome-bot/internal/model"
)

func TestRenderPreviewSmallWave(t *testing.T) {
	entries := waveEntries(3)
	entries[1].Duration = 3600

	preview := RenderPreview(entries)

	require.Contains(t, preview, "**Total Entries:** 3")
	require.Contains(t, preview, "**Entries:**")
	require.Contains(t, preview, "• user01: spam (permanent)")
	require.Contains(t, preview, "• user02: spam (3600s)")
	require.NotContains(t, preview, "more entries")
}

func TestRenderPreviewLargeWave(t *testing.T) {
	preview := RenderPreview(waveEntries(12))

	require.Contains(t, preview, "**Total Entries:** 12")
	require.Contains(t, preview, "**First 5 entries:**")
	require.Contains(t, preview, "... and 7 more entries")
	require.Contains(t, preview, "• user05: spam (permanent)")
	require.NotContains(t, preview, "user06")
}

func TestRenderSummaryNoFailures(t *testing.T) {
	summary := model.WaveSummary{
		Successful: []model.BanResult{{Username: "alice", RowNum: 1}},
		Failed:     []model.BanResult{},
	}

	rendered := RenderSummary(summary)
	require.Contains(t, rendered, "**Successful:** 1")
	require.Contains(t, rendered, "**Failed:** 0")
	require.NotContains(t, rendered, "Failures")
}

func TestRenderSummaryCapsFailuresAtTen(t *testing.T) {
	summary := model.WaveSummary{Successful: []model.BanResult{}}
	for i := 1; i <= 13; i++ {
		summary.Failed = append(summary.Failed, model.BanResult{
			Username:    fmt.Sprintf("user%02d", i),
			RowNum:      i,
			RobloxError: "HTTP 500: boom",
		})
	}

	rendered := RenderSummary(summary)

	require.Contains(t, rendered, "**Failed:** 13")
	require.Contains(t, rendered, "• Row 10 (user10): Roblox: HTTP 500: boom")
	require.NotContains(t, rendered, "Row 11")
	require.Contains(t, rendered, "... and 3 more failures")
	require.Equal(t, failureDetailLimit, strings.Count(rendered, "• Row"))
}

func TestRenderParseErrorsCapped(t *testing.T) {
	var parseErrors []string
	for i := 1; i <= 14; i++ {
		parseErrors = append(parseErrors, fmt.Sprintf("Row %d: Missing reason for user 'u%d'", i, i))
	}

	rendered := RenderParseErrors(parseErrors)

	require.Contains(t, rendered, "Row 10:")
	require.NotContains(t, rendered, "Row 11:")
	require.Contains(t, rendered, "... and 4 more errors")
}

func TestRenderParseErrorsShortList(t *testing.T) {
	rendered := RenderParseErrors([]string{"Row 2: Missing username/nickname"})
	require.Contains(t, rendered, "Row 2: Missing username/nickname")
	require.NotContains(t, rendered, "more errors")
}
