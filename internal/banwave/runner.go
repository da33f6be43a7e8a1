package banwave

import (
	"context"
	"log/slog"
	"time"

	"github.com/neverhome/neverhome-bot/internal/metrics"
	"github.com/neverhome/neverhome-bot/internal/model"
)

// EntryProcessor applies one entry; Executor is the production implementation.
type EntryProcessor interface {
	Process(ctx context.Context, entry model.BanEntry, moderator string, banType model.BanType) model.BanResult
}

// ProgressFunc receives a notification before every progressEvery-th entry
// and unconditionally before the final one. current is 1-based.
type ProgressFunc func(current, total int, entry model.BanEntry)

// Runner drives the executor across all entries strictly in parse order,
// one at a time, pausing between rows to stay under the remote platforms'
// rate limits. Row N+1 never starts before row N's result is recorded.
type Runner struct {
	processor     EntryProcessor
	logger        *slog.Logger
	metrics       metrics.Metrics
	rowDelay      time.Duration
	progressEvery int
}

func NewRunner(processor EntryProcessor, logger *slog.Logger, metricsLogger metrics.Metrics, rowDelay time.Duration, progressEvery int) *Runner {
	if progressEvery <= 0 {
		progressEvery = 10
	}

	return &Runner{
		processor:     processor,
		logger:        logger,
		metrics:       metricsLogger,
		rowDelay:      rowDelay,
		progressEvery: progressEvery,
	}
}

// Run processes every entry and partitions the outcomes. Cancelling the
// context stops the wave before the next row; results recorded so far are
// returned as a partial summary.
func (r *Runner) Run(ctx context.Context, entries []model.BanEntry, moderator string, banType model.BanType, progress ProgressFunc) model.WaveSummary {
	summary := model.WaveSummary{
		Successful: []model.BanResult{},
		Failed:     []model.BanResult{},
	}
	total := len(entries)

	r.logger.Info("Ban wave initiated",
		slog.String("moderator", moderator),
		slog.String("ban_type", string(banType)),
		slog.Int("entries", total))
	r.metrics.LogEvent("wave_started", map[string]string{"ban_type": string(banType)}, map[string]interface{}{
		"entries": total,
	})

	for _, entry := range entries {
		r.logger.Info("Ban wave queue",
			slog.Int("row", entry.RowNum),
			slog.String("username", entry.Username),
			slog.String("reason", entry.Reason),
			slog.String("duration", entry.DurationLabel()),
			slog.Bool("exclude_alts", entry.ExcludeAltAccounts))
	}

	for i, entry := range entries {
		select {
		case <-ctx.Done():
			r.logger.Warn("Ban wave cancelled",
				slog.Int("processed", i),
				slog.Int("total", total))
			return summary
		default:
		}

		if progress != nil && ((i+1)%r.progressEvery == 0 || i == total-1) {
			progress(i+1, total, entry)
		}

		result := r.processor.Process(ctx, entry, moderator, banType)

		if result.Succeeded(banType) {
			summary.Successful = append(summary.Successful, result)
			r.logger.Info("Ban wave success",
				slog.String("username", result.Username),
				slog.Int("row", result.RowNum),
				slog.String("reason", entry.Reason),
				slog.String("duration", entry.DurationLabel()),
				slog.String("roblox_user_id", orNA(result.RobloxUserID)),
				slog.String("discord_member", orNA(result.DiscordMember)))
		} else {
			summary.Failed = append(summary.Failed, result)
			r.logger.Warn("Ban wave failure",
				slog.String("username", result.Username),
				slog.Int("row", result.RowNum),
				slog.String("roblox_error", orNA(result.RobloxError)),
				slog.String("discord_error", orNA(result.DiscordError)))
		}

		r.metrics.LogBanEvent("wave_row", string(banType), map[string]interface{}{
			"row":     result.RowNum,
			"success": result.Succeeded(banType),
		})

		// Pause after every row, success or not, to avoid tripping the
		// remote rate limits.
		if r.rowDelay > 0 {
			select {
			case <-ctx.Done():
				r.logger.Warn("Ban wave cancelled",
					slog.Int("processed", i+1),
					slog.Int("total", total))
				return summary
			case <-time.After(r.rowDelay):
			}
		}
	}

	r.logger.Info("Ban wave completed",
		slog.String("moderator", moderator),
		slog.Int("successful", summary.SuccessCount()),
		slog.Int("failed", summary.FailureCount()))
	r.metrics.LogEvent("wave_completed", map[string]string{"ban_type": string(banType)}, map[string]interface{}{
		"successful": summary.SuccessCount(),
		"failed":     summary.FailureCount(),
	})

	return summary
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}

	return value
}
