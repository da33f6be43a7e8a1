package model

import "fmt"

// BanResult records the outcome of one processed BanEntry. A side not
// requested by the ban type keeps its zero value and is excluded from
// failure aggregation.
type BanResult struct {
	Username string
	RowNum   int

	RobloxSuccess bool
	RobloxError   string
	RobloxUserID  string

	DiscordSuccess bool
	DiscordError   string
	DiscordMember  string
}

// Succeeded reports the overall outcome: the AND of the sides actually
// attempted under the given ban type.
func (r BanResult) Succeeded(banType BanType) bool {
	switch banType {
	case BanTypeBoth:
		return r.RobloxSuccess && r.DiscordSuccess
	case BanTypeRoblox:
		return r.RobloxSuccess
	case BanTypeDiscord:
		return r.DiscordSuccess
	default:
		return false
	}
}

// FailureDetail itemizes the per-side errors of a failed result.
func (r BanResult) FailureDetail() string {
	detail := ""
	if r.RobloxError != "" {
		detail = "Roblox: " + r.RobloxError
	}
	if r.DiscordError != "" {
		if detail != "" {
			detail += "; "
		}
		detail += "Discord: " + r.DiscordError
	}

	return detail
}

// WaveSummary aggregates the results of one wave invocation, in input order.
type WaveSummary struct {
	Successful []BanResult
	Failed     []BanResult
}

// SuccessCount - number of fully successful rows.
func (s WaveSummary) SuccessCount() int {
	return len(s.Successful)
}

// FailureCount - number of failed rows.
func (s WaveSummary) FailureCount() int {
	return len(s.Failed)
}

// DurationLabel renders a restriction duration for moderators.
func DurationLabel(seconds int64) string {
	if seconds == PermanentDuration {
		return "permanent"
	}

	return fmt.Sprintf("%ds", seconds)
}
