package model

// PermanentDuration marks a restriction with no expiry.
const PermanentDuration int64 = -1

// BanEntry is one validated row of a ban wave CSV. Entries are immutable once
// parsed; rows that fail validation never become entries.
type BanEntry struct {
	Username           string // shared nickname key across platforms, non-empty
	RobloxID           string // pre-supplied Roblox user ID, resolved by nickname when empty
	DiscordID          string // pre-supplied Discord user ID, resolved by nickname when empty
	Reason             string // display and audit reason, non-empty
	Duration           int64  // seconds, PermanentDuration for no expiry
	ExcludeAltAccounts bool
	RowNum             int // 1-based source record number, for error attribution
}

// DurationLabel renders the duration the way it is shown to moderators.
func (e BanEntry) DurationLabel() string {
	return DurationLabel(e.Duration)
}
