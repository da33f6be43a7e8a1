package model

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// BanRecord is the durable audit row written for every applied ban.
type BanRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	GuildID         string       `gorm:"index"    json:"guild_id"`        // Discord guild the ban was issued from
	UniverseID      string       `json:"universe_id"`                     // Roblox universe the restriction targets
	Username        string       `gorm:"not null" json:"username"`        // Shared nickname
	RobloxUserID    string       `json:"roblox_user_id"`                  // Resolved Roblox ID, empty if not applied
	DiscordUserID   string       `json:"discord_user_id"`                 // Resolved Discord ID, empty if not applied
	Reason          string       `gorm:"not null" json:"reason"`          // Audit reason
	Platform        string       `gorm:"not null" json:"platform"`        // roblox, discord or both
	Moderator       string       `gorm:"not null" json:"moderator"`       // Who issued the ban
	DurationSeconds int64        `json:"duration_seconds"`                // -1 for permanent
	ExpiresAt       sql.NullTime `json:"expires_at"`                      // Null if indefinite
	BannedAt        time.Time    `gorm:"autoCreateTime" json:"banned_at"` // When the ban was applied

	// Meta fields
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"          json:"deleted_at"` // Soft delete.
}

// TableName - set the table name.
func (BanRecord) TableName() string {
	return "bans"
}
