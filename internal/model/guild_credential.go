package model

import "time"

// GuildCredential maps a Discord guild to the Roblox universe and API key
// used for its restrictions. When no row exists the process-level config
// credentials are used instead.
type GuildCredential struct {
	GuildID    string `gorm:"primaryKey;column:discord_guild_id" json:"guild_id"`
	OwnerID    string `json:"owner_id"`
	APIKey     string `gorm:"column:encrypted_key" json:"api_key,omitempty"`
	UniverseID string `gorm:"not null" json:"universe_id"`
	// No gorm default tag: with one, a false value is omitted on insert and
	// the row silently comes back active. Callers set IsActive explicitly.
	IsActive bool `json:"is_active"`

	// Meta fields
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName - set the table name.
func (GuildCredential) TableName() string {
	return "server_configs"
}
