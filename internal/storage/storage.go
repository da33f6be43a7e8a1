package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"
	config "github.com/neverhome/neverhome-bot/internal/config"
	"github.com/neverhome/neverhome-bot/internal/model"
	storage_logger "github.com/neverhome/neverhome-bot/internal/storage/storage_logger"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const credentialCacheTTL = 5 * time.Minute

type Storage struct {
	db    *gorm.DB
	cache *ristretto.Cache[string, *model.GuildCredential]
}

func New(config *config.Config, logger *slog.Logger) (*Storage, error) {
	dialector, err := createDialector(&config.Database)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(
		dialector,
		&gorm.Config{
			NamingStrategy: schema.NamingStrategy{},
			Logger:         storage_logger.NewGormSlogLogger(logger),
			NowFunc:        func() time.Time { return time.Now().UTC() },
		})
	if err != nil {
		return nil, err
	}

	// Migrations
	const timeoutSeconds = 15 * 60
	ctx, cancel := context.WithTimeout(context.Background(), timeoutSeconds*time.Second)
	defer cancel()
	if err := db.WithContext(ctx).AutoMigrate(
		&model.BanRecord{},
		&model.GuildCredential{},
	); err != nil {
		return nil, err
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *model.GuildCredential]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("credential cache init: %w", err)
	}

	return &Storage{db: db, cache: cache}, nil
}

// Close - close the database connection
func (s *Storage) Close() error {
	s.cache.Close()

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// LogBan - append a ban to the audit table
func (s *Storage) LogBan(record *model.BanRecord) error {
	return s.db.Create(record).Error
}

// BansByGuild - get the audit history for a guild, newest first
func (s *Storage) BansByGuild(guildID string, limit int) ([]model.BanRecord, error) {
	var records []model.BanRecord
	if err := s.db.
		Where("guild_id = ?", guildID).
		Order("banned_at DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GuildCredentials - get the active Roblox credentials for a guild, or
// gorm.ErrRecordNotFound when the guild has none. Reads go through a
// short-lived cache since every wave row may consult them.
func (s *Storage) GuildCredentials(guildID string) (*model.GuildCredential, error) {
	if credential, ok := s.cache.Get(guildID); ok {
		return credential, nil
	}

	var credential model.GuildCredential
	if err := s.db.
		Where("discord_guild_id = ? AND is_active = ?", guildID, true).
		First(&credential).Error; err != nil {
		return nil, err
	}

	s.cache.SetWithTTL(guildID, &credential, 1, credentialCacheTTL)

	return &credential, nil
}

// UpsertGuildCredentials - insert or update the credentials for a guild
func (s *Storage) UpsertGuildCredentials(credential *model.GuildCredential) error {
	if err := s.db.Save(credential).Error; err != nil {
		return err
	}

	s.cache.Del(credential.GuildID)

	return nil
}
