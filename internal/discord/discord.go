// Library repository: https://github.com/bwmarrin/discordgo

package discord

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/neverhome/neverhome-bot/internal/banwave"
	config "github.com/neverhome/neverhome-bot/internal/config"
	log "github.com/neverhome/neverhome-bot/internal/log"
	"github.com/neverhome/neverhome-bot/internal/metrics"
	"github.com/neverhome/neverhome-bot/internal/roblox"
	"github.com/neverhome/neverhome-bot/internal/storage"
)

// Discord owns the gateway session, the slash commands and the log channel
// binding. All moderation state lives in the injected collaborators.
type Discord struct {
	session    *discordgo.Session
	config     *config.Config
	logger     *slog.Logger
	sink       *log.ChannelSink
	storage    *storage.Storage
	roblox     *roblox.Client
	metrics    metrics.Metrics
	httpClient *http.Client
	parser     *banwave.Parser

	// ctx bounds every in-flight command; cancelling it stops running waves
	// before their next row.
	ctx context.Context
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	sink *log.ChannelSink,
	db *storage.Storage,
	robloxClient *roblox.Client,
	metricsLogger metrics.Metrics,
	httpClient *http.Client,
) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	d := &Discord{
		session:    session,
		config:     cfg,
		logger:     logger,
		sink:       sink,
		storage:    db,
		roblox:     robloxClient,
		metrics:    metricsLogger,
		httpClient: httpClient,
		parser:     banwave.NewParser(),
		ctx:        context.Background(),
	}

	session.AddHandler(d.onReady)
	session.AddHandler(d.onGuildCreate)
	session.AddHandler(d.onInteractionCreate)

	return d, nil
}

// Start opens the gateway connection. ctx bounds long-running command work
// such as ban waves.
func (d *Discord) Start(ctx context.Context) error {
	d.ctx = ctx

	return d.session.Open()
}

// Stop closes the gateway connection.
func (d *Discord) Stop() error {
	return d.session.Close()
}

// Status returns the gateway status for the health endpoint.
func (d *Discord) Status() (bool, string) {
	if d.session.State == nil || d.session.State.User == nil {
		return false, "not connected"
	}

	return true, d.session.State.User.Username
}

func (d *Discord) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	if err := d.registerCommands(s); err != nil {
		d.logger.Error("Failed to register slash commands", slog.String("error", err.Error()))
		return
	}

	d.logger.Info("Logged in", slog.String("user", s.State.User.Username))
}

// onGuildCreate binds the log sink to the first text channel matching the
// configured name. The sink buffers until then.
func (d *Discord) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	if d.sink == nil {
		return
	}

	for _, channel := range event.Channels {
		if channel.Type != discordgo.ChannelTypeGuildText || channel.Name != d.config.Discord.LogChannel {
			continue
		}

		channelID := channel.ID
		d.sink.Bind(func(text string) error {
			_, err := s.ChannelMessageSend(channelID, text)
			return err
		})
		d.logger.Info("Logging bound to channel",
			slog.String("channel", channel.Name),
			slog.String("guild", event.Name))

		return
	}

	d.logger.Warn("No log channel found in guild",
		slog.String("channel", d.config.Discord.LogChannel),
		slog.String("guild", event.Name))
}

// robloxFor returns the Roblox client for a guild: the per-guild credentials
// from storage when present, the process-level client otherwise.
func (d *Discord) robloxFor(guildID string) *roblox.Client {
	if d.storage == nil {
		return d.roblox
	}

	credential, err := d.storage.GuildCredentials(guildID)
	if err != nil {
		return d.roblox
	}

	return d.roblox.WithCredentials(roblox.Credentials{
		APIKey:     credential.APIKey,
		UniverseID: credential.UniverseID,
	})
}
