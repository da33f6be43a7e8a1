package discord

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/neverhome/neverhome-bot/internal/banwave"
	"github.com/neverhome/neverhome-bot/internal/model"
)

const messageChunkSize = 1900

func commandDefinitions() []*discordgo.ApplicationCommand {
	dmPermission := false

	return []*discordgo.ApplicationCommand{
		{
			Name:         "gameban",
			Description:  "Apply a Cloud v2 game-join restriction (ban) for a Roblox user ID",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "roblox_user_id",
					Description: "Roblox user ID to restrict from joining",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Duration in seconds (-1 for permanent)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "display_reason",
					Description: "Reason shown to players",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "private_reason",
					Description: "Moderator-only reason (not shown to players)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "exclude_alt_accounts",
					Description: "Also apply to detected alt accounts",
				},
			},
		},
		{
			Name:         "discordban",
			Description:  "Ban a Discord member from this server",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "target",
					Description: "Member to ban",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Reason for the ban",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delete_message_seconds",
					Description: "Delete message history in seconds (0-604800)",
				},
			},
		},
		{
			Name:         "banboth",
			Description:  "Ban a user on Roblox and Discord by shared nickname",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "nickname",
					Description: "Shared nickname (same on Roblox and Discord)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "duration",
					Description: "Roblox ban duration in seconds (-1 for permanent)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "display_reason",
					Description: "Reason shown to Roblox players",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "private_reason",
					Description: "Moderator-only reason for Roblox",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "exclude_alt_accounts",
					Description: "Also apply to detected alt accounts",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "delete_message_seconds",
					Description: "Delete Discord message history in seconds (0-604800)",
				},
			},
		},
		{
			Name:         "banwave",
			Description:  "Perform a ban wave using a CSV file",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "csv_file",
					Description: "CSV file with ban information (username, reason, duration, etc.)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "ban_type",
					Description: "Type of ban to perform",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "roblox", Value: "roblox"},
						{Name: "discord", Value: "discord"},
						{Name: "both", Value: "both"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "dry_run",
					Description: "Preview the bans without executing them",
				},
			},
		},
	}
}

func (d *Discord) registerCommands(s *discordgo.Session) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, "", commandDefinitions())

	return err
}

func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "gameban":
		d.handleGameBan(s, i)
	case "discordban":
		d.handleDiscordBan(s, i)
	case "banboth":
		d.handleBanBoth(s, i)
	case "banwave":
		d.handleBanWave(s, i)
	}
}

func (d *Discord) handleGameBan(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !d.deferEphemeral(s, i) {
		return
	}

	options := optionMap(i)
	userID := options.integer("roblox_user_id")
	duration := options.integer("duration")
	displayReason := strings.TrimSpace(options.str("display_reason"))
	privateReason := strings.TrimSpace(options.str("private_reason"))
	excludeAlts := options.boolean("exclude_alt_accounts")

	d.logger.Info("/gameban invoked",
		slog.String("moderator", moderatorName(i)),
		slog.Int64("roblox_user_id", userID),
		slog.Int64("duration", duration),
		slog.Bool("exclude_alts", excludeAlts))

	if displayReason == "" || privateReason == "" {
		d.followUp(s, i, "Both display_reason and private_reason are required and cannot be empty.")
		return
	}

	if !d.requireGuild(s, i) {
		return
	}

	if !d.isAdmin(i.Member) && !d.hasModeratorRole(s, i.GuildID, i.Member) {
		d.followUp(s, i, "You need Admin or Mod/Supermod permissions to use this command.")
		d.logger.Info("/gameban denied", slog.String("moderator", moderatorName(i)))

		return
	}

	client := d.robloxFor(i.GuildID)
	status, body := client.ApplyRestriction(
		d.ctx,
		userID,
		duration,
		displayReason,
		fmt.Sprintf("%s (via Discord by %s)", privateReason, moderatorName(i)),
		excludeAlts,
	)

	if status < 200 || status >= 300 {
		d.followUp(s, i, fmt.Sprintf("❌ Restriction failed (HTTP %d). Details: %s", status, body))
		d.logger.Warn("Roblox restriction failed",
			slog.Int64("roblox_user_id", userID),
			slog.Int("status", status),
			slog.String("body", body))

		return
	}

	humanDuration := "forever"
	if duration != model.PermanentDuration {
		humanDuration = fmt.Sprintf("%d seconds", duration)
	}
	d.followUp(s, i, fmt.Sprintf("✅ Applied game-join restriction to Roblox user ID %d for %s.", userID, humanDuration))

	d.logger.Info("Roblox restriction applied",
		slog.Int64("roblox_user_id", userID),
		slog.String("display_reason", displayReason),
		slog.String("moderator", moderatorName(i)))
	d.audit(&model.BanRecord{
		GuildID:         i.GuildID,
		UniverseID:      client.UniverseID(),
		Username:        strconv.FormatInt(userID, 10),
		RobloxUserID:    strconv.FormatInt(userID, 10),
		Reason:          displayReason,
		Platform:        string(model.BanTypeRoblox),
		Moderator:       moderatorName(i),
		DurationSeconds: duration,
		ExpiresAt:       expiresAt(duration),
	})
	d.metrics.LogBanEvent("ban", string(model.BanTypeRoblox), map[string]interface{}{
		"duration": duration,
	})
}

func (d *Discord) handleDiscordBan(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !d.deferEphemeral(s, i) {
		return
	}

	options := optionMap(i)
	reason := strings.TrimSpace(options.str("reason"))
	deleteSeconds := int(options.integer("delete_message_seconds"))

	if !d.requireGuild(s, i) {
		return
	}

	target := options.user(s, i)
	if target == nil {
		d.followUp(s, i, "❌ Could not resolve the target member.")
		return
	}

	d.logger.Info("/discordban invoked",
		slog.String("moderator", moderatorName(i)),
		slog.String("target", target.Username))

	if !d.isAdmin(i.Member) && !d.canBanMembers(i.Member) {
		d.followUp(s, i, "You need Admin or Ban Members permission to use this command.")
		d.logger.Info("/discordban denied", slog.String("moderator", moderatorName(i)))

		return
	}

	if reason == "" {
		d.followUp(s, i, "Reason is required and cannot be empty.")
		return
	}

	directory := newGuildDirectory(s, i.GuildID, d.logger)

	// DM before the ban so the target can still receive it. Failures are
	// expected (closed DMs, blocked bot) and ignored.
	dm := fmt.Sprintf(
		"You have been banned from '%s'.\nReason: %s\nYou can appeal here: %s",
		directory.Name(), reason, d.config.Discord.AppealURL,
	)
	if err := directory.DirectMessage(d.ctx, target.ID, dm); err != nil {
		d.logger.Debug("Ban notification not delivered",
			slog.String("target", target.Username),
			slog.String("error", err.Error()))
	}

	banReason := fmt.Sprintf("%s (by %s via Discord)", reason, moderatorName(i))
	if err := directory.BanMember(d.ctx, target.ID, banReason, deleteSeconds); err != nil {
		if isMissingPermissions(err) {
			d.followUp(s, i, "I don't have permission to ban that member.")
			d.logger.Warn("Ban failed, missing permissions", slog.String("target", target.Username))
		} else {
			d.followUp(s, i, fmt.Sprintf("❌ Failed to ban member: %v", err))
			d.logger.Error("Ban failed",
				slog.String("target", target.Username),
				slog.String("error", err.Error()))
		}

		return
	}

	d.followUp(s, i, fmt.Sprintf("✅ Banned %s from this server.", target.Mention()))

	d.logger.Info("Discord member banned",
		slog.String("target", target.Username),
		slog.String("reason", reason),
		slog.String("moderator", moderatorName(i)))
	d.audit(&model.BanRecord{
		GuildID:         i.GuildID,
		Username:        target.Username,
		DiscordUserID:   target.ID,
		Reason:          reason,
		Platform:        string(model.BanTypeDiscord),
		Moderator:       moderatorName(i),
		DurationSeconds: model.PermanentDuration,
	})
	d.metrics.LogBanEvent("ban", string(model.BanTypeDiscord), nil)
}

func (d *Discord) handleBanBoth(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !d.deferEphemeral(s, i) {
		return
	}

	options := optionMap(i)
	nickname := strings.TrimSpace(options.str("nickname"))
	duration := options.integer("duration")
	displayReason := strings.TrimSpace(options.str("display_reason"))
	privateReason := strings.TrimSpace(options.str("private_reason"))
	excludeAlts := options.boolean("exclude_alt_accounts")
	deleteSeconds := int(options.integer("delete_message_seconds"))

	d.logger.Info("/banboth invoked",
		slog.String("moderator", moderatorName(i)),
		slog.String("nickname", nickname),
		slog.Int64("duration", duration),
		slog.Bool("exclude_alts", excludeAlts))

	if !d.requireGuild(s, i) {
		return
	}

	if !d.isAdmin(i.Member) && !d.hasModeratorRole(s, i.GuildID, i.Member) {
		d.followUp(s, i, "You need Admin or Mod/Supermod permissions to use this command.")
		return
	}

	if displayReason == "" || privateReason == "" {
		d.followUp(s, i, "Both display_reason and private_reason are required and cannot be empty.")
		return
	}

	client := d.robloxFor(i.GuildID)

	robloxUserID, ok := client.ResolveUserID(d.ctx, nickname)
	if !ok {
		d.followUp(s, i, fmt.Sprintf("Could not resolve Roblox username for nickname '%s'.", nickname))
		return
	}

	directory := newGuildDirectory(s, i.GuildID, d.logger)

	member, found := directory.FindMemberByNickname(d.ctx, nickname)
	if !found {
		d.followUp(s, i, fmt.Sprintf("Could not find Discord member with nickname '%s'.", nickname))
		return
	}

	status, body := client.ApplyRestriction(
		d.ctx,
		robloxUserID,
		duration,
		displayReason,
		fmt.Sprintf("%s (via Discord by %s)", privateReason, moderatorName(i)),
		excludeAlts,
	)
	if status < 200 || status >= 300 {
		d.followUp(s, i, fmt.Sprintf("❌ Roblox restriction failed (HTTP %d). Details: %s", status, body))
		d.logger.Warn("Roblox restriction failed",
			slog.String("nickname", nickname),
			slog.Int64("roblox_user_id", robloxUserID),
			slog.Int("status", status),
			slog.String("body", body))

		return
	}

	dm := fmt.Sprintf(
		"You have been banned from '%s' and restricted from the game.\nReason: %s\nYou can appeal here: %s",
		directory.Name(), displayReason, d.config.Discord.AppealURL,
	)
	if err := directory.DirectMessage(d.ctx, member.ID, dm); err != nil {
		d.logger.Debug("Ban notification not delivered",
			slog.String("member", member.Name),
			slog.String("error", err.Error()))
	}

	banReason := fmt.Sprintf("%s (by %s via Discord)", displayReason, moderatorName(i))
	if err := directory.BanMember(d.ctx, member.ID, banReason, deleteSeconds); err != nil {
		if isMissingPermissions(err) {
			d.followUp(s, i, "Roblox ban applied, but I don't have permission to ban that Discord member.")
			d.logger.Warn("Discord ban failed, missing permissions",
				slog.String("nickname", nickname),
				slog.Int64("roblox_user_id", robloxUserID))
		} else {
			d.followUp(s, i, fmt.Sprintf("Roblox ban applied, but Discord ban failed: %v", err))
			d.logger.Error("Discord ban failed",
				slog.String("nickname", nickname),
				slog.Int64("roblox_user_id", robloxUserID),
				slog.String("error", err.Error()))
		}

		return
	}

	d.followUp(s, i, fmt.Sprintf("✅ Banned '%s' on Roblox (userId %d) and Discord.", nickname, robloxUserID))

	d.logger.Info("Banned on both platforms",
		slog.String("nickname", nickname),
		slog.Int64("roblox_user_id", robloxUserID),
		slog.String("discord_member", member.Name),
		slog.String("display_reason", displayReason),
		slog.String("moderator", moderatorName(i)))
	d.audit(&model.BanRecord{
		GuildID:         i.GuildID,
		UniverseID:      client.UniverseID(),
		Username:        nickname,
		RobloxUserID:    strconv.FormatInt(robloxUserID, 10),
		DiscordUserID:   member.ID,
		Reason:          displayReason,
		Platform:        string(model.BanTypeBoth),
		Moderator:       moderatorName(i),
		DurationSeconds: duration,
		ExpiresAt:       expiresAt(duration),
	})
	d.metrics.LogBanEvent("ban", string(model.BanTypeBoth), map[string]interface{}{
		"duration": duration,
	})
}

func (d *Discord) handleBanWave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !d.deferEphemeral(s, i) {
		return
	}

	options := optionMap(i)

	banTypeValue := options.str("ban_type")
	if banTypeValue == "" {
		banTypeValue = string(model.BanTypeBoth)
	}
	dryRun := options.boolean("dry_run")

	banType, err := model.ParseBanType(banTypeValue)
	if err != nil {
		d.followUp(s, i, "❌ Invalid ban_type. Must be 'roblox', 'discord', or 'both'.")
		return
	}

	if !d.requireGuild(s, i) {
		return
	}

	attachment := options.attachment(i)
	if attachment == nil {
		d.followUp(s, i, "❌ Please attach a CSV file.")
		return
	}

	d.logger.Info("/banwave invoked",
		slog.String("moderator", moderatorName(i)),
		slog.String("file", attachment.Filename),
		slog.String("ban_type", string(banType)),
		slog.Bool("dry_run", dryRun))

	if !d.isAdmin(i.Member) && !d.hasModeratorRole(s, i.GuildID, i.Member) {
		d.followUp(s, i, "You need Admin or Mod/Supermod permissions to use this command.")
		d.logger.Info("/banwave denied", slog.String("moderator", moderatorName(i)))

		return
	}

	if !strings.HasSuffix(strings.ToLower(attachment.Filename), ".csv") {
		d.followUp(s, i, "❌ Please upload a CSV file (.csv extension).")
		return
	}

	if int64(attachment.Size) > d.config.Wave.MaxFileSize {
		d.followUp(s, i, "❌ CSV file is too large. Maximum size is 1MB.")
		return
	}

	raw, err := d.downloadAttachment(attachment)
	if err != nil {
		d.followUp(s, i, fmt.Sprintf("❌ Unexpected error processing ban wave: %v", err))
		d.logger.Error("Attachment download failed",
			slog.String("file", attachment.Filename),
			slog.String("error", err.Error()))

		return
	}

	if !utf8.Valid(raw) {
		d.followUp(s, i, "❌ Could not decode CSV file. Please ensure it's saved as UTF-8.")
		return
	}

	entries, parseErrors := d.parser.Parse(string(raw))

	// Any row error aborts the wave; the valid rows are never executed on
	// their own.
	if len(parseErrors) > 0 {
		d.followUp(s, i, banwave.RenderParseErrors(parseErrors))
		return
	}

	if len(entries) == 0 {
		d.followUp(s, i, "❌ No valid entries found in CSV file.")
		return
	}

	mode := "EXECUTION MODE"
	if dryRun {
		mode = "DRY RUN"
	}
	preview := fmt.Sprintf("📋 **Ban Wave Preview** (%s)\n**File:** %s\n**Ban Type:** %s\n%s",
		mode, attachment.Filename, banType, banwave.RenderPreview(entries))
	d.followUp(s, i, preview)

	if dryRun {
		d.logger.Info("Ban wave dry run completed", slog.Int("entries", len(entries)))
		return
	}

	d.followUp(s, i, fmt.Sprintf("🚀 Starting ban wave execution for %d entries...", len(entries)))

	directory := newGuildDirectory(s, i.GuildID, d.logger)
	executor := banwave.NewExecutor(
		d.robloxFor(i.GuildID),
		directory,
		d.logger,
		directory.Name(),
		d.config.Discord.AppealURL,
	)
	runner := banwave.NewRunner(executor, d.logger, d.metrics, d.config.Wave.RowDelay, d.config.Wave.ProgressEvery)

	progress := func(current, total int, entry model.BanEntry) {
		d.followUp(s, i, fmt.Sprintf("⏳ Processing entry %d/%d: %s", current, total, entry.Username))
	}

	summary := runner.Run(d.ctx, entries, moderatorName(i), banType, progress)

	d.followUp(s, i, banwave.RenderSummary(summary))

	universeID := d.robloxFor(i.GuildID).UniverseID()
	byRow := make(map[int]model.BanEntry, len(entries))
	for _, entry := range entries {
		byRow[entry.RowNum] = entry
	}

	for _, result := range summary.Successful {
		entry := byRow[result.RowNum]
		d.audit(&model.BanRecord{
			GuildID:         i.GuildID,
			UniverseID:      universeID,
			Username:        result.Username,
			RobloxUserID:    result.RobloxUserID,
			Reason:          entry.Reason,
			Platform:        string(banType),
			Moderator:       moderatorName(i),
			DurationSeconds: entry.Duration,
			ExpiresAt:       expiresAt(entry.Duration),
		})
	}
}

// downloadAttachment fetches the uploaded CSV, refusing bodies over the
// configured size even when the reported attachment size lied.
func (d *Discord) downloadAttachment(attachment *discordgo.MessageAttachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(d.ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment fetch returned HTTP %d", resp.StatusCode)
	}

	limit := d.config.Wave.MaxFileSize
	if limit <= 0 {
		limit = 1 << 20
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("attachment exceeds %d bytes", limit)
	}

	return raw, nil
}

// deferEphemeral acknowledges the interaction so follow-ups can take longer
// than the 3-second response window. A failed defer makes every follow-up
// fail too, so the handler stops there.
func (d *Discord) deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		d.logger.Error("Interaction defer failed", slog.String("error", err.Error()))
		return false
	}

	return true
}

// requireGuild rejects DM invocations.
func (d *Discord) requireGuild(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		d.followUp(s, i, "Use this command in a server.")
		return false
	}

	return true
}

// followUp sends an ephemeral follow-up, split below the platform message
// size limit.
func (d *Discord) followUp(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	for _, chunk := range splitMessage(content, messageChunkSize) {
		_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: chunk,
			Flags:   discordgo.MessageFlagsEphemeral,
		})
		if err != nil {
			d.logger.Warn("Follow-up send failed", slog.String("error", err.Error()))
		}
	}
}

func (d *Discord) audit(record *model.BanRecord) {
	if d.storage == nil {
		return
	}

	if err := d.storage.LogBan(record); err != nil {
		d.logger.Warn("Ban audit write failed",
			slog.String("username", record.Username),
			slog.String("error", err.Error()))
	}
}

func moderatorName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}

	return "unknown"
}

func isMissingPermissions(err error) bool {
	return errors.Is(err, banwave.ErrMissingPermissions)
}

func expiresAt(durationSeconds int64) sql.NullTime {
	if durationSeconds <= 0 {
		return sql.NullTime{}
	}

	return sql.NullTime{
		Time:  time.Now().UTC().Add(time.Duration(durationSeconds) * time.Second),
		Valid: true,
	}
}

// options is the flattened option list of one interaction.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(i *discordgo.InteractionCreate) options {
	data := i.ApplicationCommandData()

	mapped := make(options, len(data.Options))
	for _, option := range data.Options {
		mapped[option.Name] = option
	}

	return mapped
}

func (o options) str(name string) string {
	if option, ok := o[name]; ok {
		return option.StringValue()
	}

	return ""
}

func (o options) integer(name string) int64 {
	if option, ok := o[name]; ok {
		return option.IntValue()
	}

	return 0
}

func (o options) boolean(name string) bool {
	if option, ok := o[name]; ok {
		return option.BoolValue()
	}

	return false
}

func (o options) user(s *discordgo.Session, i *discordgo.InteractionCreate) *discordgo.User {
	option, ok := o["target"]
	if !ok {
		return nil
	}

	return option.UserValue(s)
}

func (o options) attachment(i *discordgo.InteractionCreate) *discordgo.MessageAttachment {
	option, ok := o["csv_file"]
	if !ok {
		return nil
	}

	id, ok := option.Value.(string)
	if !ok {
		return nil
	}

	resolved := i.ApplicationCommandData().Resolved
	if resolved == nil {
		return nil
	}

	return resolved.Attachments[id]
}
