package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/neverhome/neverhome-bot/internal/banwave"
)

const (
	maxDeleteMessageSeconds = 604800 // 7 days, the platform maximum
	memberFetchPageSize     = 1000
)

// guildDirectory adapts one guild of a discordgo session to the executor's
// GuildDirectory contract.
type guildDirectory struct {
	session *discordgo.Session
	guildID string
	logger  *slog.Logger
}

var _ banwave.GuildDirectory = (*guildDirectory)(nil)

func newGuildDirectory(session *discordgo.Session, guildID string, logger *slog.Logger) *guildDirectory {
	return &guildDirectory{
		session: session,
		guildID: guildID,
		logger:  logger,
	}
}

// MemberByID looks the member up in the state cache. Non-numeric IDs are
// rejected so the caller falls back to nickname search.
func (g *guildDirectory) MemberByID(id string) (banwave.Member, bool) {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return banwave.Member{}, false
	}

	member, err := g.session.State.Member(g.guildID, id)
	if err != nil {
		return banwave.Member{}, false
	}

	return memberHandle(member), true
}

// FindMemberByNickname searches the cached members in one pass, then falls
// back to a full paginated fetch. A fetch error means not found.
func (g *guildDirectory) FindMemberByNickname(_ context.Context, nickname string) (banwave.Member, bool) {
	guild, err := g.session.State.Guild(g.guildID)
	if err == nil {
		for _, member := range guild.Members {
			if matchesNickname(member, nickname) {
				return memberHandle(member), true
			}
		}
	}

	after := ""
	for {
		page, err := g.session.GuildMembers(g.guildID, after, memberFetchPageSize)
		if err != nil {
			g.logger.Warn("Guild member fetch failed",
				slog.String("guild", g.guildID),
				slog.String("error", err.Error()))
			return banwave.Member{}, false
		}
		if len(page) == 0 {
			break
		}

		for _, member := range page {
			if matchesNickname(member, nickname) {
				return memberHandle(member), true
			}
		}

		after = page[len(page)-1].User.ID
		if len(page) < memberFetchPageSize {
			break
		}
	}

	return banwave.Member{}, false
}

// DirectMessage opens (or reuses) the DM channel and sends the text.
func (g *guildDirectory) DirectMessage(_ context.Context, userID, text string) error {
	channel, err := g.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}

	_, err = g.session.ChannelMessageSend(channel.ID, text)

	return err
}

// BanMember bans with a message-deletion window. The window is clamped to
// [0, 604800] seconds and converted to the whole days the platform accepts.
func (g *guildDirectory) BanMember(_ context.Context, userID, reason string, deleteMessageSeconds int) error {
	days := clampDeleteSeconds(deleteMessageSeconds) / 86400

	err := g.session.GuildBanCreateWithReason(g.guildID, userID, reason, days)
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", banwave.ErrMissingPermissions, err)
	}

	return err
}

// Name returns the guild name from the state cache, falling back to the ID.
func (g *guildDirectory) Name() string {
	guild, err := g.session.State.Guild(g.guildID)
	if err != nil || guild.Name == "" {
		return g.guildID
	}

	return guild.Name
}

// matchesNickname compares the guild nick, the global display name and the
// account name case-insensitively.
func matchesNickname(member *discordgo.Member, nickname string) bool {
	if member == nil || member.User == nil {
		return false
	}

	lower := strings.ToLower(nickname)

	return strings.ToLower(member.Nick) == lower ||
		strings.ToLower(member.User.GlobalName) == lower ||
		strings.ToLower(member.User.Username) == lower
}

func memberHandle(member *discordgo.Member) banwave.Member {
	name := member.User.Username
	if member.Nick != "" {
		name = fmt.Sprintf("%s (%s)", member.Nick, member.User.Username)
	}

	return banwave.Member{
		ID:   member.User.ID,
		Name: name,
	}
}

func clampDeleteSeconds(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if seconds > maxDeleteMessageSeconds {
		return maxDeleteMessageSeconds
	}

	return seconds
}

// splitMessage cuts a message into chunks below the platform's size limit,
// preferring newline boundaries and never cutting inside a multi-byte rune.
func splitMessage(message string, maxLen int) []string {
	if len(message) <= maxLen {
		return []string{message}
	}

	chunks := make([]string, 0, len(message)/maxLen+1)
	for len(message) > maxLen {
		cut := strings.LastIndexByte(message[:maxLen], '\n')
		if cut <= 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(message[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
		}
		chunks = append(chunks, message[:cut])
		message = strings.TrimPrefix(message[cut:], "\n")
	}
	if message != "" {
		chunks = append(chunks, message)
	}

	return chunks
}
