package banwave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/neverhome/neverhome-bot/internal/model"
)

// ErrMissingPermissions is returned by GuildDirectory implementations when
// the platform denies the ban for lack of rights. The executor records it as
// a distinct, human-readable failure.
var ErrMissingPermissions = errors.New("missing permissions")

// GamePlatform is the game-side surface the executor needs: nickname
// resolution and restriction application.
type GamePlatform interface {
	// ResolveUserID returns (0, false) for every failure mode alike.
	ResolveUserID(ctx context.Context, username string) (int64, bool)
	// ApplyRestriction returns the HTTP status (0 for transport failures)
	// and the response body or error message.
	ApplyRestriction(ctx context.Context, userID int64, durationSeconds int64, displayReason, privateReason string, excludeAltAccounts bool) (int, string)
}

// Member identifies a resolved chat-platform member.
type Member struct {
	ID   string // snowflake
	Name string // displayable handle
}

// GuildDirectory is the chat-side surface the executor needs. Ban errors
// caused by insufficient rights must wrap ErrMissingPermissions.
type GuildDirectory interface {
	// MemberByID looks the member up in the guild's member cache; a
	// non-numeric ID or a cache miss yields false.
	MemberByID(id string) (Member, bool)
	// FindMemberByNickname matches nickname, display name and account name
	// case-insensitively, falling back to a full member fetch on a cache
	// miss. Fetch errors are treated as not found.
	FindMemberByNickname(ctx context.Context, nickname string) (Member, bool)
	// DirectMessage is best-effort; the executor discards its error.
	DirectMessage(ctx context.Context, userID string, text string) error
	// BanMember bans with a message-deletion window in seconds, clamped by
	// the implementation to [0, 604800].
	BanMember(ctx context.Context, userID string, reason string, deleteMessageSeconds int) error
}

// Executor applies one BanEntry to the requested platform sides. The two
// sides are independent: a failure on one never prevents or rolls back the
// other, and no error escapes as anything but a recorded string.
type Executor struct {
	game      GamePlatform
	guild     GuildDirectory
	logger    *slog.Logger
	guildName string
	appealURL string
}

func NewExecutor(game GamePlatform, guild GuildDirectory, logger *slog.Logger, guildName, appealURL string) *Executor {
	return &Executor{
		game:      game,
		guild:     guild,
		logger:    logger,
		guildName: guildName,
		appealURL: appealURL,
	}
}

// Process applies the entry and returns the per-side outcome.
func (e *Executor) Process(ctx context.Context, entry model.BanEntry, moderator string, banType model.BanType) model.BanResult {
	result := model.BanResult{
		Username: entry.Username,
		RowNum:   entry.RowNum,
	}

	if banType.IncludesRoblox() {
		e.processRoblox(ctx, entry, moderator, &result)
	}

	if banType.IncludesDiscord() {
		e.processDiscord(ctx, entry, moderator, &result)
	}

	return result
}

func (e *Executor) processRoblox(ctx context.Context, entry model.BanEntry, moderator string, result *model.BanResult) {
	var userID int64

	if entry.RobloxID != "" {
		parsed, err := strconv.ParseInt(entry.RobloxID, 10, 64)
		if err != nil {
			result.RobloxError = fmt.Sprintf("Invalid Roblox ID '%s' for user '%s'", entry.RobloxID, entry.Username)
			return
		}
		userID = parsed
	} else {
		resolved, ok := e.game.ResolveUserID(ctx, entry.Username)
		if !ok {
			result.RobloxError = fmt.Sprintf("Could not resolve Roblox user ID for '%s'", entry.Username)
			return
		}
		userID = resolved
	}

	result.RobloxUserID = strconv.FormatInt(userID, 10)

	status, body := e.game.ApplyRestriction(
		ctx,
		userID,
		entry.Duration,
		entry.Reason,
		fmt.Sprintf("%s (via Discord ban wave by %s)", entry.Reason, moderator),
		entry.ExcludeAltAccounts,
	)

	if status >= 200 && status < 300 {
		result.RobloxSuccess = true
	} else {
		result.RobloxError = fmt.Sprintf("HTTP %d: %s", status, body)
	}
}

func (e *Executor) processDiscord(ctx context.Context, entry model.BanEntry, moderator string, result *model.BanResult) {
	var (
		member Member
		found  bool
	)

	// Prefer the pre-supplied ID; fall back to nickname search on absence
	// or when the cache lookup misses.
	if entry.DiscordID != "" {
		member, found = e.guild.MemberByID(entry.DiscordID)
	}
	if !found {
		member, found = e.guild.FindMemberByNickname(ctx, entry.Username)
	}

	if !found {
		result.DiscordError = fmt.Sprintf("Could not find Discord member '%s'", entry.Username)
		return
	}

	result.DiscordMember = member.Name

	// DM before the ban so the user can still receive it. Delivery failure
	// is discarded by contract: it must never block or fail the ban.
	dm := fmt.Sprintf(
		"You have been banned from '%s'.\nReason: %s\nYou can appeal here: %s",
		e.guildName, entry.Reason, e.appealURL,
	)
	if err := e.guild.DirectMessage(ctx, member.ID, dm); err != nil {
		e.logger.Debug("Ban notification not delivered",
			slog.String("member", member.Name),
			slog.String("error", err.Error()))
	}

	err := e.guild.BanMember(ctx, member.ID, fmt.Sprintf("%s (by %s via ban wave)", entry.Reason, moderator), 0)
	switch {
	case err == nil:
		result.DiscordSuccess = true
	case errors.Is(err, ErrMissingPermissions):
		result.DiscordError = "Missing permissions to ban member"
	default:
		result.DiscordError = err.Error()
	}
}
