package banwave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neverhome/neverhome-bot/internal/model"
)

type appliedRestriction struct {
	UserID        int64
	Duration      int64
	DisplayReason string
	PrivateReason string
	ExcludeAlts   bool
}

type fakeGame struct {
	resolveID   int64
	resolveOK   bool
	resolved    []string
	applyStatus int
	applyBody   string
	applied     []appliedRestriction
}

func (g *fakeGame) ResolveUserID(_ context.Context, username string) (int64, bool) {
	g.resolved = append(g.resolved, username)
	return g.resolveID, g.resolveOK
}

func (g *fakeGame) ApplyRestriction(_ context.Context, userID, duration int64, display, private string, excludeAlts bool) (int, string) {
	g.applied = append(g.applied, appliedRestriction{
		UserID:        userID,
		Duration:      duration,
		DisplayReason: display,
		PrivateReason: private,
		ExcludeAlts:   excludeAlts,
	})
	return g.applyStatus, g.applyBody
}

type banCall struct {
	UserID        string
	Reason        string
	DeleteSeconds int
}

type fakeGuild struct {
	byID       map[string]Member
	byNickname map[string]Member
	dmErr      error
	banErr     error
	dms        []string
	bans       []banCall
}

func (g *fakeGuild) MemberByID(id string) (Member, bool) {
	member, ok := g.byID[id]
	return member, ok
}

func (g *fakeGuild) FindMemberByNickname(_ context.Context, nickname string) (Member, bool) {
	member, ok := g.byNickname[nickname]
	return member, ok
}

func (g *fakeGuild) DirectMessage(_ context.Context, userID, text string) error {
	g.dms = append(g.dms, text)
	return g.dmErr
}

func (g *fakeGuild) BanMember(_ context.Context, userID, reason string, deleteSeconds int) error {
	if g.banErr != nil {
		return g.banErr
	}
	g.bans = append(g.bans, banCall{UserID: userID, Reason: reason, DeleteSeconds: deleteSeconds})
	return nil
}

func newTestExecutor(game *fakeGame, guild *fakeGuild) *Executor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExecutor(game, guild, logger, "Test Guild", "https://example.com/appeal")
}

func testEntry() model.BanEntry {
	return model.BanEntry{
		Username: "alice",
		Reason:   "spamming",
		Duration: -1,
		RowNum:   2,
	}
}

func TestProcessBothSidesSucceed(t *testing.T) {
	game := &fakeGame{resolveID: 123, resolveOK: true, applyStatus: 200}
	guild := &fakeGuild{byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}}}
	executor := newTestExecutor(game, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeBoth)

	require.True(t, result.RobloxSuccess)
	require.Empty(t, result.RobloxError)
	require.Equal(t, "123", result.RobloxUserID)
	require.True(t, result.DiscordSuccess)
	require.Empty(t, result.DiscordError)
	require.Equal(t, "alice#0", result.DiscordMember)
	require.True(t, result.Succeeded(model.BanTypeBoth))

	require.Len(t, game.applied, 1)
	require.Equal(t, "spamming (via Discord ban wave by mod)", game.applied[0].PrivateReason)
	require.Len(t, guild.bans, 1)
	require.Equal(t, "spamming (by mod via ban wave)", guild.bans[0].Reason)
}

func TestProcessRobloxFailsDiscordSucceeds(t *testing.T) {
	game := &fakeGame{resolveID: 123, resolveOK: true, applyStatus: 500, applyBody: "boom"}
	guild := &fakeGuild{byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}}}
	executor := newTestExecutor(game, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeBoth)

	require.False(t, result.RobloxSuccess)
	require.Equal(t, "HTTP 500: boom", result.RobloxError)
	require.True(t, result.DiscordSuccess, "discord side must be unaffected by the roblox failure")
	require.False(t, result.Succeeded(model.BanTypeBoth))
}

func TestProcessRobloxResolutionFailure(t *testing.T) {
	game := &fakeGame{resolveOK: false}
	guild := &fakeGuild{}
	executor := newTestExecutor(game, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeRoblox)

	require.Equal(t, "Could not resolve Roblox user ID for 'alice'", result.RobloxError)
	require.Empty(t, game.applied, "a failed resolution must skip the restriction call")
}

func TestProcessPreferSuppliedRobloxID(t *testing.T) {
	game := &fakeGame{applyStatus: 200}
	executor := newTestExecutor(game, &fakeGuild{})

	entry := testEntry()
	entry.RobloxID = "777"

	result := executor.Process(context.Background(), entry, "mod", model.BanTypeRoblox)

	require.True(t, result.RobloxSuccess)
	require.Equal(t, "777", result.RobloxUserID)
	require.Empty(t, game.resolved, "a supplied ID must skip nickname resolution")
	require.Equal(t, int64(777), game.applied[0].UserID)
}

func TestProcessInvalidSuppliedRobloxID(t *testing.T) {
	game := &fakeGame{}
	executor := newTestExecutor(game, &fakeGuild{})

	entry := testEntry()
	entry.RobloxID = "not-a-number"

	result := executor.Process(context.Background(), entry, "mod", model.BanTypeRoblox)

	require.False(t, result.RobloxSuccess)
	require.Contains(t, result.RobloxError, "not-a-number")
	require.Empty(t, game.applied)
}

func TestProcessDiscordIDFallsBackToNickname(t *testing.T) {
	guild := &fakeGuild{
		byID:       map[string]Member{},
		byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}},
	}
	executor := newTestExecutor(&fakeGame{}, guild)

	entry := testEntry()
	entry.DiscordID = "999" // not cached

	result := executor.Process(context.Background(), entry, "mod", model.BanTypeDiscord)

	require.True(t, result.DiscordSuccess)
	require.Equal(t, "456", guild.bans[0].UserID)
}

func TestProcessDiscordMemberNotFound(t *testing.T) {
	guild := &fakeGuild{}
	executor := newTestExecutor(&fakeGame{}, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeDiscord)

	require.Equal(t, "Could not find Discord member 'alice'", result.DiscordError)
	require.Empty(t, guild.bans)
}

func TestProcessDMFailureDoesNotBlockBan(t *testing.T) {
	guild := &fakeGuild{
		byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}},
		dmErr:      errors.New("cannot send messages to this user"),
	}
	executor := newTestExecutor(&fakeGame{}, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeDiscord)

	require.True(t, result.DiscordSuccess)
	require.Len(t, guild.bans, 1)
}

func TestProcessDMSentBeforeBan(t *testing.T) {
	guild := &fakeGuild{byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}}}
	executor := newTestExecutor(&fakeGame{}, guild)

	executor.Process(context.Background(), testEntry(), "mod", model.BanTypeDiscord)

	require.Len(t, guild.dms, 1)
	require.Contains(t, guild.dms[0], "Test Guild")
	require.Contains(t, guild.dms[0], "spamming")
	require.Contains(t, guild.dms[0], "https://example.com/appeal")
}

func TestProcessDiscordMissingPermissions(t *testing.T) {
	guild := &fakeGuild{
		byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}},
		banErr:     fmt.Errorf("ban denied: %w", ErrMissingPermissions),
	}
	executor := newTestExecutor(&fakeGame{}, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeDiscord)

	require.False(t, result.DiscordSuccess)
	require.Equal(t, "Missing permissions to ban member", result.DiscordError)
}

func TestProcessDiscordGenericBanError(t *testing.T) {
	guild := &fakeGuild{
		byNickname: map[string]Member{"alice": {ID: "456", Name: "alice#0"}},
		banErr:     errors.New("rate limited"),
	}
	executor := newTestExecutor(&fakeGame{}, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeDiscord)

	require.False(t, result.DiscordSuccess)
	require.Equal(t, "rate limited", result.DiscordError)
}

func TestProcessUnrequestedSideStaysDefault(t *testing.T) {
	game := &fakeGame{resolveID: 123, resolveOK: true, applyStatus: 200}
	guild := &fakeGuild{}
	executor := newTestExecutor(game, guild)

	result := executor.Process(context.Background(), testEntry(), "mod", model.BanTypeRoblox)

	require.True(t, result.RobloxSuccess)
	require.False(t, result.DiscordSuccess)
	require.Empty(t, result.DiscordError)
	require.Empty(t, result.DiscordMember)
	require.True(t, result.Succeeded(model.BanTypeRoblox), "the unattempted side must not count as a failure")
}
