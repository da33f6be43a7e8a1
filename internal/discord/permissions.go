package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// isAdmin accepts the configured admin role when one is set, the
// Administrator permission bit otherwise.
func (d *Discord) isAdmin(member *discordgo.Member) bool {
	if roleID := d.config.Discord.AdminRoleID; roleID != "" {
		return hasRole(member, roleID)
	}

	return member.Permissions&discordgo.PermissionAdministrator != 0
}

// hasModeratorRole checks the configured mod/supermod role IDs. With none
// configured it falls back to matching the role names "mod" and "supermod".
func (d *Discord) hasModeratorRole(s *discordgo.Session, guildID string, member *discordgo.Member) bool {
	modID := d.config.Discord.ModRoleID
	supermodID := d.config.Discord.SupermodRoleID

	if modID != "" || supermodID != "" {
		return (modID != "" && hasRole(member, modID)) ||
			(supermodID != "" && hasRole(member, supermodID))
	}

	names := roleNames(s, guildID, member)

	return names["mod"] || names["supermod"]
}

func (d *Discord) canBanMembers(member *discordgo.Member) bool {
	return member.Permissions&discordgo.PermissionBanMembers != 0
}

func hasRole(member *discordgo.Member, roleID string) bool {
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}

	return false
}

// roleNames maps the member's roles to their lowercased names using the
// state cache, fetching the guild role list on a miss.
func roleNames(s *discordgo.Session, guildID string, member *discordgo.Member) map[string]bool {
	var roles []*discordgo.Role

	if guild, err := s.State.Guild(guildID); err == nil && len(guild.Roles) > 0 {
		roles = guild.Roles
	} else if fetched, err := s.GuildRoles(guildID); err == nil {
		roles = fetched
	}

	byID := make(map[string]string, len(roles))
	for _, role := range roles {
		byID[role.ID] = strings.ToLower(role.Name)
	}

	names := make(map[string]bool, len(member.Roles))
	for _, roleID := range member.Roles {
		if name, ok := byID[roleID]; ok {
			names[name] = true
		}
	}

	return names
}
