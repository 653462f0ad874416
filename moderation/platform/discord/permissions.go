package discord

import (
	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

var permissionBits = []struct {
	discord int64
	perm    platform.Permission
}{
	{discordgo.PermissionViewChannel, platform.PermissionViewChannel},
	{discordgo.PermissionSendMessages, platform.PermissionSendMessages},
	{discordgo.PermissionManageMessages, platform.PermissionManageMessages},
	{discordgo.PermissionManageChannels, platform.PermissionManageChannels},
	{discordgo.PermissionKickMembers, platform.PermissionKickMembers},
	{discordgo.PermissionBanMembers, platform.PermissionBanMembers},
	{discordgo.PermissionModerateMembers, platform.PermissionModerateMembers},
	{discordgo.PermissionAdministrator, platform.PermissionAdministrator},
}

// Converts a Discord permission integer into the capabilities the moderation engine cares about. Unrelated bits are dropped.
func fromDiscordPermissions(p int64) platform.Permission {
	var out platform.Permission
	for _, b := range permissionBits {
		if p&b.discord != 0 {
			out |= b.perm
		}
	}
	return out
}

func toDiscordPermissions(p platform.Permission) int64 {
	var out int64
	for _, b := range permissionBits {
		if p&b.perm != 0 {
			out |= b.discord
		}
	}
	return out
}

// Returns the updated allow and deny sets of a permission overwrite, with only the given bits changed.
func applyOverride(allow, deny, bits int64, value platform.OverrideValue) (int64, int64) {
	allow &^= bits
	deny &^= bits
	switch value {
	case platform.OverrideAllow:
		allow |= bits
	case platform.OverrideDeny:
		deny |= bits
	}
	return allow, deny
}

// Finds the overwrite for the default ("@everyone") role, whose ID is the guild ID.
func defaultRoleOverwrite(ch *discordgo.Channel, guildID string) (allow, deny int64) {
	for _, ow := range ch.PermissionOverwrites {
		if ow.Type == discordgo.PermissionOverwriteTypeRole && ow.ID == guildID {
			return ow.Allow, ow.Deny
		}
	}
	return 0, 0
}
