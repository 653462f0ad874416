package platform

import (
	"context"
	"errors"
	"time"
)

var (
	// The platform declined the effect (missing permissions, role hierarchy, etc).
	ErrForbidden = errors.New("platform refused the request")
	// The referenced member, channel, message, or role does not exist (any more).
	ErrNotFound = errors.New("platform object not found")
	// The member does not accept private messages from the bot.
	ErrCannotMessage = errors.New("member does not accept private messages")
)

// Permission is a bitset of community-level capabilities, as held by a member in a specific channel.
type Permission uint64

const (
	PermissionViewChannel Permission = 1 << iota
	PermissionSendMessages
	PermissionManageMessages
	PermissionManageChannels
	PermissionKickMembers
	PermissionBanMembers
	PermissionModerateMembers
	PermissionAdministrator
)

var permissionNames = []struct {
	p    Permission
	name string
}{
	{PermissionViewChannel, "view-channel"},
	{PermissionSendMessages, "send-messages"},
	{PermissionManageMessages, "manage-messages"},
	{PermissionManageChannels, "manage-channels"},
	{PermissionKickMembers, "kick-members"},
	{PermissionBanMembers, "ban-members"},
	{PermissionModerateMembers, "moderate-members"},
	{PermissionAdministrator, "administrator"},
}

// Has reports whether every bit of `want` is set. Administrator implies all capabilities.
func (p Permission) Has(want Permission) bool {
	if p&PermissionAdministrator != 0 {
		return true
	}
	return p&want == want
}

func (p Permission) String() string {
	out := ""
	for _, pn := range permissionNames {
		if p&pn.p == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += pn.name
	}
	if out == "" {
		return "none"
	}
	return out
}

// Value of a per-channel, per-role permission override bit.
type OverrideValue int

const (
	// Explicit override removed; the channel falls back to the inherited default.
	OverrideInherit OverrideValue = iota
	OverrideDeny
	OverrideAllow
)

// Member of the community, as seen at the moment an event was delivered.
type Member struct {
	ID string
	// Human readable name, used in replies and audit entries
	Name string
	// Platform markup which pings the member
	Mention string
	// Role IDs currently held by the member
	Roles []string
	// Capabilities in the channel the event arrived on (only populated for command actors)
	Permissions Permission
	Bot         bool
}

func (m Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

type Role struct {
	ID   string
	Name string
}

type Channel struct {
	ID      string
	Name    string
	Mention string
}

type Message struct {
	ID        string
	ChannelID string
}

// Rich message body, used for audit entries.
type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
}

// Platform is the set of outbound calls the moderation engine makes against the chat platform.
//
// All methods act on the single community the implementation was configured for.
type Platform interface {
	SendMessage(ctx context.Context, channelID, text string) (*Message, error)
	SendEmbed(ctx context.Context, channelID string, embed Embed) (*Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	Ban(ctx context.Context, memberID, reason string) error
	Kick(ctx context.Context, memberID, reason string) error
	// Restricts the member from communicating until the given time.
	Timeout(ctx context.Context, memberID string, until time.Time, reason string) error
	AddRole(ctx context.Context, memberID, roleID, reason string) error

	// Current community role set.
	Roles(ctx context.Context) ([]Role, error)
	// Returns ErrNotFound if the channel does not exist.
	Channel(ctx context.Context, channelID string) (*Channel, error)
	// Resolves a member ID or name. Returns ErrNotFound if no member matches.
	ResolveMember(ctx context.Context, query string) (*Member, error)

	// Updates a single permission bit of the default role's override on a channel. Other bits are left untouched.
	SetPermissionOverride(ctx context.Context, channelID string, perm Permission, value OverrideValue) error
	// Deletes up to `limit` of the most recent messages in the channel, returning the number deleted.
	PurgeMessages(ctx context.Context, channelID string, limit int) (int, error)
	// Returns ErrCannotMessage if the member has private messages closed.
	SendPrivateMessage(ctx context.Context, memberID, text string) error
}
