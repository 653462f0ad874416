package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthmod/bailiff/moderation/command"
	"github.com/hearthmod/bailiff/moderation/event"
	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/bwmarrin/discordgo"
)

// upper bound on processing a single gateway event
const handlerTimeout = 2 * time.Minute

// Callbacks invoked for gateway events concerning the configured guild. Any may be nil.
type Handlers struct {
	MemberJoin     func(ctx context.Context, evt *event.MemberJoinEvent) error
	MemberLeave    func(ctx context.Context, evt *event.MemberLeaveEvent) error
	Command        func(ctx context.Context, evt *event.CommandEvent) error
	MessageDeleted func(messageID string)
}

// Subscribes the handlers to gateway events. Events from other guilds and from bots are ignored.
//
// discordgo runs each handler invocation on its own goroutine.
func (c *Client) Register(h Handlers) {
	if h.MemberJoin != nil {
		c.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
			if m.GuildID != c.GuildID || m.Member == nil || m.User == nil || m.User.Bot {
				return
			}
			evt := &event.MemberJoinEvent{
				Member:        convertMember(m.Member),
				CommunityName: c.guildName(),
			}
			c.dispatch(event.TypeMemberJoin, evt.Member.ID, func(ctx context.Context) error {
				return h.MemberJoin(ctx, evt)
			})
		})
	}
	if h.MemberLeave != nil {
		c.Session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberRemove) {
			if m.GuildID != c.GuildID || m.Member == nil || m.User == nil || m.User.Bot {
				return
			}
			roles, ok := c.members.take(m.User.ID)
			if !ok {
				c.Logger.Warn("no role snapshot for departing member, roles unknown", "member", m.User.ID)
			}
			evt := leaveEvent(m, roles)
			c.dispatch(event.TypeMemberLeave, evt.Member.ID, func(ctx context.Context) error {
				return h.MemberLeave(ctx, evt)
			})
		})
	}
	if h.Command != nil {
		c.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			c.handleCommand(m, h.Command)
		})
	}
	if h.MessageDeleted != nil {
		c.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDelete) {
			if m.GuildID != c.GuildID {
				return
			}
			h.MessageDeleted(m.ID)
		})
		c.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageDeleteBulk) {
			if m.GuildID != c.GuildID {
				return
			}
			for _, id := range m.Messages {
				h.MessageDeleted(id)
			}
		})
	}
}

func (c *Client) handleCommand(m *discordgo.MessageCreate, fn func(ctx context.Context, evt *event.CommandEvent) error) {
	if m.GuildID != c.GuildID || m.Author == nil || m.Author.Bot {
		return
	}
	if _, _, ok := command.Split(c.Prefix, m.Content); !ok {
		return
	}
	// acting on an unknown permission set would misreport the author as unauthorized
	perms, err := c.permissions(m.Author.ID, m.ChannelID)
	if err != nil {
		c.Logger.Error("failed to resolve command author permissions, dropping command", "err", err, "member", m.Author.ID, "channel", m.ChannelID)
		return
	}
	evt, ok := commandEvent(m.Message, c.Prefix, perms)
	if !ok {
		return
	}
	c.dispatch(event.TypeCommand, evt.Actor.ID, func(ctx context.Context) error {
		return fn(ctx, evt)
	})
}

func (c *Client) dispatch(evtType, memberID string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		c.Logger.Error("failed to process event", "err", err, "type", evtType, "member", memberID)
	}
}

// state cache first, then the REST API
func (c *Client) memberPermissions(memberID, channelID string) (platform.Permission, error) {
	p, err := c.Session.State.UserChannelPermissions(memberID, channelID)
	if err != nil {
		p, err = c.Session.UserChannelPermissions(memberID, channelID)
		if err != nil {
			return 0, mapError(err)
		}
	}
	return fromDiscordPermissions(p), nil
}

// The removal payload has no roles; they come from the snapshot taken from earlier gateway events.
func leaveEvent(m *discordgo.GuildMemberRemove, roles []string) *event.MemberLeaveEvent {
	member := convertMember(m.Member)
	member.Roles = append([]string{}, roles...)
	return &event.MemberLeaveEvent{Member: member}
}

func commandEvent(m *discordgo.Message, prefix string, perms platform.Permission) (*event.CommandEvent, bool) {
	kind, args, ok := command.Split(prefix, m.Content)
	if !ok || m.Author == nil {
		return nil, false
	}
	actor := platform.Member{
		ID:          m.Author.ID,
		Name:        displayName(m.Author),
		Mention:     m.Author.Mention(),
		Permissions: perms,
		Bot:         m.Author.Bot,
	}
	if m.Member != nil {
		actor.Roles = append([]string{}, m.Member.Roles...)
	}
	return &event.CommandEvent{
		Actor:     actor,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Kind:      kind,
		Args:      args,
	}, true
}

// Routes discordgo's internal logging into slog.
func SetLogger(logger *slog.Logger) {
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		level := slog.LevelDebug
		switch msgL {
		case discordgo.LogError:
			level = slog.LevelError
		case discordgo.LogWarning:
			level = slog.LevelWarn
		case discordgo.LogInformational:
			level = slog.LevelInfo
		}
		logger.Log(context.Background(), level, "discordgo", "detail", fmt.Sprintf(format, a...))
	}
}
