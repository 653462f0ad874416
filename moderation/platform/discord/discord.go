// Discord implementation of the moderation platform, built on discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// messages older than this can not be bulk-deleted
const bulkDeleteMaxAge = 14*24*time.Hour - time.Minute

// discord caps both message listing and bulk deletion at 100
const pageSize = 100

type Config struct {
	Token   string
	GuildID string
	// Command prefix, eg "!"
	Prefix string
	// max per-second rate of single message deletions, used when purging messages too old for bulk deletion
	DeleteRateLimit float64
	Logger          *slog.Logger
}

// Client connects to the gateway as a bot and acts on a single guild.
type Client struct {
	Session *discordgo.Session
	GuildID string
	Prefix  string
	Logger  *slog.Logger

	members       *memberRoles
	permissions   func(memberID, channelID string) (platform.Permission, error)
	deleteLimiter *rate.Limiter
	now           func() time.Time
}

var _ platform.Platform = (*Client)(nil)

func NewClient(config Config) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	if config.GuildID == "" {
		return nil, fmt.Errorf("discord guild ID is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.DeleteRateLimit <= 0 {
		config.DeleteRateLimit = 2
	}
	sess, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	sess.Client = &http.Client{
		Timeout:   20 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	sess.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	sess.State.TrackMembers = true
	sess.State.TrackRoles = true
	sess.State.TrackChannels = true

	c := &Client{
		Session:       sess,
		GuildID:       config.GuildID,
		Prefix:        config.Prefix,
		Logger:        logger.With("system", "discord"),
		members:       newMemberRoles(config.GuildID),
		deleteLimiter: rate.NewLimiter(rate.Limit(config.DeleteRateLimit), 1),
		now:           time.Now,
	}
	c.permissions = c.memberPermissions
	c.members.register(sess)
	sess.AddHandler(c.handleReady)
	return c, nil
}

// Connects to the gateway and blocks until the context is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway connection: %w", err)
	}
	<-ctx.Done()
	c.Logger.Info("closing discord gateway connection")
	return c.Session.Close()
}

func (c *Client) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	found := false
	for _, g := range r.Guilds {
		if g.ID == c.GuildID {
			found = true
		}
	}
	c.Logger.Info("discord gateway ready", "user", displayName(r.User), "guilds", len(r.Guilds), "configured_guild_present", found)
	if !found {
		c.Logger.Warn("bot is not a member of the configured guild", "guild", c.GuildID)
		return
	}
	// the full member list arrives as chunks, seeding the role snapshot used on leave
	if err := s.RequestGuildMembers(c.GuildID, "", 0, "", false); err != nil {
		c.Logger.Error("failed to request guild members", "err", err, "guild", c.GuildID)
	}
}

func (c *Client) guildName() string {
	g, err := c.Session.State.Guild(c.GuildID)
	if err != nil || g.Name == "" {
		return "the server"
	}
	return g.Name
}

func (c *Client) SendMessage(ctx context.Context, channelID, text string) (*platform.Message, error) {
	msg, err := c.Session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return &platform.Message{ID: msg.ID, ChannelID: msg.ChannelID}, nil
}

func (c *Client) SendEmbed(ctx context.Context, channelID string, embed platform.Embed) (*platform.Message, error) {
	me := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       embed.Color,
		Timestamp:   c.now().UTC().Format(time.RFC3339),
	}
	if embed.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: embed.Footer}
	}
	msg, err := c.Session.ChannelMessageSendEmbed(channelID, me, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return &platform.Message{ID: msg.ID, ChannelID: msg.ChannelID}, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapError(c.Session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (c *Client) Ban(ctx context.Context, memberID, reason string) error {
	return mapError(c.Session.GuildBanCreateWithReason(c.GuildID, memberID, reason, 0, discordgo.WithContext(ctx)))
}

func (c *Client) Kick(ctx context.Context, memberID, reason string) error {
	return mapError(c.Session.GuildMemberDeleteWithReason(c.GuildID, memberID, reason, discordgo.WithContext(ctx)))
}

func (c *Client) Timeout(ctx context.Context, memberID string, until time.Time, reason string) error {
	return mapError(c.Session.GuildMemberTimeout(c.GuildID, memberID, &until, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)))
}

func (c *Client) AddRole(ctx context.Context, memberID, roleID, reason string) error {
	return mapError(c.Session.GuildMemberRoleAdd(c.GuildID, memberID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason)))
}

func (c *Client) Roles(ctx context.Context) ([]platform.Role, error) {
	roles, err := c.Session.GuildRoles(c.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]platform.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, platform.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

// fetches from the state cache first, falling back to the REST API
func (c *Client) channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if ch, err := c.Session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	ch, err := c.Session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return ch, nil
}

func (c *Client) Channel(ctx context.Context, channelID string) (*platform.Channel, error) {
	ch, err := c.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch.GuildID != "" && ch.GuildID != c.GuildID {
		return nil, platform.ErrNotFound
	}
	return &platform.Channel{ID: ch.ID, Name: ch.Name, Mention: ch.Mention()}, nil
}

func (c *Client) ResolveMember(ctx context.Context, query string) (*platform.Member, error) {
	if isSnowflake(query) {
		m, err := c.Session.State.Member(c.GuildID, query)
		if err != nil {
			m, err = c.Session.GuildMember(c.GuildID, query, discordgo.WithContext(ctx))
		}
		if err == nil {
			out := convertMember(m)
			return &out, nil
		}
		if err = mapError(err); !errors.Is(err, platform.ErrNotFound) {
			return nil, err
		}
		// fall through: the query might be a numeric name
	}

	if g, err := c.Session.State.Guild(c.GuildID); err == nil {
		c.Session.State.RLock()
		var found *discordgo.Member
		for _, m := range g.Members {
			if memberMatches(m, query) {
				found = m
				break
			}
		}
		c.Session.State.RUnlock()
		if found != nil {
			out := convertMember(found)
			return &out, nil
		}
	}

	// search is a prefix match; only accept exact (case-insensitive) names
	candidates, err := c.Session.GuildMembersSearch(c.GuildID, query, 10, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	for _, m := range candidates {
		if memberMatches(m, query) {
			out := convertMember(m)
			return &out, nil
		}
	}
	return nil, platform.ErrNotFound
}

func (c *Client) SetPermissionOverride(ctx context.Context, channelID string, perm platform.Permission, value platform.OverrideValue) error {
	// always read the current overwrite fresh, so concurrent changes to other bits are not clobbered with stale cache state
	ch, err := c.Session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	allow, deny := defaultRoleOverwrite(ch, c.GuildID)
	allow, deny = applyOverride(allow, deny, toDiscordPermissions(perm), value)
	err = c.Session.ChannelPermissionSet(channelID, c.GuildID, discordgo.PermissionOverwriteTypeRole, allow, deny, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) PurgeMessages(ctx context.Context, channelID string, limit int) (int, error) {
	deleted := 0
	before := ""
	for deleted < limit {
		n := limit - deleted
		if n > pageSize {
			n = pageSize
		}
		msgs, err := c.Session.ChannelMessages(channelID, n, before, "", "", discordgo.WithContext(ctx))
		if err != nil {
			return deleted, mapError(err)
		}
		if len(msgs) == 0 {
			break
		}
		before = msgs[len(msgs)-1].ID

		bulk, single := partitionForBulk(msgs, c.now())
		if len(bulk) > 0 {
			if err := c.Session.ChannelMessagesBulkDelete(channelID, bulk, discordgo.WithContext(ctx)); err != nil {
				return deleted, mapError(err)
			}
			deleted += len(bulk)
		}
		for _, id := range single {
			if err := c.deleteLimiter.Wait(ctx); err != nil {
				return deleted, err
			}
			err := mapError(c.Session.ChannelMessageDelete(channelID, id, discordgo.WithContext(ctx)))
			if errors.Is(err, platform.ErrNotFound) {
				continue
			} else if err != nil {
				return deleted, err
			}
			deleted++
		}
		if len(msgs) < n {
			break
		}
	}
	return deleted, nil
}

func (c *Client) SendPrivateMessage(ctx context.Context, memberID, text string) error {
	ch, err := c.Session.UserChannelCreate(memberID, discordgo.WithContext(ctx))
	if err != nil {
		return mapError(err)
	}
	_, err = c.Session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return mapError(err)
}

// Splits messages into those eligible for bulk deletion and those which must be deleted one at a time. Bulk deletion requires at least two messages.
func partitionForBulk(msgs []*discordgo.Message, now time.Time) (bulk, single []string) {
	for _, m := range msgs {
		if now.Sub(m.Timestamp) < bulkDeleteMaxAge {
			bulk = append(bulk, m.ID)
		} else {
			single = append(single, m.ID)
		}
	}
	if len(bulk) == 1 {
		single = append(bulk, single...)
		bulk = nil
	}
	return bulk, single
}

func convertMember(m *discordgo.Member) platform.Member {
	out := platform.Member{
		Roles: append([]string{}, m.Roles...),
	}
	if m.User != nil {
		out.ID = m.User.ID
		out.Name = displayName(m.User)
		out.Mention = m.User.Mention()
		out.Bot = m.User.Bot
	}
	return out
}

func memberMatches(m *discordgo.Member, query string) bool {
	if m.User == nil {
		return false
	}
	for _, name := range []string{m.User.Username, m.User.GlobalName, m.Nick, displayName(m.User)} {
		if name != "" && strings.EqualFold(name, query) {
			return true
		}
	}
	return false
}

// Username, with the legacy discriminator suffix for accounts which still have one.
func displayName(u *discordgo.User) string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

func isSnowflake(s string) bool {
	if len(s) < 15 || len(s) > 20 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
