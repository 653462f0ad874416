package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/puzpuzpuz/xsync/v3"
)

// Last known role set of every guild member, maintained from gateway events.
//
// Member removal events carry only the user, and discordgo evicts the member from its state cache before handlers run, so the roles a member held on leaving have to be remembered here.
type memberRoles struct {
	guildID string
	roles   *xsync.MapOf[string, []string]
}

func newMemberRoles(guildID string) *memberRoles {
	return &memberRoles{
		guildID: guildID,
		roles:   xsync.NewMapOf[string, []string](),
	}
}

func (mr *memberRoles) register(sess *discordgo.Session) {
	sess.AddHandler(mr.onGuildCreate)
	sess.AddHandler(mr.onMembersChunk)
	sess.AddHandler(mr.onMemberAdd)
	sess.AddHandler(mr.onMemberUpdate)
}

func (mr *memberRoles) set(m *discordgo.Member) {
	if m == nil || m.User == nil {
		return
	}
	mr.roles.Store(m.User.ID, append([]string{}, m.Roles...))
}

// Returns and forgets the member's last known roles.
func (mr *memberRoles) take(memberID string) ([]string, bool) {
	return mr.roles.LoadAndDelete(memberID)
}

func (mr *memberRoles) size() int {
	return mr.roles.Size()
}

// large guilds only include online members here; the rest arrive as chunks
func (mr *memberRoles) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if g.Guild == nil || g.ID != mr.guildID {
		return
	}
	for _, m := range g.Members {
		mr.set(m)
	}
}

func (mr *memberRoles) onMembersChunk(s *discordgo.Session, c *discordgo.GuildMembersChunk) {
	if c.GuildID != mr.guildID {
		return
	}
	for _, m := range c.Members {
		mr.set(m)
	}
}

func (mr *memberRoles) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.GuildID != mr.guildID {
		return
	}
	mr.set(m.Member)
}

func (mr *memberRoles) onMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.Member == nil || m.GuildID != mr.guildID {
		return
	}
	mr.set(m.Member)
}
