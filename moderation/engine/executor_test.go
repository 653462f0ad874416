package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hearthmod/bailiff/moderation/audit"
	"github.com/hearthmod/bailiff/moderation/command"
	"github.com/hearthmod/bailiff/moderation/event"
	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandEvent(t *testing.T, p *platform.MockPlatform, actorID string, kind command.Kind, args string) *event.CommandEvent {
	actor, ok := p.Member(actorID)
	require.True(t, ok)
	return &event.CommandEvent{
		Actor:     actor,
		ChannelID: TestChannelGeneral,
		Kind:      kind,
		Args:      args,
	}
}

func replies(p *platform.MockPlatform) []string {
	out := []string{}
	for _, s := range p.SentTo(TestChannelGeneral) {
		out = append(out, s.Text)
	}
	return out
}

func auditEntries(p *platform.MockPlatform) []*platform.Embed {
	out := []*platform.Embed{}
	for _, s := range p.SentTo(TestChannelModLog) {
		out = append(out, s.Embed)
	}
	return out
}

func TestCommandDenied(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	for _, kind := range command.AllKinds {
		out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestMember, kind, "member-mod 10 because"))
		assert.NoError(err)
		assert.Equal(StatusDenied, out.Status, kind)
		assert.Equal(kind, out.Kind)
		assert.Equal(TestMember, out.Actor)
	}
	for _, r := range replies(p) {
		assert.Equal("❌ You don't have permission.", r)
	}
	assert.Equal(len(command.AllKinds), len(replies(p)))
	assert.Empty(auditEntries(p))
	assert.Empty(p.Bans)
	assert.Empty(p.Kicks)
	assert.Empty(p.Purges)

	// moderator lacks administrator, which dm requires
	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindDM, "alice hello"))
	assert.NoError(err)
	assert.Equal(StatusDenied, out.Status)
	assert.Empty(p.DMs)
}

func TestCommandBan(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindBan, "<@member-alice> spamming   links"))
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	assert.Equal(TestMember, out.Target)
	assert.Equal([]string{"🔨 Banned alice"}, replies(p))
	if assert.Equal(1, len(p.Bans)) {
		assert.Equal("spamming   links", p.Bans[0].Text)
	}

	entries := auditEntries(p)
	if assert.Equal(1, len(entries)) {
		assert.Equal("🔨 User Banned", entries[0].Title)
		assert.Equal("User: alice\nModerator: mod\nReason: spamming   links", entries[0].Description)
		assert.Equal(audit.SeverityPunitive.Color(), entries[0].Color)
		assert.Equal(audit.DefaultFooter, entries[0].Footer)
	}
}

func TestCommandBanDefaultReasonAndRefusal(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	p.Protected[TestAdmin] = true
	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindBan, "admin"))
	assert.NoError(err)
	assert.Equal(StatusFailed, out.Status)
	assert.Equal([]string{"❌ I can't ban admin."}, replies(p))
	assert.Empty(auditEntries(p))

	out, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindKick, "ALICE"))
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	if assert.Equal(1, len(p.Kicks)) {
		assert.Equal(command.DefaultReason, p.Kicks[0].Text)
	}
	entries := auditEntries(p)
	if assert.Equal(1, len(entries)) {
		assert.Equal("👢 User Kicked", entries[0].Title)
		assert.Contains(entries[0].Description, "Reason: No reason provided")
	}
}

func TestCommandArgumentProblems(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	cases := []struct {
		kind  command.Kind
		args  string
		reply string
	}{
		{command.KindBan, "", "❌ Missing arguments."},
		{command.KindMute, "alice", "❌ Missing arguments."},
		{command.KindMute, "alice soon", "❌ Invalid arguments."},
		{command.KindMute, "alice 0", "❌ Duration must be between 1 and 40320 minutes."},
		{command.KindMute, "alice -5", "❌ Duration must be between 1 and 40320 minutes."},
		{command.KindMute, "alice 40321", "❌ Duration must be between 1 and 40320 minutes."},
		{command.KindPurge, "0", "❌ Amount must be 1–100"},
		{command.KindPurge, "101", "❌ Amount must be 1–100"},
		{command.KindPurge, "lots", "❌ Invalid arguments."},
		{command.KindBan, "nobody", "❌ Invalid arguments."},
	}
	for _, c := range cases {
		out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, c.kind, c.args))
		assert.NoError(err)
		assert.Equal(StatusInvalid, out.Status, c.args)
		assert.Equal(c.reply, out.Reply, c.args)
	}
	assert.Empty(p.Timeouts)
	assert.Empty(p.Purges)
	assert.Empty(p.Bans)
	assert.Empty(auditEntries(p))
}

func TestCommandMute(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	eng.now = func() time.Time { return now }

	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindMute, "alice 10 calm down"))
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	assert.Equal("🔇 Muted alice for 10 minutes", out.Reply)
	if assert.Equal(1, len(p.Timeouts)) {
		assert.Equal(now.Add(10*time.Minute), p.Timeouts[0].Until)
		assert.Equal("calm down", p.Timeouts[0].Reason)
	}
	entries := auditEntries(p)
	if assert.Equal(1, len(entries)) {
		assert.Equal("🔇 User Muted", entries[0].Title)
		assert.Equal("User: alice\nModerator: mod\nDuration: 10m\nReason: calm down", entries[0].Description)
	}
}

func TestCommandChannelOverrides(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindLock, ""))
	assert.NoError(err)
	assert.Equal("🔒 Channel locked", out.Reply)
	assert.Equal(platform.OverrideDeny, p.Overrides[TestChannelGeneral][platform.PermissionSendMessages])

	_, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindHide, "ignored text"))
	assert.NoError(err)
	assert.Equal(platform.OverrideDeny, p.Overrides[TestChannelGeneral][platform.PermissionViewChannel])

	_, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindUnlock, ""))
	assert.NoError(err)
	_, ok := p.Overrides[TestChannelGeneral][platform.PermissionSendMessages]
	assert.False(ok)
	// unlocking leaves visibility alone
	assert.Equal(platform.OverrideDeny, p.Overrides[TestChannelGeneral][platform.PermissionViewChannel])

	_, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindUnhide, ""))
	assert.NoError(err)
	assert.Empty(p.Overrides[TestChannelGeneral])

	assert.Equal([]string{"🔒 Channel locked", "🙈 Channel hidden", "🔓 Channel unlocked", "👀 Channel unhidden"}, replies(p))
	entries := auditEntries(p)
	if assert.Equal(4, len(entries)) {
		assert.Equal("🔒 Channel Locked", entries[0].Title)
		assert.Equal("Channel: <#chan-general>\nModerator: mod", entries[0].Description)
		assert.Equal(audit.SeverityPermissive.Color(), entries[3].Color)
	}
}

func TestCommandChannelOverridesUnlogged(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()
	eng.Config.LogChannelActions = false

	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindHide, ""))
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	assert.Empty(auditEntries(p))
}

func TestCommandPurge(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()
	eng.Config.PurgeNoticeTTL = 20 * time.Millisecond

	p.Seed(TestChannelGeneral, 10)
	evt := commandEvent(t, p, TestModerator, command.KindPurge, "3")
	evt.MessageID = p.Seed(TestChannelGeneral, 1)

	out, err := eng.ProcessCommand(ctx, evt)
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	assert.Equal("🧹 Deleted `3` messages", out.Reply)
	assert.True(p.WasDeleted(evt.MessageID))
	if assert.Equal(1, len(p.Purges)) {
		assert.Equal(3, p.Purges[0].Limit)
	}

	entries := auditEntries(p)
	if assert.Equal(1, len(entries)) {
		assert.Equal("🧹 Messages Purged", entries[0].Title)
		assert.Equal("Moderator: mod\nChannel: <#chan-general>\nCount: `3`", entries[0].Description)
		assert.Equal(audit.SeverityBulk.Color(), entries[0].Color)
	}

	notice := p.SentTo(TestChannelGeneral)
	require.Equal(t, 1, len(notice))
	assert.Eventually(func() bool {
		return p.WasDeleted(notice[0].ID)
	}, time.Second, 5*time.Millisecond)
}

func TestCommandPurgeBounds(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	// fewer messages than requested
	p.Seed(TestChannelGeneral, 5)
	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindPurge, "100"))
	assert.NoError(err)
	assert.Equal("🧹 Deleted `5` messages", out.Reply)

	p.Seed(TestChannelGeneral, 2)
	out, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindPurge, "1"))
	assert.NoError(err)
	assert.Equal("🧹 Deleted `1` messages", out.Reply)
}

func TestCommandDM(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestAdmin, command.KindDM, "alice please read   the rules"))
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	if assert.Equal(1, len(p.DMs)) {
		assert.Equal("please read   the rules", p.DMs[0].Text)
	}
	entries := auditEntries(p)
	if assert.Equal(1, len(entries)) {
		assert.Equal("📩 Admin DM Sent", entries[0].Title)
		assert.Equal("To: alice\nAdmin: admin\n```please read   the rules```", entries[0].Description)
	}

	p.ClosedDMs[TestMember] = true
	out, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestAdmin, command.KindDM, "alice hello"))
	assert.NoError(err)
	assert.Equal(StatusFailed, out.Status)
	assert.Equal("❌ Cannot DM this user", out.Reply)
	assert.Equal(1, len(auditEntries(p)))

	out, err = eng.ProcessCommand(ctx, commandEvent(t, p, TestAdmin, command.KindDM, "alice"))
	assert.NoError(err)
	assert.Equal(StatusInvalid, out.Status)
}

type brokenPlatform struct {
	*platform.MockPlatform
}

func (b brokenPlatform) ResolveMember(ctx context.Context, query string) (*platform.Member, error) {
	return nil, errors.New("gateway unavailable")
}

func TestCommandUnexpectedFailure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()
	eng.Platform = brokenPlatform{p}

	out, err := eng.ProcessCommand(ctx, commandEvent(t, p, TestModerator, command.KindBan, "alice"))
	assert.ErrorContains(err, "gateway unavailable")
	assert.Nil(out)
	assert.Empty(replies(p))

	_, err = eng.ProcessCommand(ctx, &event.CommandEvent{Kind: command.KindBan})
	assert.ErrorIs(err, event.ErrInvalidEvent)
}

func TestCommandPurgeExactCounts(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	p.Seed(TestChannelGeneral, 150)
	evt := commandEvent(t, p, TestModerator, command.KindPurge, "100")
	evt.MessageID = p.Seed(TestChannelGeneral, 1)
	out, err := eng.ProcessCommand(ctx, evt)
	assert.NoError(err)
	assert.Equal("🧹 Deleted `100` messages", out.Reply)
	// 100 requested messages plus the invocation; 50 older ones remain, plus the notice
	assert.Equal(101, len(p.Deleted))
	assert.Equal(51, len(p.History[TestChannelGeneral]))

	evt = commandEvent(t, p, TestModerator, command.KindPurge, "1")
	evt.MessageID = p.Seed(TestChannelGeneral, 1)
	out, err = eng.ProcessCommand(ctx, evt)
	assert.NoError(err)
	assert.Equal("🧹 Deleted `1` messages", out.Reply)
	assert.Equal(103, len(p.Deleted))
}

func TestCommandPurgeInvocationAlreadyDeleted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	eng, p := EngineTestFixture()
	defer eng.Close()

	p.Seed(TestChannelGeneral, 5)
	evt := commandEvent(t, p, TestModerator, command.KindPurge, "3")
	evt.MessageID = "msg-removed-by-someone-else"
	out, err := eng.ProcessCommand(ctx, evt)
	assert.NoError(err)
	assert.Equal(StatusSuccess, out.Status)
	assert.Equal("🧹 Deleted `3` messages", out.Reply)
	assert.Equal(3, len(p.Deleted))
	if assert.Equal(1, len(p.Purges)) {
		assert.Equal(3, p.Purges[0].Limit)
	}
}
