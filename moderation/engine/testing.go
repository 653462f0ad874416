package engine

import (
	"log/slog"

	"github.com/hearthmod/bailiff/moderation/audit"
	"github.com/hearthmod/bailiff/moderation/platform"
	"github.com/hearthmod/bailiff/moderation/rolestore"
)

const (
	TestChannelGeneral = "chan-general"
	TestChannelModLog  = "chan-modlog"
	TestChannelWelcome = "chan-welcome"

	TestRoleMuted    = "role-muted"
	TestRoleCosmetic = "role-cosmetic"
	TestRoleRegular  = "role-regular"

	TestModerator = "member-mod"
	TestAdmin     = "member-admin"
	TestMember    = "member-alice"
)

// Engine wired to an in-memory community and store. Intentionally exported, for use in other packages.
//
// The community has a general, mod-log and welcome channel; two tracked roles (muted, cosmetic) and one untracked role; a moderator with every capability except administrator, an administrator, and a regular member.
func EngineTestFixture() (*Engine, *platform.MockPlatform) {
	p := platform.NewMockPlatform()
	p.InsertChannel(platform.Channel{ID: TestChannelGeneral, Name: "general"})
	p.InsertChannel(platform.Channel{ID: TestChannelModLog, Name: "mod-log"})
	p.InsertChannel(platform.Channel{ID: TestChannelWelcome, Name: "welcome"})
	p.InsertRole(platform.Role{ID: TestRoleMuted, Name: "Muted"})
	p.InsertRole(platform.Role{ID: TestRoleCosmetic, Name: "Night Owl"})
	p.InsertRole(platform.Role{ID: TestRoleRegular, Name: "Regular"})
	p.InsertMember(platform.Member{
		ID:   TestModerator,
		Name: "mod",
		Permissions: platform.PermissionBanMembers | platform.PermissionKickMembers | platform.PermissionModerateMembers |
			platform.PermissionManageChannels | platform.PermissionManageMessages | platform.PermissionSendMessages,
	})
	p.InsertMember(platform.Member{ID: TestAdmin, Name: "admin", Permissions: platform.PermissionAdministrator})
	p.InsertMember(platform.Member{ID: TestMember, Name: "alice", Permissions: platform.PermissionSendMessages})

	config := DefaultConfig()
	config.TrackedRoles = []string{TestRoleMuted, TestRoleCosmetic}
	config.GreetingChannelID = TestChannelWelcome

	logger := slog.Default()
	store := rolestore.NewMemRoleStore()
	eng := NewEngine(p, store, audit.NewLogger(p, TestChannelModLog, logger), config, logger)
	return eng, p
}
