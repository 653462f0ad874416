// Maps moderator commands to the capability required to invoke them.
package gate

import (
	"fmt"

	"github.com/hearthmod/bailiff/moderation/command"
	"github.com/hearthmod/bailiff/moderation/platform"
)

var DefaultRequirements = map[command.Kind]platform.Permission{
	command.KindBan:    platform.PermissionBanMembers,
	command.KindKick:   platform.PermissionKickMembers,
	command.KindMute:   platform.PermissionModerateMembers,
	command.KindLock:   platform.PermissionManageChannels,
	command.KindUnlock: platform.PermissionManageChannels,
	command.KindHide:   platform.PermissionManageChannels,
	command.KindUnhide: platform.PermissionManageChannels,
	command.KindPurge:  platform.PermissionManageMessages,
	command.KindDM:     platform.PermissionAdministrator,
}

type Decision struct {
	Allowed  bool
	Required platform.Permission
	// empty when allowed
	Reason string
}

// Stateless; never logs.
type Gate struct {
	Requirements map[command.Kind]platform.Permission
}

func NewGate() Gate {
	return Gate{Requirements: DefaultRequirements}
}

func (g Gate) Authorize(actor platform.Permission, kind command.Kind) Decision {
	req, ok := g.Requirements[kind]
	if !ok {
		return Decision{Allowed: false, Reason: fmt.Sprintf("no capability mapped for command %q", kind)}
	}
	if !actor.Has(req) {
		return Decision{Allowed: false, Required: req, Reason: fmt.Sprintf("missing capability %s", req)}
	}
	return Decision{Allowed: true, Required: req}
}
