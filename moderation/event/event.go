package event

import (
	"errors"
	"fmt"

	"github.com/hearthmod/bailiff/moderation/command"
	"github.com/hearthmod/bailiff/moderation/platform"
)

var ErrInvalidEvent = errors.New("invalid event")

const (
	TypeMemberJoin  = "member-join"
	TypeMemberLeave = "member-leave"
	TypeCommand     = "command"
)

// A member (re)joined the community.
type MemberJoinEvent struct {
	Member platform.Member
	// Display name of the community, for the greeting
	CommunityName string
}

func (e *MemberJoinEvent) Validate() error {
	if e.Member.ID == "" {
		return fmt.Errorf("%w: %s without member ID", ErrInvalidEvent, TypeMemberJoin)
	}
	return nil
}

// A member left (or was removed from) the community. Member.Roles is the role set held at the moment of leaving.
type MemberLeaveEvent struct {
	Member platform.Member
}

func (e *MemberLeaveEvent) Validate() error {
	if e.Member.ID == "" {
		return fmt.Errorf("%w: %s without member ID", ErrInvalidEvent, TypeMemberLeave)
	}
	return nil
}

// A moderator invoked a command in a channel.
type CommandEvent struct {
	// Invoking member, with Permissions resolved for ChannelID
	Actor     platform.Member
	ChannelID string
	// Message carrying the command, if the platform delivered one
	MessageID string
	Kind      command.Kind
	// Raw argument text following the command name
	Args string
}

func (e *CommandEvent) Validate() error {
	if e.Actor.ID == "" {
		return fmt.Errorf("%w: %s without actor", ErrInvalidEvent, TypeCommand)
	}
	if e.ChannelID == "" {
		return fmt.Errorf("%w: %s without channel", ErrInvalidEvent, TypeCommand)
	}
	if _, ok := command.ParseKind(string(e.Kind)); !ok {
		return fmt.Errorf("%w: unknown command kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}
