package event

import (
	"testing"

	"github.com/hearthmod/bailiff/moderation/command"
	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	assert.ErrorIs((&MemberJoinEvent{}).Validate(), ErrInvalidEvent)
	assert.NoError((&MemberJoinEvent{Member: platform.Member{ID: "1"}}).Validate())
	assert.ErrorIs((&MemberLeaveEvent{}).Validate(), ErrInvalidEvent)
	assert.NoError((&MemberLeaveEvent{Member: platform.Member{ID: "1"}}).Validate())

	cmd := CommandEvent{
		Actor:     platform.Member{ID: "1"},
		ChannelID: "chan",
		Kind:      command.KindLock,
	}
	assert.NoError(cmd.Validate())

	bad := cmd
	bad.ChannelID = ""
	assert.ErrorIs(bad.Validate(), ErrInvalidEvent)

	bad = cmd
	bad.Kind = "explode"
	assert.ErrorIs(bad.Validate(), ErrInvalidEvent)

	bad = cmd
	bad.Actor = platform.Member{}
	assert.ErrorIs(bad.Validate(), ErrInvalidEvent)
}
