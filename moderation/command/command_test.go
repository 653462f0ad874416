package command

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		content string
		kind    Kind
		args    string
		ok      bool
	}{
		{content: ";ban <@123> spamming links", kind: KindBan, args: "<@123> spamming links", ok: true},
		{content: ";BAN <@123>", kind: KindBan, args: "<@123>", ok: true},
		{content: "  ;lock  ", kind: KindLock, args: "", ok: true},
		{content: ";dm\n<@1> hi", kind: KindDM, args: "<@1> hi", ok: true},
		{content: ";purge 10", kind: KindPurge, args: "10", ok: true},
		{content: "ban <@123>", ok: false},
		{content: ";unknown thing", ok: false},
		{content: ";", ok: false},
		{content: "", ok: false},
	}

	for _, tc := range testCases {
		kind, args, ok := Split(";", tc.content)
		assert.Equal(tc.ok, ok, tc.content)
		if tc.ok {
			assert.Equal(tc.kind, kind, tc.content)
			assert.Equal(tc.args, args, tc.content)
		}
	}

	// multi-character prefixes match case-insensitively too
	kind, _, ok := Split("!Mod ", "!mod kick 55")
	assert.True(ok)
	assert.Equal(KindKick, kind)
}

func TestBindMemberCommands(t *testing.T) {
	assert := assert.New(t)

	args, prob := Bind(KindBan, "<@!123>   being  rude")
	assert.Nil(prob)
	assert.Equal("123", args.Target)
	assert.Equal("being  rude", args.Reason)

	args, prob = Bind(KindKick, "someone")
	assert.Nil(prob)
	assert.Equal("someone", args.Target)
	assert.Equal(DefaultReason, args.Reason)

	_, prob = Bind(KindBan, "")
	assert.Equal(&Problem{Code: ProblemMissing, Arg: "member"}, prob)

	args, prob = Bind(KindDM, "<@42> hello there\nsecond line")
	assert.Nil(prob)
	assert.Equal("42", args.Target)
	assert.Equal("hello there\nsecond line", args.Body)

	_, prob = Bind(KindDM, "<@42>")
	assert.Equal(&Problem{Code: ProblemMissing, Arg: "message"}, prob)
}

func TestBindMute(t *testing.T) {
	assert := assert.New(t)

	args, prob := Bind(KindMute, "<@9> 10 cool off")
	assert.Nil(prob)
	assert.Equal("9", args.Target)
	assert.Equal(10, args.Minutes)
	assert.Equal("cool off", args.Reason)

	args, prob = Bind(KindMute, "<@9> 10")
	assert.Nil(prob)
	assert.Equal(DefaultReason, args.Reason)

	_, prob = Bind(KindMute, "<@9>")
	assert.Equal(ProblemMissing, prob.Code)
	_, prob = Bind(KindMute, "<@9> ten")
	assert.Equal(ProblemInvalid, prob.Code)
	_, prob = Bind(KindMute, "<@9> 0")
	assert.Equal(ProblemOutOfRange, prob.Code)
	_, prob = Bind(KindMute, "<@9> -5")
	assert.Equal(ProblemOutOfRange, prob.Code)
	_, prob = Bind(KindMute, "<@9> 40321")
	assert.Equal(ProblemOutOfRange, prob.Code)
	_, prob = Bind(KindMute, "<@9> 40320")
	assert.Nil(prob)
}

func TestBindPurge(t *testing.T) {
	assert := assert.New(t)

	for _, raw := range []string{"0", "101", "-1"} {
		_, prob := Bind(KindPurge, raw)
		if assert.NotNil(prob, raw) {
			assert.Equal(ProblemOutOfRange, prob.Code, raw)
		}
	}
	for _, n := range []int{1, 50, 100} {
		args, prob := Bind(KindPurge, strconv.Itoa(n))
		assert.Nil(prob)
		assert.Equal(n, args.Count)
	}
	_, prob := Bind(KindPurge, "")
	assert.Equal(ProblemMissing, prob.Code)
	_, prob = Bind(KindPurge, "lots")
	assert.Equal(ProblemInvalid, prob.Code)
}

func TestNormalizeMemberRef(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("123", NormalizeMemberRef("<@123>"))
	assert.Equal("123", NormalizeMemberRef("<@!123>"))
	assert.Equal("123", NormalizeMemberRef("123"))
	assert.Equal("alice", NormalizeMemberRef("alice"))
	assert.Equal("<@>", NormalizeMemberRef("<@>"))
}
