package engine

import (
	"fmt"
	"time"

	"github.com/hearthmod/bailiff/moderation/command"
)

type Status string

const (
	StatusSuccess Status = "success"
	// actor lacks the required capability
	StatusDenied Status = "denied"
	// missing, malformed, or out-of-range arguments
	StatusInvalid Status = "invalid"
	// the platform refused the effect
	StatusFailed Status = "failed"
)

// Outcome of one moderator command invocation. Not persisted.
type Outcome struct {
	Kind   command.Kind
	Status Status
	// member ID of the invoking moderator
	Actor string
	// member or channel ID the action applied to, if any
	Target string
	// the single primary response sent back to the invocation channel
	Reply string
	// if non-zero, the reply is deleted after this long
	ReplyTTL time.Duration
	// internal detail for logs (not shown to the moderator)
	Detail string
}

const (
	replyDenied  = "❌ You don't have permission."
	replyMissing = "❌ Missing arguments."
	replyInvalid = "❌ Invalid arguments."
)

func problemReply(kind command.Kind, prob *command.Problem) string {
	switch prob.Code {
	case command.ProblemMissing:
		return replyMissing
	case command.ProblemOutOfRange:
		switch kind {
		case command.KindPurge:
			return fmt.Sprintf("❌ Amount must be %d–%d", command.MinPurge, command.MaxPurge)
		case command.KindMute:
			return fmt.Sprintf("❌ Duration must be between %d and %d minutes.", command.MinMuteMinutes, command.MaxMuteMinutes)
		}
		return replyInvalid
	default:
		return replyInvalid
	}
}
