package command

import (
	"strconv"
	"strings"
)

// Kind of moderator command.
type Kind string

const (
	KindBan    Kind = "ban"
	KindKick   Kind = "kick"
	KindMute   Kind = "mute"
	KindLock   Kind = "lock"
	KindUnlock Kind = "unlock"
	KindHide   Kind = "hide"
	KindUnhide Kind = "unhide"
	KindPurge  Kind = "purge"
	KindDM     Kind = "dm"
)

var AllKinds = []Kind{KindBan, KindKick, KindMute, KindLock, KindUnlock, KindHide, KindUnhide, KindPurge, KindDM}

const (
	DefaultReason = "No reason provided"

	MinPurge = 1
	MaxPurge = 100

	MinMuteMinutes = 1
	// platform maximum for a communication timeout: 28 days
	MaxMuteMinutes = 28 * 24 * 60
)

func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(s)
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Splits a chat message into a command kind and the raw argument text following it.
//
// The prefix and command name are matched case-insensitively. Returns false for messages which are not a known command.
func Split(prefix, content string) (Kind, string, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return "", "", false
	}
	rest := content[len(prefix):]
	name, args := rest, ""
	if idx := strings.IndexFunc(rest, isSpace); idx >= 0 {
		name, args = rest[:idx], rest[idx:]
	}
	kind, ok := ParseKind(name)
	if !ok {
		return "", "", false
	}
	return kind, strings.TrimSpace(args), true
}

// Why an invocation's arguments were rejected.
type ProblemCode int

const (
	ProblemMissing ProblemCode = iota + 1
	ProblemInvalid
	ProblemOutOfRange
)

func (c ProblemCode) String() string {
	switch c {
	case ProblemMissing:
		return "missing"
	case ProblemInvalid:
		return "invalid"
	case ProblemOutOfRange:
		return "out-of-range"
	default:
		return "unknown"
	}
}

type Problem struct {
	Code ProblemCode
	// which argument was rejected
	Arg string
}

// Typed arguments for any command kind. Only the fields relevant to the kind are populated.
type Args struct {
	// Member reference (ID, mention, or name) as typed by the moderator
	Target  string
	Reason  string
	Minutes int
	Count   int
	Body    string
}

// Binds the raw argument text of a command to typed arguments.
//
// A nil Problem means the arguments are well-formed and in range. Target references are not resolved here.
func Bind(kind Kind, raw string) (Args, *Problem) {
	fields := strings.Fields(raw)
	var args Args
	switch kind {
	case KindBan, KindKick:
		if len(fields) < 1 {
			return args, &Problem{Code: ProblemMissing, Arg: "member"}
		}
		args.Target = NormalizeMemberRef(fields[0])
		args.Reason = reasonOrDefault(restAfter(raw, 1))
	case KindMute:
		if len(fields) < 1 {
			return args, &Problem{Code: ProblemMissing, Arg: "member"}
		}
		if len(fields) < 2 {
			return args, &Problem{Code: ProblemMissing, Arg: "minutes"}
		}
		args.Target = NormalizeMemberRef(fields[0])
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return args, &Problem{Code: ProblemInvalid, Arg: "minutes"}
		}
		if n < MinMuteMinutes || n > MaxMuteMinutes {
			return args, &Problem{Code: ProblemOutOfRange, Arg: "minutes"}
		}
		args.Minutes = n
		args.Reason = reasonOrDefault(restAfter(raw, 2))
	case KindLock, KindUnlock, KindHide, KindUnhide:
		// extra text is ignored
	case KindPurge:
		if len(fields) < 1 {
			return args, &Problem{Code: ProblemMissing, Arg: "count"}
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return args, &Problem{Code: ProblemInvalid, Arg: "count"}
		}
		if n < MinPurge || n > MaxPurge {
			return args, &Problem{Code: ProblemOutOfRange, Arg: "count"}
		}
		args.Count = n
	case KindDM:
		if len(fields) < 1 {
			return args, &Problem{Code: ProblemMissing, Arg: "member"}
		}
		body := restAfter(raw, 1)
		if body == "" {
			return args, &Problem{Code: ProblemMissing, Arg: "message"}
		}
		args.Target = NormalizeMemberRef(fields[0])
		args.Body = body
	default:
		return args, &Problem{Code: ProblemInvalid, Arg: "command"}
	}
	return args, nil
}

// Strips user mention markup ("<@123>", "<@!123>") down to the bare ID. Other references are returned unchanged.
func NormalizeMemberRef(ref string) string {
	if strings.HasPrefix(ref, "<@") && strings.HasSuffix(ref, ">") {
		id := strings.TrimPrefix(ref[2:len(ref)-1], "!")
		if id != "" {
			return id
		}
	}
	return ref
}

func reasonOrDefault(s string) string {
	if s == "" {
		return DefaultReason
	}
	return s
}

// returns the raw text after the first n whitespace-separated fields, with interior spacing preserved
func restAfter(raw string, n int) string {
	s := strings.TrimSpace(raw)
	for i := 0; i < n; i++ {
		idx := strings.IndexFunc(s, isSpace)
		if idx < 0 {
			return ""
		}
		s = strings.TrimSpace(s[idx:])
	}
	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
