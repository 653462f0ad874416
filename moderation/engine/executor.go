package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthmod/bailiff/moderation/audit"
	"github.com/hearthmod/bailiff/moderation/command"
	"github.com/hearthmod/bailiff/moderation/event"
	"github.com/hearthmod/bailiff/moderation/platform"

	"go.opentelemetry.io/otel/attribute"
)

// Runs one moderator command: permission gate, argument binding, platform effect, a single reply to the invocation channel, and an audit entry.
//
// Denials, argument problems and platform refusals are reported through the returned Outcome. An error is only returned for unexpected failures; the Outcome may still be non-nil in that case.
func (eng *Engine) ProcessCommand(ctx context.Context, evt *event.CommandEvent) (out *Outcome, err error) {
	start := time.Now()
	defer func() { eng.track(event.TypeCommand, start, err) }()
	defer eng.recoverPanic(event.TypeCommand, &err)

	if err := evt.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "ProcessCommand")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(evt.Kind)), attribute.String("actor", evt.Actor.ID))

	logger := eng.Logger.With("actor", evt.Actor.ID, "channel", evt.ChannelID, "command", evt.Kind)

	var entry *audit.Entry
	out, entry, err = eng.execute(ctx, evt)
	if out == nil {
		return nil, err
	}
	out.Kind = evt.Kind
	out.Actor = evt.Actor.ID
	span.SetAttributes(attribute.String("status", string(out.Status)))

	replyErr := eng.reply(ctx, logger, evt.ChannelID, out)
	if entry != nil {
		eng.emit(ctx, *entry)
	}
	eng.canonicalLogLine(logger, out)
	commandOutcomeCount.WithLabelValues(string(out.Kind), string(out.Status)).Inc()
	return out, errors.Join(err, replyErr)
}

func (eng *Engine) execute(ctx context.Context, evt *event.CommandEvent) (*Outcome, *audit.Entry, error) {
	decision := eng.Gate.Authorize(evt.Actor.Permissions, evt.Kind)
	if !decision.Allowed {
		return &Outcome{Status: StatusDenied, Reply: replyDenied, Detail: decision.Reason}, nil, nil
	}
	args, prob := command.Bind(evt.Kind, evt.Args)
	if prob != nil {
		return &Outcome{
			Status: StatusInvalid,
			Reply:  problemReply(evt.Kind, prob),
			Detail: fmt.Sprintf("%s argument: %s", prob.Code, prob.Arg),
		}, nil, nil
	}

	switch evt.Kind {
	case command.KindBan:
		return eng.runBan(ctx, evt, args)
	case command.KindKick:
		return eng.runKick(ctx, evt, args)
	case command.KindMute:
		return eng.runMute(ctx, evt, args)
	case command.KindLock, command.KindUnlock, command.KindHide, command.KindUnhide:
		return eng.runChannelOverride(ctx, evt)
	case command.KindPurge:
		return eng.runPurge(ctx, evt, args)
	case command.KindDM:
		return eng.runDM(ctx, evt, args)
	default:
		return nil, nil, fmt.Errorf("unhandled command kind: %s", evt.Kind)
	}
}

// Resolves the target member reference. A nil member with a nil error means the reference did not match anyone.
func (eng *Engine) resolveTarget(ctx context.Context, ref string) (*platform.Member, error) {
	m, err := eng.Platform.ResolveMember(ctx, ref)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("resolving member %q: %w", ref, err)
	}
	return m, nil
}

func unknownTarget(ref string) *Outcome {
	return &Outcome{Status: StatusInvalid, Reply: replyInvalid, Detail: fmt.Sprintf("no member matches %q", ref)}
}

// platform refusals become failed outcomes; anything else is unexpected
func isRefusal(err error) bool {
	return errors.Is(err, platform.ErrForbidden) || errors.Is(err, platform.ErrNotFound)
}

func (eng *Engine) runBan(ctx context.Context, evt *event.CommandEvent, args command.Args) (*Outcome, *audit.Entry, error) {
	target, err := eng.resolveTarget(ctx, args.Target)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return unknownTarget(args.Target), nil, nil
	}
	err = eng.Platform.Ban(ctx, target.ID, args.Reason)
	if isRefusal(err) {
		return &Outcome{Status: StatusFailed, Target: target.ID, Reply: fmt.Sprintf("❌ I can't ban %s.", target.Name), Detail: err.Error()}, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("banning member: %w", err)
	}
	return &Outcome{Status: StatusSuccess, Target: target.ID, Reply: fmt.Sprintf("🔨 Banned %s", target.Name)},
		&audit.Entry{
			Title:       "🔨 User Banned",
			Description: fmt.Sprintf("User: %s\nModerator: %s\nReason: %s", target.Name, evt.Actor.Name, args.Reason),
			Severity:    audit.SeverityPunitive,
		}, nil
}

func (eng *Engine) runKick(ctx context.Context, evt *event.CommandEvent, args command.Args) (*Outcome, *audit.Entry, error) {
	target, err := eng.resolveTarget(ctx, args.Target)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return unknownTarget(args.Target), nil, nil
	}
	err = eng.Platform.Kick(ctx, target.ID, args.Reason)
	if isRefusal(err) {
		return &Outcome{Status: StatusFailed, Target: target.ID, Reply: fmt.Sprintf("❌ I can't kick %s.", target.Name), Detail: err.Error()}, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("kicking member: %w", err)
	}
	return &Outcome{Status: StatusSuccess, Target: target.ID, Reply: fmt.Sprintf("👢 Kicked %s", target.Name)},
		&audit.Entry{
			Title:       "👢 User Kicked",
			Description: fmt.Sprintf("User: %s\nModerator: %s\nReason: %s", target.Name, evt.Actor.Name, args.Reason),
			Severity:    audit.SeverityPunitive,
		}, nil
}

func (eng *Engine) runMute(ctx context.Context, evt *event.CommandEvent, args command.Args) (*Outcome, *audit.Entry, error) {
	target, err := eng.resolveTarget(ctx, args.Target)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return unknownTarget(args.Target), nil, nil
	}
	until := eng.now().Add(time.Duration(args.Minutes) * time.Minute)
	err = eng.Platform.Timeout(ctx, target.ID, until, args.Reason)
	if isRefusal(err) {
		return &Outcome{Status: StatusFailed, Target: target.ID, Reply: fmt.Sprintf("❌ I can't mute %s.", target.Name), Detail: err.Error()}, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("muting member: %w", err)
	}
	return &Outcome{Status: StatusSuccess, Target: target.ID, Reply: fmt.Sprintf("🔇 Muted %s for %d minutes", target.Name, args.Minutes)},
		&audit.Entry{
			Title:       "🔇 User Muted",
			Description: fmt.Sprintf("User: %s\nModerator: %s\nDuration: %dm\nReason: %s", target.Name, evt.Actor.Name, args.Minutes, args.Reason),
			Severity:    audit.SeverityPunitive,
		}, nil
}

type channelOverride struct {
	perm     platform.Permission
	value    platform.OverrideValue
	reply    string
	title    string
	severity audit.Severity
}

var channelOverrides = map[command.Kind]channelOverride{
	command.KindLock:   {platform.PermissionSendMessages, platform.OverrideDeny, "🔒 Channel locked", "🔒 Channel Locked", audit.SeverityPunitive},
	command.KindUnlock: {platform.PermissionSendMessages, platform.OverrideInherit, "🔓 Channel unlocked", "🔓 Channel Unlocked", audit.SeverityPermissive},
	command.KindHide:   {platform.PermissionViewChannel, platform.OverrideDeny, "🙈 Channel hidden", "🙈 Channel Hidden", audit.SeverityPunitive},
	command.KindUnhide: {platform.PermissionViewChannel, platform.OverrideInherit, "👀 Channel unhidden", "👀 Channel Unhidden", audit.SeverityPermissive},
}

func (eng *Engine) runChannelOverride(ctx context.Context, evt *event.CommandEvent) (*Outcome, *audit.Entry, error) {
	co := channelOverrides[evt.Kind]
	err := eng.Platform.SetPermissionOverride(ctx, evt.ChannelID, co.perm, co.value)
	if isRefusal(err) {
		return &Outcome{Status: StatusFailed, Target: evt.ChannelID, Reply: "❌ I can't change permissions in this channel.", Detail: err.Error()}, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("setting channel permission override: %w", err)
	}
	out := &Outcome{Status: StatusSuccess, Target: evt.ChannelID, Reply: co.reply}
	if !eng.Config.LogChannelActions {
		return out, nil, nil
	}
	return out, &audit.Entry{
		Title:       co.title,
		Description: fmt.Sprintf("Channel: %s\nModerator: %s", eng.channelMention(ctx, evt.ChannelID), evt.Actor.Name),
		Severity:    co.severity,
	}, nil
}

func (eng *Engine) runPurge(ctx context.Context, evt *event.CommandEvent, args command.Args) (*Outcome, *audit.Entry, error) {
	// the invoking message is removed on its own and not counted; someone may already have deleted it
	if evt.MessageID != "" {
		err := eng.Platform.DeleteMessage(ctx, evt.ChannelID, evt.MessageID)
		if errors.Is(err, platform.ErrForbidden) {
			return &Outcome{Status: StatusFailed, Target: evt.ChannelID, Reply: "❌ I can't delete messages here.", Detail: err.Error()}, nil, nil
		} else if err != nil && !errors.Is(err, platform.ErrNotFound) {
			return nil, nil, fmt.Errorf("deleting purge invocation: %w", err)
		}
	}
	deleted, err := eng.Platform.PurgeMessages(ctx, evt.ChannelID, args.Count)
	if isRefusal(err) {
		return &Outcome{Status: StatusFailed, Target: evt.ChannelID, Reply: "❌ I can't delete messages here.", Detail: err.Error()}, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("purging messages: %w", err)
	}
	return &Outcome{
			Status:   StatusSuccess,
			Target:   evt.ChannelID,
			Reply:    fmt.Sprintf("🧹 Deleted `%d` messages", deleted),
			ReplyTTL: eng.Config.PurgeNoticeTTL,
		},
		&audit.Entry{
			Title:       "🧹 Messages Purged",
			Description: fmt.Sprintf("Moderator: %s\nChannel: %s\nCount: `%d`", evt.Actor.Name, eng.channelMention(ctx, evt.ChannelID), deleted),
			Severity:    audit.SeverityBulk,
		}, nil
}

func (eng *Engine) runDM(ctx context.Context, evt *event.CommandEvent, args command.Args) (*Outcome, *audit.Entry, error) {
	target, err := eng.resolveTarget(ctx, args.Target)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return unknownTarget(args.Target), nil, nil
	}
	err = eng.Platform.SendPrivateMessage(ctx, target.ID, args.Body)
	if errors.Is(err, platform.ErrCannotMessage) || isRefusal(err) {
		return &Outcome{Status: StatusFailed, Target: target.ID, Reply: "❌ Cannot DM this user", Detail: err.Error()}, nil, nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("sending private message: %w", err)
	}
	return &Outcome{Status: StatusSuccess, Target: target.ID, Reply: fmt.Sprintf("📩 DM sent to %s", target.Name)},
		&audit.Entry{
			Title:       "📩 Admin DM Sent",
			Description: fmt.Sprintf("To: %s\nAdmin: %s\n```%s```", target.Name, evt.Actor.Name, args.Body),
			Severity:    audit.SeverityAdministrative,
		}, nil
}

func (eng *Engine) channelMention(ctx context.Context, channelID string) string {
	ch, err := eng.Platform.Channel(ctx, channelID)
	if err != nil || ch.Mention == "" {
		return channelID
	}
	return ch.Mention
}

// Sends the primary response. A channel which is gone or closed to the bot is logged, anything else is returned.
func (eng *Engine) reply(ctx context.Context, logger *slog.Logger, channelID string, out *Outcome) error {
	if out.Reply == "" {
		return nil
	}
	msg, err := eng.Platform.SendMessage(ctx, channelID, out.Reply)
	if isRefusal(err) {
		logger.Warn("could not reply to command", "err", err)
		return nil
	} else if err != nil {
		return fmt.Errorf("replying to command: %w", err)
	}
	if out.ReplyTTL > 0 {
		eng.Scheduler.DeleteAfter(msg.ChannelID, msg.ID, out.ReplyTTL)
	}
	return nil
}

func (eng *Engine) canonicalLogLine(logger *slog.Logger, out *Outcome) {
	attrs := []any{
		"status", out.Status,
		"target", out.Target,
	}
	if out.Detail != "" {
		attrs = append(attrs, "detail", out.Detail)
	}
	switch out.Status {
	case StatusSuccess:
		logger.Info("canonical-command-outcome", attrs...)
	default:
		logger.Debug("canonical-command-outcome", attrs...)
	}
}
