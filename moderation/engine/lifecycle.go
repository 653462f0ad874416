package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hearthmod/bailiff/moderation/audit"
	"github.com/hearthmod/bailiff/moderation/event"
	"github.com/hearthmod/bailiff/moderation/platform"

	"go.opentelemetry.io/otel/attribute"
)

// Records every tracked role the member held at the moment of leaving.
//
// Each role is recorded independently: a failed write is logged and does not prevent the others. All failures are returned together.
func (eng *Engine) ProcessMemberLeave(ctx context.Context, evt *event.MemberLeaveEvent) (err error) {
	start := time.Now()
	defer func() { eng.track(event.TypeMemberLeave, start, err) }()
	defer eng.recoverPanic(event.TypeMemberLeave, &err)

	if err := evt.Validate(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "ProcessMemberLeave")
	defer span.End()
	span.SetAttributes(attribute.String("member", evt.Member.ID))

	logger := eng.Logger.With("member", evt.Member.ID, "event", event.TypeMemberLeave)

	unlock := eng.lockMember(evt.Member.ID)
	defer unlock()

	var errs []error
	recorded := []string{}
	for _, roleID := range eng.Config.TrackedRoles {
		if !evt.Member.HasRole(roleID) {
			continue
		}
		if err := eng.Store.Record(ctx, evt.Member.ID, roleID); err != nil {
			logger.Error("failed to record tracked role", "err", err, "role", roleID)
			errs = append(errs, fmt.Errorf("role %s: %w", roleID, err))
			continue
		}
		rolesRecordedCount.Inc()
		recorded = append(recorded, roleID)
	}
	if len(recorded) > 0 {
		logger.Info("recorded tracked roles", "roles", recorded)
	}
	return errors.Join(errs...)
}

// Greets the member, then re-applies any tracked roles recorded for them and writes a single audit entry listing the restored roles.
func (eng *Engine) ProcessMemberJoin(ctx context.Context, evt *event.MemberJoinEvent) (err error) {
	start := time.Now()
	defer func() { eng.track(event.TypeMemberJoin, start, err) }()
	defer eng.recoverPanic(event.TypeMemberJoin, &err)

	if err := evt.Validate(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "ProcessMemberJoin")
	defer span.End()
	span.SetAttributes(attribute.String("member", evt.Member.ID))

	logger := eng.Logger.With("member", evt.Member.ID, "event", event.TypeMemberJoin)

	eng.greet(ctx, logger, evt)

	unlock := eng.lockMember(evt.Member.ID)
	defer unlock()

	restored, err := eng.restoreRoles(ctx, logger, evt.Member)
	if len(restored) > 0 {
		names := make([]string, len(restored))
		for i, r := range restored {
			names[i] = r.Name
		}
		logger.Info("restored tracked roles", "roles", names)
		eng.emit(ctx, audit.Entry{
			Title:       "♻️ Tracked Roles Restored",
			Description: fmt.Sprintf("User: %s\nID: `%s`\nRoles: %s", evt.Member.Mention, evt.Member.ID, strings.Join(names, ", ")),
			Severity:    audit.SeverityRestorative,
		})
	}
	return err
}

// best-effort: failures are logged and never block role restoration
func (eng *Engine) greet(ctx context.Context, logger *slog.Logger, evt *event.MemberJoinEvent) {
	if eng.Config.GreetingChannelID == "" {
		return
	}
	text := fmt.Sprintf("👋 Welcome to **%s**, %s!", evt.CommunityName, evt.Member.Mention)
	msg, err := eng.Platform.SendMessage(ctx, eng.Config.GreetingChannelID, text)
	if err != nil {
		logger.Warn("failed to send greeting", "err", err, "channel", eng.Config.GreetingChannelID)
		return
	}
	eng.Scheduler.DeleteAfter(msg.ChannelID, msg.ID, eng.Config.GreetingTTL)
}

// Returns the roles successfully applied. Roles which no longer exist are skipped silently; platform refusals are logged and skipped. Store failures and unexpected platform failures are returned.
func (eng *Engine) restoreRoles(ctx context.Context, logger *slog.Logger, member platform.Member) ([]platform.Role, error) {
	recorded, err := eng.Store.Lookup(ctx, member.ID)
	if err != nil {
		return nil, fmt.Errorf("looking up tracked roles: %w", err)
	}
	if len(recorded) == 0 {
		return nil, nil
	}
	sort.Strings(recorded)

	current, err := eng.Platform.Roles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching community roles: %w", err)
	}
	byID := make(map[string]platform.Role, len(current))
	for _, r := range current {
		byID[r.ID] = r
	}

	var errs []error
	restored := []platform.Role{}
	for _, roleID := range recorded {
		role, ok := byID[roleID]
		if !ok {
			logger.Debug("skipping tracked role which no longer exists", "role", roleID)
			continue
		}
		err := eng.Platform.AddRole(ctx, member.ID, role.ID, eng.Config.RestoreReason)
		if errors.Is(err, platform.ErrForbidden) || errors.Is(err, platform.ErrNotFound) {
			logger.Warn("platform refused tracked role re-application", "err", err, "role", role.ID)
			continue
		} else if err != nil {
			logger.Error("failed to re-apply tracked role", "err", err, "role", role.ID)
			errs = append(errs, fmt.Errorf("role %s: %w", role.ID, err))
			continue
		}
		rolesRestoredCount.Inc()
		restored = append(restored, role)
	}
	return restored, errors.Join(errs...)
}
