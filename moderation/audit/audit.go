package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/hearthmod/bailiff/moderation/platform"
)

const DefaultFooter = "Moderation Logs"

// Severity picks the color of an audit entry. Purely cosmetic.
type Severity int

const (
	SeverityPunitive Severity = iota
	SeverityRestorative
	SeverityPermissive
	SeverityAdministrative
	SeverityBulk
)

func (s Severity) String() string {
	switch s {
	case SeverityPunitive:
		return "punitive"
	case SeverityRestorative:
		return "restorative"
	case SeverityPermissive:
		return "permissive"
	case SeverityAdministrative:
		return "administrative"
	case SeverityBulk:
		return "bulk"
	default:
		return "unknown"
	}
}

// RGB color for the severity.
func (s Severity) Color() int {
	switch s {
	case SeverityPunitive:
		return 0xE74C3C // red
	case SeverityRestorative:
		return 0xE67E22 // orange
	case SeverityPermissive:
		return 0x2ECC71 // green
	case SeverityAdministrative:
		return 0x3498DB // blue
	case SeverityBulk:
		return 0x9B59B6 // purple
	default:
		return 0x95A5A6
	}
}

// One human-readable record of a moderation action.
type Entry struct {
	Title       string
	Description string
	Severity    Severity
}

// Optional secondary sink, such as a Slack channel.
type Notifier interface {
	Notify(ctx context.Context, entry Entry) error
}

// Logger writes audit entries to a fixed channel of the community, and to any configured notifiers.
//
// Failures never propagate: the audit trail is a best-effort side channel.
type Logger struct {
	Platform    platform.Platform
	Destination string
	Footer      string
	Notifiers   []Notifier
	Logger      *slog.Logger
}

func NewLogger(p platform.Platform, destination string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Logger{
		Platform:    p,
		Destination: destination,
		Footer:      DefaultFooter,
		Logger:      logger.With("system", "audit"),
	}
}

func (l *Logger) Emit(ctx context.Context, entry Entry) {
	for _, n := range l.Notifiers {
		if err := n.Notify(ctx, entry); err != nil {
			l.Logger.Warn("audit notifier failed", "err", err, "title", entry.Title)
		}
	}

	if l.Destination == "" {
		auditEntryCount.WithLabelValues("unconfigured").Inc()
		return
	}
	ch, err := l.Platform.Channel(ctx, l.Destination)
	if err != nil {
		if !errors.Is(err, platform.ErrNotFound) {
			l.Logger.Warn("resolving audit destination", "err", err, "channel", l.Destination)
		}
		auditEntryCount.WithLabelValues("unresolved").Inc()
		return
	}
	footer := l.Footer
	if footer == "" {
		footer = DefaultFooter
	}
	_, err = l.Platform.SendEmbed(ctx, ch.ID, platform.Embed{
		Title:       entry.Title,
		Description: entry.Description,
		Color:       entry.Severity.Color(),
		Footer:      footer,
	})
	if err != nil {
		l.Logger.Warn("sending audit entry", "err", err, "channel", ch.ID, "title", entry.Title)
		auditEntryCount.WithLabelValues("failed").Inc()
		return
	}
	auditEntryCount.WithLabelValues("sent").Inc()
}
