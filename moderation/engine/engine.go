package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthmod/bailiff/moderation/audit"
	"github.com/hearthmod/bailiff/moderation/gate"
	"github.com/hearthmod/bailiff/moderation/platform"
	"github.com/hearthmod/bailiff/moderation/rolestore"

	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("bailiff/engine")

// Deployment-time settings. Copied into the Engine and never mutated afterwards.
type Config struct {
	// Role IDs which persist across leave and rejoin
	TrackedRoles []string
	// Channel for the welcome message; empty disables the greeting
	GreetingChannelID string
	GreetingTTL       time.Duration
	PurgeNoticeTTL    time.Duration
	// Audit-log reason attached to automated role re-application
	RestoreReason string
	// Whether lock/unlock/hide/unhide write audit entries
	LogChannelActions bool
}

func DefaultConfig() Config {
	return Config{
		GreetingTTL:       10 * time.Second,
		PurgeNoticeTTL:    3 * time.Second,
		RestoreReason:     "Tracked role re-applied on rejoin",
		LogChannelActions: true,
	}
}

// Engine handles membership lifecycle events and moderator commands for a single community.
//
// Handlers may be called concurrently; work on the same member is serialized.
type Engine struct {
	Logger    *slog.Logger
	Platform  platform.Platform
	Store     rolestore.RoleStore
	Audit     *audit.Logger
	Gate      gate.Gate
	Scheduler *Scheduler
	Config    Config

	locks *xsync.MapOf[string, *memberLock]
	now   func() time.Time
}

// refs counts holders and waiters; the entry is dropped once it reaches zero
type memberLock struct {
	mu   sync.Mutex
	refs int
}

func NewEngine(p platform.Platform, store rolestore.RoleStore, auditLog *audit.Logger, config Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(p, "", logger)
	}
	defaults := DefaultConfig()
	if config.GreetingTTL <= 0 {
		config.GreetingTTL = defaults.GreetingTTL
	}
	if config.PurgeNoticeTTL <= 0 {
		config.PurgeNoticeTTL = defaults.PurgeNoticeTTL
	}
	if config.RestoreReason == "" {
		config.RestoreReason = defaults.RestoreReason
	}
	config.TrackedRoles = append([]string{}, config.TrackedRoles...)
	return &Engine{
		Logger:    logger,
		Platform:  p,
		Store:     store,
		Audit:     auditLog,
		Gate:      gate.NewGate(),
		Scheduler: NewScheduler(p, logger.With("system", "scheduler")),
		Config:    config,
		locks:     xsync.NewMapOf[string, *memberLock](),
		now:       time.Now,
	}
}

// Stops pending scheduled deletions.
func (eng *Engine) Close() {
	eng.Scheduler.Close()
}

// Cancels a scheduled deletion for a message that was deleted by someone else.
func (eng *Engine) MessageDeleted(messageID string) {
	if eng.Scheduler.Cancel(messageID) {
		eng.Logger.Debug("cancelled scheduled deletion", "message", messageID)
	}
}

func (eng *Engine) lockMember(memberID string) func() {
	l, _ := eng.locks.Compute(memberID, func(l *memberLock, loaded bool) (*memberLock, bool) {
		if !loaded {
			l = &memberLock{}
		}
		l.refs++
		return l, false
	})
	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		eng.locks.Compute(memberID, func(l *memberLock, loaded bool) (*memberLock, bool) {
			l.refs--
			return l, l.refs == 0
		})
	}
}

// similar to an HTTP server, we want to recover any panics from handler execution. They are turned into errors so they still surface.
func (eng *Engine) recoverPanic(evtType string, err *error) {
	if r := recover(); r != nil {
		eng.Logger.Error("event handler exception", "err", r, "type", evtType)
		*err = fmt.Errorf("panic handling %s event: %v", evtType, r)
	}
}

func (eng *Engine) track(evtType string, start time.Time, err error) {
	eventProcessDuration.WithLabelValues(evtType).Observe(time.Since(start).Seconds())
	eventProcessCount.WithLabelValues(evtType).Inc()
	if err != nil {
		eventErrorCount.WithLabelValues(evtType).Inc()
	}
}

func (eng *Engine) emit(ctx context.Context, entry audit.Entry) {
	if eng.Audit == nil {
		return
	}
	eng.Audit.Emit(ctx, entry)
}
