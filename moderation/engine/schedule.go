package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hearthmod/bailiff/moderation/platform"
)

// Scheduler deletes transient messages (greetings, purge notices) after a delay.
//
// Scheduled deletions are fire-and-forget: a message which is already gone, or a cancelled task, is not an error.
type Scheduler struct {
	Platform platform.Platform
	Logger   *slog.Logger
	// upper bound on a single delete call
	Timeout time.Duration

	mu      sync.Mutex
	wg      sync.WaitGroup
	pending map[string]*time.Timer
	closed  bool
}

func NewScheduler(p platform.Platform, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		Platform: p,
		Logger:   logger,
		Timeout:  10 * time.Second,
		pending:  make(map[string]*time.Timer),
	}
}

func (s *Scheduler) DeleteAfter(channelID, messageID string, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.pending[messageID]; ok && t.Stop() {
		s.wg.Done()
	}
	s.wg.Add(1)
	s.pending[messageID] = time.AfterFunc(delay, func() {
		s.fire(channelID, messageID)
	})
}

// Drops a pending deletion, eg when the message was removed by someone else first. Returns true if a task was pending.
func (s *Scheduler) Cancel(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.pending[messageID]
	if !ok {
		return false
	}
	delete(s.pending, messageID)
	if t.Stop() {
		s.wg.Done()
	}
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stops all pending timers and waits for in-flight deletions. Further DeleteAfter calls are ignored.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.pending {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.pending, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire(channelID, messageID string) {
	defer s.wg.Done()

	s.mu.Lock()
	_, ok := s.pending[messageID]
	delete(s.pending, messageID)
	s.mu.Unlock()
	if !ok {
		// cancelled after the timer already fired
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	err := s.Platform.DeleteMessage(ctx, channelID, messageID)
	switch {
	case err == nil:
		scheduledDeleteCount.WithLabelValues("deleted").Inc()
	case errors.Is(err, platform.ErrNotFound):
		scheduledDeleteCount.WithLabelValues("gone").Inc()
	default:
		s.Logger.Debug("scheduled message deletion failed", "err", err, "channel", channelID, "message", messageID)
		scheduledDeleteCount.WithLabelValues("failed").Inc()
	}
}
