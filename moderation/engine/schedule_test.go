package engine

import (
	"testing"
	"time"

	"github.com/hearthmod/bailiff/moderation/platform"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestSchedulerDeletes(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	p := platform.NewMockPlatform()
	p.InsertChannel(platform.Channel{ID: "c1"})
	first := p.Seed("c1", 1)
	second := p.Seed("c1", 1)

	s := NewScheduler(p, nil)
	s.DeleteAfter("c1", first, time.Millisecond)
	s.DeleteAfter("c1", second, time.Hour)
	assert.Eventually(func() bool { return p.WasDeleted(first) }, time.Second, time.Millisecond)
	assert.Equal(1, s.Pending())

	s.Close()
	assert.Equal(0, s.Pending())
	assert.False(p.WasDeleted(second))

	// ignored once closed
	s.DeleteAfter("c1", second, time.Millisecond)
	assert.Equal(0, s.Pending())
}

func TestSchedulerCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	assert := assert.New(t)

	p := platform.NewMockPlatform()
	p.InsertChannel(platform.Channel{ID: "c1"})
	id := p.Seed("c1", 1)

	s := NewScheduler(p, nil)
	defer s.Close()
	s.DeleteAfter("c1", id, time.Hour)
	assert.True(s.Cancel(id))
	assert.False(s.Cancel(id))
	assert.False(s.Cancel("unknown"))
	assert.Equal(0, s.Pending())
}

func TestSchedulerMessageAlreadyGone(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := platform.NewMockPlatform()
	p.InsertChannel(platform.Channel{ID: "c1"})

	s := NewScheduler(p, nil)
	s.DeleteAfter("c1", "missing", time.Millisecond)
	assert.Eventually(t, func() bool { return s.Pending() == 0 }, time.Second, time.Millisecond)
	s.Close()
	assert.Empty(t, p.Deleted)
}
