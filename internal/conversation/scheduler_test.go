// ABOUTME: Tests for the throttled update scheduler
// ABOUTME: Final flush must always carry the exact concatenation of deltas

package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector records published content snapshots.
type collector struct {
	mu        sync.Mutex
	published []string
}

func (c *collector) publish(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, content)
}

func (c *collector) last() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.published) == 0 {
		return "", false
	}
	return c.published[len(c.published)-1], true
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func TestScheduler_FlushPublishesConcatenation(t *testing.T) {
	c := &collector{}
	s := NewScheduler(time.Hour, c.publish) // timer never fires on its own

	s.RecordDelta("Hel")
	s.RecordDelta("lo")
	assert.Zero(t, c.count())

	s.FlushNow()

	last, ok := c.last()
	require.True(t, ok)
	assert.Equal(t, "Hello", last)
}

func TestScheduler_TimerFirePublishes(t *testing.T) {
	c := &collector{}
	s := NewScheduler(5*time.Millisecond, c.publish)

	s.RecordDelta("Hi")

	require.Eventually(t, func() bool {
		last, ok := c.last()
		return ok && last == "Hi"
	}, time.Second, time.Millisecond)
}

func TestScheduler_FlushAfterTimerFireIsIdempotent(t *testing.T) {
	c := &collector{}
	s := NewScheduler(5*time.Millisecond, c.publish)

	s.RecordDelta("Hello")
	require.Eventually(t, func() bool { return c.count() > 0 }, time.Second, time.Millisecond)

	s.FlushNow()

	last, ok := c.last()
	require.True(t, ok)
	assert.Equal(t, "Hello", last)
}

func TestScheduler_DeltasAfterTimerAccumulate(t *testing.T) {
	c := &collector{}
	s := NewScheduler(5*time.Millisecond, c.publish)

	s.RecordDelta("Hel")
	require.Eventually(t, func() bool { return c.count() > 0 }, time.Second, time.Millisecond)

	// The tail delta arrives after the last timer fire; only the final
	// flush publishes it.
	s.RecordDelta("lo")
	s.FlushNow()

	last, ok := c.last()
	require.True(t, ok)
	assert.Equal(t, "Hello", last)
	assert.Equal(t, "Hello", s.Content())
}

func TestScheduler_ManyDeltasOnePublish(t *testing.T) {
	c := &collector{}
	s := NewScheduler(50*time.Millisecond, c.publish)

	for i := 0; i < 100; i++ {
		s.RecordDelta("x")
	}
	s.FlushNow()

	require.Eventually(t, func() bool {
		last, ok := c.last()
		return ok && len(last) == 100
	}, time.Second, time.Millisecond)

	// Far fewer publishes than deltas: one flush plus at most one timer fire.
	assert.LessOrEqual(t, c.count(), 2)
}

func TestScheduler_DefaultDelay(t *testing.T) {
	s := NewScheduler(0, func(string) {})
	assert.Equal(t, DefaultPublishDelay, s.delay)
}
