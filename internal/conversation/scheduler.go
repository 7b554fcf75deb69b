// ABOUTME: Scheduler coalesces content deltas into throttled publishes
// ABOUTME: Guarantees a final un-throttled flush on stream completion or error

package conversation

import (
	"strings"
	"sync"
	"time"
)

// DefaultPublishDelay is the throttle window for content updates. A rapid
// token stream would otherwise trigger one observer update per token.
const DefaultPublishDelay = 50 * time.Millisecond

// Scheduler accumulates content deltas for one in-flight assistant message
// and publishes the running concatenation at most once per delay window.
//
// Publish receives the full accumulated content, so a flush racing a timer
// fire cannot duplicate or corrupt output: the last write wins with
// identical data.
type Scheduler struct {
	delay   time.Duration
	publish func(content string)

	mu    sync.Mutex
	buf   strings.Builder
	timer *time.Timer
}

// NewScheduler creates a scheduler publishing through the given callback.
// A non-positive delay falls back to DefaultPublishDelay.
func NewScheduler(delay time.Duration, publish func(content string)) *Scheduler {
	if delay <= 0 {
		delay = DefaultPublishDelay
	}
	return &Scheduler{delay: delay, publish: publish}
}

// RecordDelta appends a fragment to the content buffer and arms the publish
// timer if one is not already armed.
func (s *Scheduler) RecordDelta(text string) {
	s.mu.Lock()
	s.buf.WriteString(text)
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
	}
	s.mu.Unlock()
}

// FlushNow cancels any pending timer and publishes the accumulated content
// synchronously. Called exactly once when a terminal event is observed;
// calling it after the timer already fired naturally is harmless.
func (s *Scheduler) FlushNow() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	content := s.buf.String()
	s.mu.Unlock()

	s.publish(content)
}

// Content returns the accumulated content so far.
func (s *Scheduler) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	content := s.buf.String()
	s.mu.Unlock()

	s.publish(content)
}
