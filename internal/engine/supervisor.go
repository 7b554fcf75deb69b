// ABOUTME: Tracks cancellation handles for in-flight streams, one per instance
// ABOUTME: Teardown cancels every open handle so no background stream dangles

package engine

import (
	"context"
	"sync"
)

// supervisor holds the cancellation handle for each instance's in-flight
// stream. Registering a handle for an instance that already has one cancels
// the old stream first; that should not happen under the busy gate, but a
// leaked stream is worse than a redundant cancel.
type supervisor struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newSupervisor() *supervisor {
	return &supervisor{cancels: make(map[string]context.CancelFunc)}
}

// register stores the cancel handle for an instance's open stream.
func (s *supervisor) register(instanceID string, cancel context.CancelFunc) {
	s.mu.Lock()
	prev := s.cancels[instanceID]
	s.cancels[instanceID] = cancel
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// release drops the handle once the turn reaches a terminal state. The
// stored context is cancelled as well, releasing any timers tied to it.
func (s *supervisor) release(instanceID string) {
	s.mu.Lock()
	cancel := s.cancels[instanceID]
	delete(s.cancels, instanceID)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// stop cancels the instance's in-flight stream, if any. The handle itself
// is released by the turn goroutine on its way out.
func (s *supervisor) stop(instanceID string) {
	s.mu.Lock()
	cancel := s.cancels[instanceID]
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// closeAll cancels every open stream. Used on teardown.
func (s *supervisor) closeAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.cancels))
	for _, cancel := range s.cancels {
		cancels = append(cancels, cancel)
	}
	s.cancels = make(map[string]context.CancelFunc)
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
