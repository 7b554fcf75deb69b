// ABOUTME: Instance state machine for one independent conversation panel
// ABOUTME: History, in-flight assistant message, and busy flag behind a single mutation path

package conversation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTurnInFlight indicates a turn was submitted while a previous one for
// the same instance had not yet reached a terminal state.
var ErrTurnInFlight = errors.New("turn already in flight")

// UpdateFunc is invoked after every observable change to an instance.
// Callers use it to schedule a re-render; it must not block.
type UpdateFunc func(instanceID string)

// Instance is the conversation state for one panel: ordered history, the
// session id currently bound to it, and whether a turn is in flight.
//
// Methods are safe for concurrent use. The engine is the only writer for a
// given instance; the mutex exists because the throttled scheduler publishes
// from a timer goroutine.
type Instance struct {
	id       string
	onUpdate UpdateFunc

	mu        sync.Mutex
	sessionID string
	history   []Message
	busy      bool
}

// NewInstance creates an idle instance with an empty history. onUpdate may
// be nil.
func NewInstance(id string, onUpdate UpdateFunc) *Instance {
	return &Instance{id: id, onUpdate: onUpdate}
}

// ID returns the caller-assigned instance identifier.
func (i *Instance) ID() string {
	return i.id
}

// Busy reports whether a turn is in flight.
func (i *Instance) Busy() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.busy
}

// SessionID returns the session currently bound to this instance, or empty.
func (i *Instance) SessionID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sessionID
}

// SetSessionID records the session the server bound this instance to.
func (i *Instance) SetSessionID(sessionID string) {
	i.mu.Lock()
	i.sessionID = sessionID
	i.mu.Unlock()
}

// History returns a copy of the message history in chronological order.
func (i *Instance) History() []Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Message, len(i.history))
	copy(out, i.history)
	return out
}

// BeginTurn enters the Submitting state: it appends the immutable user
// message, appends a loading assistant placeholder, and marks the instance
// busy. It returns the placeholder's id so streamed content can be routed to
// it. Returns ErrTurnInFlight if a turn is already open.
func (i *Instance) BeginTurn(userText, model string) (string, error) {
	i.mu.Lock()
	if i.busy {
		i.mu.Unlock()
		return "", ErrTurnInFlight
	}

	now := time.Now()
	i.history = append(i.history, Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   userText,
		Timestamp: now,
	})

	assistantID := uuid.New().String()
	i.history = append(i.history, Message{
		ID:        assistantID,
		Role:      RoleAssistant,
		Loading:   true,
		Timestamp: now,
		Model:     model,
	})
	i.busy = true
	i.mu.Unlock()

	i.notify()
	return assistantID, nil
}

// SetContent replaces the content of the in-flight assistant message. The
// value is the full accumulated content, not a delta, so repeated publishes
// of the same state are harmless.
//
// Returns false if the message is no longer in history (cleared mid-stream)
// or already frozen; the update is discarded in that case.
func (i *Instance) SetContent(messageID, content string) bool {
	i.mu.Lock()
	msg := i.find(messageID)
	if msg == nil || !msg.Loading {
		i.mu.Unlock()
		return false
	}
	msg.Content = content
	i.mu.Unlock()

	i.notify()
	return true
}

// SetMetrics attaches token usage and the trace id to the in-flight
// assistant message. Applied immediately, independent of the throttle.
func (i *Instance) SetMetrics(messageID string, usage map[string]any, traceID string) bool {
	i.mu.Lock()
	msg := i.find(messageID)
	if msg == nil {
		i.mu.Unlock()
		return false
	}
	msg.Usage = usage
	msg.TraceID = traceID
	i.mu.Unlock()

	i.notify()
	return true
}

// FinishTurn freezes the assistant message and returns the instance to Idle.
// A non-empty errText replaces the message content with the user-visible
// error string. The busy flag is cleared even when the message no longer
// exists, so the instance never sticks in a loading state.
func (i *Instance) FinishTurn(messageID, errText string) {
	i.mu.Lock()
	if msg := i.find(messageID); msg != nil {
		msg.Loading = false
		if errText != "" {
			msg.Content = errText
		}
	}
	i.busy = false
	i.mu.Unlock()

	i.notify()
}

// Clear drops the history and unbinds the session. Permitted regardless of
// busy state; the engine cancels any in-flight stream first, and deltas that
// still arrive are discarded by the message-existence gate.
func (i *Instance) Clear() {
	i.mu.Lock()
	i.history = nil
	i.sessionID = ""
	i.mu.Unlock()

	i.notify()
}

// RestoreHistory replaces the history and session binding wholesale, used
// when re-attaching to a server-held session.
func (i *Instance) RestoreHistory(messages []Message, sessionID string) {
	i.mu.Lock()
	i.history = make([]Message, len(messages))
	copy(i.history, messages)
	i.sessionID = sessionID
	i.mu.Unlock()

	i.notify()
}

// find returns a pointer into history for in-place mutation. Caller holds
// the mutex.
func (i *Instance) find(messageID string) *Message {
	for idx := range i.history {
		if i.history[idx].ID == messageID {
			return &i.history[idx]
		}
	}
	return nil
}

func (i *Instance) notify() {
	if i.onUpdate != nil {
		i.onUpdate(i.id)
	}
}
