// ABOUTME: Message type for conversation history entries
// ABOUTME: User messages are immutable; assistant messages mutate until frozen

package conversation

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in an instance's history.
//
// A user message is created synchronously when a turn starts and never
// changes. An assistant message starts loading, accumulates content while
// the stream is open, and is frozen on end or error. Usage and TraceID are
// attached only when a metrics record arrives.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Loading   bool
	Timestamp time.Time
	Model     string
	Usage     map[string]any
	TraceID   string
}
