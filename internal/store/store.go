// ABOUTME: Recorder interface and row types for local transcript persistence
// ABOUTME: Sessions and their messages are mirrored locally as turns complete

package store

import (
	"context"
	"time"
)

// Session is one server-side chat session observed by this client. Instance
// is the caller-assigned panel label the session was last bound to.
type Session struct {
	ID        string
	Instance  string
	Model     string
	UpdatedAt time.Time
}

// Message is one transcript entry belonging to a session.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Model     string
	TraceID   string
	CreatedAt time.Time
}

// Recorder persists completed turns. The engine calls it after each
// successful end event; a nil Recorder disables persistence entirely.
type Recorder interface {
	// SaveSession inserts or refreshes a session row.
	SaveSession(ctx context.Context, session *Session) error

	// SaveMessages appends transcript entries for a session.
	SaveMessages(ctx context.Context, messages []*Message) error

	// ListMessages returns a session's transcript in chronological order.
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// DeleteSession removes a session row and its transcript.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases the underlying storage.
	Close() error
}
