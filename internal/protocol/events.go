// ABOUTME: Closed StreamEvent union and interpretation of inbound NDJSON records
// ABOUTME: Unknown discriminants are skipped; malformed records surface an error

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Wire discriminants accepted on inbound records.
const (
	typeSession     = "session"
	typeSessionInfo = "session_info"
	typeMetrics     = "metrics"
	typeContent     = "content"
	typeMessage     = "message" // accepted synonym for "content", still sent by older backends
	typeEnd         = "end"
	typeError       = "error"
)

// StreamEvent is one inbound event for a prompt run. The concrete types are
// SessionEstablished, Metrics, ContentDelta, End and ErrorEvent; no other
// implementations exist.
type StreamEvent interface {
	streamEvent()
}

// SessionEstablished reports the session id the server bound this turn to.
// The server is the source of truth for session identity.
type SessionEstablished struct {
	SessionID string
}

// Metrics carries token usage and the trace id for the in-flight turn.
type Metrics struct {
	Usage   map[string]any
	TraceID string
}

// ContentDelta is an incremental fragment of assistant output.
type ContentDelta struct {
	Text string
}

// End marks successful completion of the turn.
type End struct{}

// ErrorEvent marks failed completion of the turn.
type ErrorEvent struct {
	Message string
}

func (SessionEstablished) streamEvent() {}
func (Metrics) streamEvent()            {}
func (ContentDelta) streamEvent()       {}
func (End) streamEvent()                {}
func (ErrorEvent) streamEvent()         {}

// record mirrors the superset of fields an inbound record may carry.
type record struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Content   string          `json:"content"`
	Error     string          `json:"error"`
	Metrics   *metricsPayload `json:"metrics"`
}

type metricsPayload struct {
	Usage   map[string]any `json:"usage"`
	TraceID string         `json:"traceId"`
}

// Interpret parses one complete record into a StreamEvent.
//
// Blank lines and records with an unknown discriminant return (nil, nil) so
// the caller can skip them; unknown types are tolerated for forward
// compatibility. A record that fails to parse returns an error; the caller
// logs and skips it, a single malformed line never aborts the turn.
func Interpret(line []byte) (StreamEvent, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var rec record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, fmt.Errorf("parsing stream record: %w", err)
	}

	switch rec.Type {
	case typeSession, typeSessionInfo:
		return SessionEstablished{SessionID: rec.SessionID}, nil

	case typeMetrics:
		ev := Metrics{}
		if rec.Metrics != nil {
			ev.Usage = rec.Metrics.Usage
			ev.TraceID = rec.Metrics.TraceID
		}
		return ev, nil

	case typeContent, typeMessage:
		return ContentDelta{Text: rec.Content}, nil

	case typeEnd:
		return End{}, nil

	case typeError:
		return ErrorEvent{Message: rec.Error}, nil

	default:
		return nil, nil
	}
}
