// Package conversation owns per-instance chat state.
//
// # Overview
//
// An Instance holds the ordered message history for one independent
// conversation panel: alternating user/assistant turns, the in-flight
// assistant message being built, and a busy flag covering the window from
// submission to the terminal event.
//
// # Lifecycle
//
// A turn moves through three phases:
//
//	Idle → Submitting → Streaming → Idle
//
// BeginTurn enters Submitting synchronously: it appends the immutable user
// message, appends a loading assistant placeholder, and sets busy. Content
// published during Streaming replaces the placeholder's content in place.
// FinishTurn freezes the assistant message and clears busy; it is reached
// on every exit path, success or failure, so observers never see a stuck
// loading state.
//
// # Single writer
//
// All mutation goes through Instance methods and is gated on the target
// message still existing in history. A delta that arrives after the history
// was cleared mid-stream is discarded, not resurrected.
//
// # Scheduler
//
// Scheduler coalesces high-frequency content deltas into throttled
// publishes. RecordDelta accumulates text and arms a timer; FlushNow
// publishes synchronously and is called exactly once when a terminal event
// is observed, guaranteeing the final state carries the complete content.
package conversation
