// Package engine orchestrates streaming prompt runs end to end.
//
// # Overview
//
// The Engine owns a bounded set of conversation instances. For each turn it
// builds the request payload from a snapshot of the instance configuration,
// opens the NDJSON stream, drives the frame decoder and interpreter, and
// applies the resulting events: session ids go to the registry, content
// deltas to the throttled scheduler, metrics onto the in-flight message.
//
// # One writer per instance
//
// A Run invocation owns its instance until the turn reaches a terminal
// state. Decoding, interpretation and state mutation happen synchronously
// between reads, so no two mutations for the same instance ever interleave.
// Different instances stream concurrently and independently; one instance's
// error or cancellation never touches another.
//
// # Cleanup
//
// Every open stream registers a cancellation handle keyed by instance id.
// Stop, ClearHistory and Close cancel through that handle, and the turn
// goroutine guarantees the freeze-message/clear-busy transition on every
// exit path (transport failure, protocol error event, cancellation, plain
// end), so observers never see a stuck loading state. Failures are not
// retried; the user resubmits.
package engine
