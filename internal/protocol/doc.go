// Package protocol defines the wire contract for streaming prompt runs.
//
// A prompt run is a single POST whose response body is a sequence of
// newline-terminated JSON records. Each record carries a "type" discriminant:
//
//	session / session_info  server assigned or confirmed a session id
//	metrics                 token usage and trace id for the turn
//	content / message       an incremental fragment of assistant output
//	end                     terminal, success
//	error                   terminal, failure
//
// The package provides three pieces:
//
//   - StreamRequest: the outbound request payload, built once per turn
//   - FrameDecoder: splits raw byte chunks into complete records, tolerating
//     chunk boundaries that fall mid-record
//   - Interpret: maps one record onto the closed StreamEvent union
//
// Nothing here touches shared state. The decoder and interpreter return
// data; the engine applies effects.
package protocol
