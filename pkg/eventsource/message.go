// Package eventsource implements an incremental decoder for the
// text/event-stream wire format used by Server-Sent Events (SSE).
//
// The decoder is three layered state machines: a LineSplitter turns
// arbitrary byte chunks into logical lines, an Assembler folds lines into
// messages and side-channel callbacks, and Consume drives both from an
// io.Reader through a TextDecoder. Chunk boundaries never affect the
// output: feeding a stream byte by byte yields exactly the messages of
// feeding it whole.
//
// A reconnecting Client and a wire-format Encoder round out the package.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package eventsource

import "time"

// Message is a single reconstructed event-stream message, delimited by a
// blank line in the byte stream.
type Message struct {
	// ID is the last accepted "id:" field value. Values containing a NUL
	// byte are rejected per the SSE spec and leave ID unchanged.
	ID string

	// Event is the event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Event string

	// Data is the concatenated contents of all "data:" lines for this
	// message, joined with "\n" (per the SSE spec, multiple data fields
	// are joined with a single newline).
	Data string

	// Retry is the reconnection interval from the last well-formed
	// "retry:" field inside this message, or zero when none was seen.
	Retry time.Duration
}

// MessageFunc receives each completed message.
type MessageFunc func(Message)

// IDFunc receives each accepted "id:" field value at parse time, before
// the surrounding message completes. Transports use it to keep the
// Last-Event-ID reconnect header current even when a stream dies
// mid-message.
type IDFunc func(id string)

// RetryFunc receives each well-formed "retry:" interval at parse time.
type RetryFunc func(d time.Duration)

// LineFunc receives each complete line from a LineSplitter, terminator
// stripped. The line slice is reused between calls and must not be
// retained. endedCR reports termination by a bare "\r", whose matching
// "\n" may still arrive at the start of the next chunk.
type LineFunc func(line []byte, endedCR bool)
