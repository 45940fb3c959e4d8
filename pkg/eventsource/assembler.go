package eventsource

import (
	"bytes"
	"strconv"
	"time"
)

// Assembler folds a sequence of lines into messages and side-channel
// callbacks. It implements the field grammar of the SSE spec: one
// "name:value" field per line with a single optional space stripped after
// the colon, comment lines introduced by ":" skipped entirely, and a blank
// line completing the in-progress message.
//
// All callback fields are optional; a nil callback is skipped.
type Assembler struct {
	// OnMessage receives each completed message.
	OnMessage MessageFunc

	// OnID receives each accepted id value as the field is parsed.
	OnID IDFunc

	// OnRetry receives each well-formed retry interval as the field is
	// parsed.
	OnRetry RetryFunc

	// current accumulates fields for the message being built.
	current Message

	// open is set once a content field line (id, event, or data) lands in
	// the current message. Blank lines emit only when open, so separator
	// runs and retry-only blocks produce no spurious empty messages.
	open bool
}

// fieldKind is the closed set of field names the assembler acts on.
// Unrecognized names parse cleanly and are then discarded, which keeps
// the format forward compatible without stringly-typed dispatch.
type fieldKind int

const (
	fieldUnknown fieldKind = iota
	fieldEvent
	fieldData
	fieldID
	fieldRetry
)

func kindOf(name []byte) fieldKind {
	switch string(name) {
	case "event":
		return fieldEvent
	case "data":
		return fieldData
	case "id":
		return fieldID
	case "retry":
		return fieldRetry
	}
	return fieldUnknown
}

// Line consumes one line from a LineSplitter. The terminator style does
// not affect assembly; the flag is accepted so the method satisfies
// LineFunc directly.
func (a *Assembler) Line(line []byte, _ bool) {
	if len(line) == 0 {
		a.flush()
		return
	}

	// Lines starting with ':' are comments. They contribute nothing, not
	// even toward opening the message.
	if line[0] == ':' {
		return
	}

	name, value := splitField(line)

	switch kindOf(name) {
	case fieldEvent:
		a.open = true
		// Last write wins.
		a.current.Event = string(value)

	case fieldData:
		a.open = true
		if a.current.Data != "" {
			// Multiple data fields are joined with "\n".
			a.current.Data += "\n"
		}
		a.current.Data += string(value)

	case fieldID:
		// The line opens the message even when its value is rejected;
		// only the assignment and the side-channel call are skipped. An
		// id containing NUL is ignored per the SSE spec.
		a.open = true
		if bytes.IndexByte(value, 0) >= 0 {
			return
		}
		a.current.ID = string(value)
		if a.OnID != nil {
			a.OnID(a.current.ID)
		}

	case fieldRetry:
		// Retry is reconnect advice, not message content; on its own it
		// does not open a message.
		d, ok := parseRetry(value)
		if !ok {
			return
		}
		a.current.Retry = d
		if a.OnRetry != nil {
			a.OnRetry(d)
		}
	}
}

// Reset drops the in-progress record without emitting it. Clients call it
// between reconnect attempts so a torn message from a dead connection
// cannot leak fields into the next one.
func (a *Assembler) Reset() {
	a.current = Message{}
	a.open = false
}

// flush clears the record on every blank line and emits the message only
// when a content field opened it. Resetting unconditionally keeps blocks
// independent: a retry field in a suppressed block cannot bleed into the
// next message.
func (a *Assembler) flush() {
	m, open := a.current, a.open
	a.Reset()
	if open && a.OnMessage != nil {
		a.OnMessage(m)
	}
}

// splitField divides a field line at the first colon and strips at most
// one space after it. A line with no colon is a field name with an empty
// value.
func splitField(line []byte) (name, value []byte) {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return line, nil
	}
	name = line[:i]
	value = line[i+1:]
	if len(value) > 0 && value[0] == ' ' {
		value = value[1:]
	}
	return name, value
}

// parseRetry accepts only non-empty, all-ASCII-digit values, per the SSE
// spec. strconv alone is too permissive here: it admits a leading sign.
func parseRetry(value []byte) (time.Duration, bool) {
	if len(value) == 0 {
		return 0, false
	}
	for _, b := range value {
		if b < '0' || b > '9' {
			return 0, false
		}
	}
	ms, err := strconv.Atoi(string(value))
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
