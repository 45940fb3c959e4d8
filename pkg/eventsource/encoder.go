package eventsource

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrUnencodable is returned for messages whose id or event type cannot
// be framed as a single field line.
var ErrUnencodable = errors.New("eventsource: field value cannot be encoded")

// Encoder writes messages in the text/event-stream wire format. Anything
// the package's own decoder produced round-trips exactly: encoding a
// captured Message and decoding the output yields the same Message.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing to w. Callers streaming over HTTP
// should flush w after each message.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteMessage writes one message followed by the blank-line separator.
// Multi-line data becomes one "data:" line per segment.
func (e *Encoder) WriteMessage(m Message) error {
	var b strings.Builder

	if m.ID != "" {
		if strings.ContainsAny(m.ID, "\r\n\x00") {
			return fmt.Errorf("%w: id %q", ErrUnencodable, m.ID)
		}
		b.WriteString("id: ")
		b.WriteString(m.ID)
		b.WriteByte('\n')
	}
	if m.Event != "" {
		if strings.ContainsAny(m.Event, "\r\n") {
			return fmt.Errorf("%w: event %q", ErrUnencodable, m.Event)
		}
		b.WriteString("event: ")
		b.WriteString(m.Event)
		b.WriteByte('\n')
	}
	if m.Retry > 0 {
		b.WriteString("retry: ")
		b.WriteString(strconv.FormatInt(m.Retry.Milliseconds(), 10))
		b.WriteByte('\n')
	}
	if m.Data != "" {
		// A carriage return inside a data line would terminate it early;
		// reframe every terminator style as a plain line break.
		data := strings.ReplaceAll(m.Data, "\r\n", "\n")
		data = strings.ReplaceAll(data, "\r", "\n")
		for _, seg := range strings.Split(data, "\n") {
			b.WriteString("data: ")
			b.WriteString(seg)
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')

	_, err := io.WriteString(e.w, b.String())
	return err
}

// WriteComment writes a comment line. Decoders discard comments, which
// makes them the keep-alive of choice for idle streams. The text must be
// a single line.
func (e *Encoder) WriteComment(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("%w: comment %q", ErrUnencodable, text)
	}
	_, err := io.WriteString(e.w, ": "+text+"\n")
	return err
}

// WriteRetry writes a bare retry field. It opens a message block without
// completing it; decoders pick the interval up immediately and fold the
// field into whatever message the following lines build.
func (e *Encoder) WriteRetry(d time.Duration) error {
	_, err := io.WriteString(e.w, "retry: "+strconv.FormatInt(d.Milliseconds(), 10)+"\n")
	return err
}
