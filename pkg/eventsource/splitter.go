package eventsource

import "bytes"

// LineSplitter turns a pushed sequence of byte chunks into a pushed
// sequence of complete lines. A line is any byte run terminated by "\n",
// "\r", or "\r\n"; the terminator is stripped before delivery. Zero-length
// lines are delivered like any other, since a blank line is the message
// separator.
//
// The splitter buffers at most one partial line between writes. A CRLF
// pair split across two chunks is recognized as a single terminator.
type LineSplitter struct {
	fn LineFunc

	// buf holds the unterminated remainder of the current line across
	// chunk boundaries. Truncated in place each time a line is emitted.
	buf []byte

	// pendingCR records that the previous chunk ended on "\r". A leading
	// "\n" in the next chunk then belongs to the same CRLF terminator and
	// is discarded rather than read as an empty line.
	pendingCR bool
}

// NewLineSplitter returns a splitter that delivers lines to fn.
func NewLineSplitter(fn LineFunc) *LineSplitter {
	return &LineSplitter{fn: fn}
}

// Write feeds the next chunk. Every line the chunk completes is delivered
// to the line handler before Write returns; a trailing partial line is
// carried to the next call. Write never fails: at this layer every byte
// sequence is valid.
func (s *LineSplitter) Write(p []byte) {
	if len(p) == 0 {
		// An empty write must not resolve pendingCR; the byte that
		// decides it has not arrived yet.
		return
	}

	if s.pendingCR {
		s.pendingCR = false
		if p[0] == '\n' {
			p = p[1:]
		}
	}

	for len(p) > 0 {
		i := bytes.IndexAny(p, "\r\n")
		if i < 0 {
			s.buf = append(s.buf, p...)
			return
		}

		line := p[:i]
		endedCR := p[i] == '\r'
		rest := p[i+1:]

		if endedCR {
			switch {
			case len(rest) == 0:
				// Chunk ends exactly on the "\r"; whether an "\n"
				// follows is unknowable until the next write.
				s.pendingCR = true
			case rest[0] == '\n':
				rest = rest[1:]
			}
		}

		if len(s.buf) > 0 {
			s.buf = append(s.buf, line...)
			line = s.buf
		}
		s.fn(line, endedCR)
		s.buf = s.buf[:0]
		p = rest
	}
}
