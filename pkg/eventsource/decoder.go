package eventsource

import (
	"fmt"
	"unicode/utf8"
)

// TextDecoder incrementally converts raw stream bytes to validated text.
// Implementations may hold back the tail of a multi-byte sequence split
// across chunk boundaries; Flush surfaces whatever remains at end of
// stream.
type TextDecoder interface {
	// Decode validates and returns the decodable prefix of p together
	// with any bytes carried over from the previous call. The returned
	// slice is only valid until the next call.
	Decode(p []byte) ([]byte, error)

	// Flush returns any remaining buffered bytes. A partial sequence
	// still pending at end of stream is an error.
	Flush() ([]byte, error)
}

// DecodeError reports an invalid byte sequence in the stream. Decode
// errors are fatal: a corrupted stream must surface to the caller rather
// than silently mangle message data.
type DecodeError struct {
	// Offset is the absolute position of the offending byte, counted
	// from the start of the stream.
	Offset int64
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("eventsource: invalid UTF-8 at byte %d", e.Offset)
}

// utf8Decoder is the strict incremental UTF-8 validator. Up to three
// trailing bytes of a rune split across chunks are carried between calls.
type utf8Decoder struct {
	rem    [utf8.UTFMax]byte
	nrem   int
	out    []byte
	offset int64
}

// NewUTF8Decoder returns the default TextDecoder: strict incremental
// UTF-8 validation where any invalid sequence fails with a *DecodeError.
func NewUTF8Decoder() TextDecoder {
	return &utf8Decoder{}
}

func (d *utf8Decoder) Decode(p []byte) ([]byte, error) {
	b := p
	if d.nrem > 0 {
		d.out = append(d.out[:0], d.rem[:d.nrem]...)
		d.out = append(d.out, p...)
		b = d.out
		d.nrem = 0
	}

	keep := incompleteTail(b)
	valid := b[:len(b)-keep]

	if i := firstInvalid(valid); i >= 0 {
		return nil, &DecodeError{Offset: d.offset + int64(i)}
	}

	d.nrem = copy(d.rem[:], b[len(b)-keep:])
	d.offset += int64(len(valid))
	return valid, nil
}

func (d *utf8Decoder) Flush() ([]byte, error) {
	if d.nrem == 0 {
		return nil, nil
	}
	// A dangling partial rune means the stream was truncated mid-character.
	d.nrem = 0
	return nil, &DecodeError{Offset: d.offset}
}

// incompleteTail reports how many trailing bytes of b form the prefix of
// a rune whose remaining bytes have not arrived yet. Invalid sequences
// are not held back; they fall through to validation.
func incompleteTail(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return 0
		}
		if c >= 0xC0 {
			// Leading byte. Hold the tail back only when the sequence it
			// announces is longer than what has arrived.
			if n := runeLen(c); n > i {
				return i
			}
			return 0
		}
		// Continuation byte; keep scanning backward for the leader.
	}
	return 0
}

// runeLen returns the encoded length announced by a leading byte, or zero
// for bytes that cannot start a sequence.
func runeLen(c byte) int {
	switch {
	case c < 0x80:
		return 1
	case c < 0xC0:
		return 0
	case c < 0xE0:
		return 2
	case c < 0xF0:
		return 3
	case c < 0xF8:
		return 4
	}
	return 0
}

// firstInvalid returns the index of the first invalid byte in b, or -1.
func firstInvalid(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for i := 0; i < len(b); {
		if b[i] < utf8.RuneSelf {
			i++
			continue
		}
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
