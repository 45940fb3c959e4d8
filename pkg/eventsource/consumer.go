package eventsource

import (
	"context"
	"errors"
	"io"
)

const defaultChunkSize = 4096

type consumer struct {
	dec       TextDecoder
	chunkSize int
	asm       Assembler
}

// ConsumerOption configures a Consume call.
type ConsumerOption func(*consumer)

// WithDecoder replaces the default strict UTF-8 decoder.
func WithDecoder(dec TextDecoder) ConsumerOption {
	return func(c *consumer) { c.dec = dec }
}

// WithChunkSize sets the read buffer size. The chunk size never changes
// which messages are produced, only how many reads produce them.
func WithChunkSize(n int) ConsumerOption {
	return func(c *consumer) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// OnMessage sets the completed-message callback.
func OnMessage(fn MessageFunc) ConsumerOption {
	return func(c *consumer) { c.asm.OnMessage = fn }
}

// OnID sets the last-event-id side channel.
func OnID(fn IDFunc) ConsumerOption {
	return func(c *consumer) { c.asm.OnID = fn }
}

// OnRetry sets the retry-interval side channel.
func OnRetry(fn RetryFunc) ConsumerOption {
	return func(c *consumer) { c.asm.OnRetry = fn }
}

// Consume reads r to end of stream, decoding it as an event stream and
// delivering messages and side-channel values through the registered
// callbacks. Each chunk is fully processed, with every line and message
// it completes delivered, before the next read is issued, so callbacks
// arrive in order and never overlap.
//
// ctx is checked between reads; cancellation stops the drive loop without
// further callbacks. Readers that honor cancellation themselves (an HTTP
// response body with a request context, for example) also unblock a read
// in flight.
//
// On end of stream the decoder is flushed and Consume returns nil. A
// trailing line without a terminator, and with it any message missing its
// closing blank line, is dropped rather than synthesized into a message;
// the wire format gives no license to invent the separator. Read and
// decode errors are returned as is, discarding the in-progress message,
// which is by definition incomplete.
func Consume(ctx context.Context, r io.Reader, opts ...ConsumerOption) error {
	c := consumer{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&c)
	}
	if c.dec == nil {
		c.dec = NewUTF8Decoder()
	}

	split := NewLineSplitter(c.asm.Line)
	buf := make([]byte, c.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			out, derr := c.dec.Decode(buf[:n])
			if derr != nil {
				return derr
			}
			split.Write(out)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				out, derr := c.dec.Flush()
				if derr != nil {
					return derr
				}
				split.Write(out)
				return nil
			}
			return err
		}
	}
}
