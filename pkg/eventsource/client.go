package eventsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"
)

const (
	mimeEventStream      = "text/event-stream"
	defaultRetryInterval = 3 * time.Second
)

// ErrInvalidContentType is returned when the endpoint answers with
// anything other than a text/event-stream body. It is not retried; a
// misconfigured endpoint does not heal by reconnecting.
var ErrInvalidContentType = errors.New("eventsource: response is not a text/event-stream")

// Client maintains a subscription to an event-stream endpoint. It
// reconnects after the current retry interval, resumes with the
// Last-Event-ID request header, and delivers every message to a single
// callback. The stream's id and retry side channels feed the reconnect
// state as they are parsed, so a mid-stream "retry:" field changes the
// delay of the very next reconnect and an id seen moments before a
// connection dies is not lost.
type Client struct {
	url         string
	httpClient  *http.Client
	header      http.Header
	logger      *slog.Logger
	maxAttempts int

	mu          sync.Mutex
	lastEventID string
	retry       time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeader adds a header to every subscription request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.header.Add(key, value) }
}

// WithLastEventID resumes a stream from a known event id.
func WithLastEventID(id string) ClientOption {
	return func(c *Client) { c.lastEventID = id }
}

// WithRetryInterval sets the reconnect delay used until the server
// advertises one. The default is three seconds.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retry = d
		}
	}
}

// WithMaxAttempts bounds the number of connections Subscribe makes. Zero,
// the default, means no bound.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) { c.maxAttempts = n }
}

// WithLogger sets the logger for connection lifecycle events. The default
// discards them.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for the given endpoint.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
		header:     make(http.Header),
		logger:     slog.New(slog.DiscardHandler),
		retry:      defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LastEventID returns the most recent id the stream delivered.
func (c *Client) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// RetryInterval returns the delay the next reconnect will wait.
func (c *Client) RetryInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry
}

func (c *Client) setLastEventID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastEventID = id
}

func (c *Client) setRetryInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retry = d
}

// Subscribe connects and delivers messages to fn until ctx is canceled,
// an unrecoverable error occurs, or the attempt budget runs out. A server
// that closes the stream cleanly is reconnected to like any dropped
// connection.
//
// Cancellation composes two sources: the caller's ctx and the client's
// own teardown of the in-flight request between attempts. Both collapse
// into the one derived context the HTTP request carries.
func (c *Client) Subscribe(ctx context.Context, fn MessageFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		attempts int
		lastErr  error
	)
	for {
		err := c.connect(ctx, fn)
		switch {
		case err == nil:
			lastErr = nil
			c.logger.Debug("stream closed by server", "url", c.url)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()
		case isFatal(err):
			return err
		default:
			lastErr = err
			c.logger.Warn("stream attempt failed", "url", c.url, "attempt", attempts+1, "err", err)
		}

		attempts++
		if c.maxAttempts > 0 && attempts >= c.maxAttempts {
			if lastErr != nil {
				return fmt.Errorf("eventsource: giving up after %d attempts: %w", attempts, lastErr)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.RetryInterval()):
		}
	}
}

// connect performs one subscription attempt and consumes its stream.
func (c *Client) connect(ctx context.Context, fn MessageFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", mimeEventStream)
	req.Header.Set("Cache-Control", "no-cache")
	for key, values := range c.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if id := c.LastEventID(); id != "" {
		req.Header.Set("Last-Event-ID", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("eventsource: unexpected status %s", resp.Status)
	}
	mt, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mt != mimeEventStream {
		return fmt.Errorf("%w: got %q", ErrInvalidContentType, resp.Header.Get("Content-Type"))
	}

	c.logger.Debug("stream open", "url", c.url, "last_event_id", c.LastEventID())

	return Consume(ctx, resp.Body,
		OnMessage(fn),
		OnID(c.setLastEventID),
		OnRetry(c.setRetryInterval),
	)
}

// isFatal reports errors that reconnecting cannot fix.
func isFatal(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) || errors.Is(err, ErrInvalidContentType)
}
