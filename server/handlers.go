package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/capture"
	"github.com/spoolworks/spool/pkg/eventsource"
	"github.com/spoolworks/spool/server/worker"
)

const (
	// replayPageSize is how many stored events one store read returns
	// while replaying.
	replayPageSize = 256

	// replayHeartbeat is the keep-alive comment interval for follow mode.
	// It doubles as the disconnect detector for idle streams: the write
	// fails once the client is gone.
	replayHeartbeat = 15 * time.Second
)

// ErrorResponse is the JSON body for error replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// IngestResponse reports how much of an ingested stream was accepted.
type IngestResponse struct {
	Stream   string `json:"stream"`
	Received int    `json:"received"`
	Queued   int    `json:"queued"`
	Dropped  int    `json:"dropped,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIngest decodes the request body as an SSE stream and queues every
// completed message for capture. The body is consumed incrementally, so
// producers may hold the request open and stream events as they happen.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	stream := c.Params("stream")
	if stream == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "stream parameter required"})
	}

	var body io.Reader = c.Request().BodyStream()
	if body == nil {
		body = bytes.NewReader(c.Body())
	}

	var received, queued int
	err := eventsource.Consume(c.Context(), body,
		eventsource.OnMessage(func(m eventsource.Message) {
			received++
			ok := s.pool.Enqueue(worker.Job{Event: capture.Event{
				Stream:  stream,
				EventID: m.ID,
				Type:    m.Event,
				Data:    m.Data,
				Retry:   m.Retry,
				At:      time.Now().UTC(),
			}})
			if ok {
				queued++
			}
		}),
	)
	if err != nil {
		var decErr *eventsource.DecodeError
		if errors.As(err, &decErr) {
			s.logger.Warn("rejected malformed event stream",
				zap.String("stream", stream),
				zap.Error(err),
			)
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Error("failed to read event stream",
			zap.String("stream", stream),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to read event stream"})
	}

	return c.JSON(IngestResponse{
		Stream:   stream,
		Received: received,
		Queued:   queued,
		Dropped:  received - queued,
	})
}

// handleListStreams returns a summary of every capture stream.
func (s *Server) handleListStreams(c *fiber.Ctx) error {
	infos, err := s.store.Streams(c.Context())
	if err != nil {
		s.logger.Error("failed to list streams", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list streams"})
	}

	return c.JSON(map[string]any{
		"count":   len(infos),
		"streams": infos,
	})
}

// handleListEvents returns a JSON page of stored events for one stream.
func (s *Server) handleListEvents(c *fiber.Ctx) error {
	stream := c.Params("stream")
	if stream == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "stream parameter required"})
	}

	var afterSeq int64
	if raw := c.Query("after"); raw != "" {
		var err error
		afterSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || afterSeq < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: fmt.Sprintf("invalid after value %q", raw)})
		}
	}

	events, err := s.store.List(c.Context(), stream, afterSeq, c.QueryInt("limit"))
	if err != nil {
		s.logger.Error("failed to list events",
			zap.String("stream", stream),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list events"})
	}

	return c.JSON(map[string]any{
		"stream": stream,
		"count":  len(events),
		"events": events,
	})
}

// handleReplay re-emits a stream's stored events in wire form. The replayed
// ids are capture sequence numbers, so Last-Event-ID (or ?last_event_id=)
// resumes exactly after the last message a client saw. With ?follow=true the
// connection stays open and new arrivals are relayed as they are captured.
func (s *Server) handleReplay(c *fiber.Ctx) error {
	stream := c.Params("stream")
	if stream == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "stream parameter required"})
	}

	afterSeq, err := replayAfterSeq(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	// Subscribe before reading the stored page so nothing falls in the
	// gap between the page and the live feed; duplicates are filtered by
	// sequence number in the writer.
	var (
		updates <-chan capture.Event
		cancel  func()
	)
	if c.QueryBool("follow") {
		updates, cancel = s.broadcaster.Subscribe(stream)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// io.Pipe instead of SetBodyStreamWriter: pw.Write blocks until
	// fasthttp's chunked writer consumes the data, which flushes to the
	// socket after every chunk. That gives direct backpressure and true
	// per-message streaming, and a failed write tells the writer goroutine
	// the client is gone.
	pr, pw := io.Pipe()
	go s.replayToPipeWriter(pw, stream, afterSeq, updates, cancel)

	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// replayToPipeWriter streams stored events, then live arrivals, into the
// response pipe. It owns the subscription and the pipe writer.
func (s *Server) replayToPipeWriter(pw *io.PipeWriter, stream string, afterSeq int64, updates <-chan capture.Event, cancel func()) {
	defer pw.Close()
	if cancel != nil {
		defer cancel()
	}

	// The request context dies with the handler; the pipe reports
	// disconnects instead.
	ctx := context.Background()
	enc := eventsource.NewEncoder(pw)

	lastSeq := afterSeq
	for {
		events, err := s.store.List(ctx, stream, lastSeq, replayPageSize)
		if err != nil {
			s.logger.Error("replay read failed",
				zap.String("stream", stream),
				zap.Error(err),
			)
			return
		}
		for _, ev := range events {
			if err := enc.WriteMessage(replayMessage(ev)); err != nil {
				return
			}
			lastSeq = ev.Seq
		}
		if len(events) < replayPageSize {
			break
		}
	}

	if updates == nil {
		return
	}

	heartbeat := time.NewTicker(replayHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev := <-updates:
			if ev.Seq <= lastSeq {
				continue
			}
			if err := enc.WriteMessage(replayMessage(ev)); err != nil {
				return
			}
			lastSeq = ev.Seq
		case <-heartbeat.C:
			if err := enc.WriteComment("keepalive"); err != nil {
				return
			}
		}
	}
}

// replayAfterSeq resolves the resume position. The Last-Event-ID header wins
// over the last_event_id query parameter. Replayed ids are sequence numbers,
// so the value must parse as a non-negative integer.
func replayAfterSeq(c *fiber.Ctx) (int64, error) {
	raw := c.Get("Last-Event-ID")
	if raw == "" {
		raw = c.Query("last_event_id")
	}
	if raw == "" {
		return 0, nil
	}

	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("invalid last event id %q", raw)
	}
	return seq, nil
}

// replayMessage converts a stored event back to wire form. The wire id is
// the capture sequence number, which is what resume keys on; the producer's
// original id travels in the JSON API instead.
func replayMessage(ev capture.Event) eventsource.Message {
	return eventsource.Message{
		ID:    strconv.FormatInt(ev.Seq, 10),
		Event: ev.Type,
		Data:  ev.Data,
	}
}
