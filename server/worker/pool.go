// Package worker provides an asynchronous worker pool for persisting captured
// events using the provided capture.Store and publishing notifications through
// the configured eventstream.Publisher.
//
// The pool decouples storage and publishing from the ingest HTTP hot path so
// that a slow disk or broker never stalls a producer mid-stream.
package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolworks/spool/pkg/capture"
	"github.com/spoolworks/spool/pkg/eventstream"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Event capture.Event
}

// Notifier receives each event after it is persisted, with its assigned
// sequence number filled in. Implementations must not block; workers call
// them inline.
type Notifier interface {
	Notify(ev capture.Event)
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Store is the capture backend events are appended to.
	Store capture.Store

	// Publisher is the optional eventstream publisher notified after each
	// append.
	Publisher eventstream.Publisher

	// Notifier is the optional in-process fanout notified after each append.
	Notifier Notifier

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes capture jobs asynchronously via a worker pool. Each worker
// owns its own queue and jobs are routed by stream name, so events of one
// stream append in arrival order while distinct streams spread across
// workers.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Store == nil {
		return nil, errors.New("capture store is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range wp.queues {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(uint(i))
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the routed worker's queue is full,
// resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	queue := p.queues[p.route(job.Event.Stream)]

	select {
	case queue <- job:
		p.logger.Debug("event queued",
			zap.String("stream", job.Event.Stream),
		)
		return true
	default:
		p.logger.Error("event not queued, queue full, event dropped",
			zap.String("stream", job.Event.Stream),
		)
		return false
	}
}

// route picks the worker for a stream. The same stream always routes to the
// same worker.
func (p *Pool) route(stream string) int {
	h := fnv.New32a()
	h.Write([]byte(stream))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
func (p *Pool) Close() {
	for _, queue := range p.queues {
		close(queue)
	}
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queues[id] {
		p.processJob(job)
	}

	p.logger.Debug("capture worker stopped", zap.Uint("worker_id", id))
}

// processJob appends the event to the capture store, then fans the stored
// event out to the notifier and the eventstream publisher.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	ev := job.Event
	seq, err := p.config.Store.Append(ctx, ev)
	if err != nil {
		p.logger.Error("async event storage failed",
			zap.String("stream", ev.Stream),
			zap.Error(err),
		)
		return
	}
	ev.Seq = seq

	p.logger.Debug("event captured",
		zap.String("stream", ev.Stream),
		zap.Int64("seq", seq),
	)

	if p.config.Notifier != nil {
		p.config.Notifier.Notify(ev)
	}

	if p.config.Publisher != nil {
		event := &eventstream.CapturedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeEventCaptured,
			EventID:       uuid.NewString(),
			EmittedAt:     time.Now().UTC(),
			Source:        eventstream.EventSource{Stream: ev.Stream},
			Event:         ev,
		}

		if err := p.config.Publisher.PublishEvent(ctx, event); err != nil {
			p.logger.Warn("failed to publish captured event",
				zap.String("stream", ev.Stream),
				zap.Error(err),
			)
		}
	}
}
