package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sujalbistaa/privacynet/internal/logging"
)

const writeTimeout = 5 * time.Second

// Recorder hands events to a Sink from a background worker. Log never
// blocks: when the queue is full the event is dropped with a warning.
type Recorder struct {
	sink  Sink
	log   logging.Logger
	queue chan Event

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts the worker. Call Close to drain and stop it.
func NewRecorder(sink Sink, log logging.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1
	}
	r := &Recorder{
		sink:  sink,
		log:   log,
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Log enqueues e. The request context is not carried over so the write
// outlives the request that triggered it.
func (r *Recorder) Log(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.log.Warn(ctx, "audit event dropped, recorder closed", "event", e.Name)
		return
	}
	select {
	case r.queue <- e:
	default:
		r.log.Warn(ctx, "audit event dropped, queue full", "event", e.Name)
	}
}

// Close stops accepting events and waits for queued ones to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.sink.Record(ctx, e); err != nil {
			r.log.Error(ctx, "audit write failed", "event", e.Name, "error", err)
		}
		cancel()
	}
}
