package publishers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/hush-client/pkg/apiclient"
)

const (
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

// DispatcherOptions tunes the background delivery of request events.
type DispatcherOptions struct {
	// QueueSize bounds the number of events waiting for delivery.
	QueueSize int
	// PublishTimeout bounds a single fanout publish.
	PublishTimeout time.Duration
}

// Dispatcher is an apiclient.Observer that hands request events to a Fanout
// from a background worker. API calls never wait on sinks: when the queue is
// full the event is dropped and counted.
type Dispatcher struct {
	fanout  *Fanout
	log     Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
}

var _ apiclient.Observer = (*Dispatcher)(nil)

// NewDispatcher starts the delivery worker for f.
func NewDispatcher(f *Fanout, log Logger, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}
	d := &Dispatcher{
		fanout:  f,
		log:     ensureLogger(log),
		timeout: opts.PublishTimeout,
		queue:   make(chan Event, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go d.run()
	return d
}

// ObserveRequest enqueues evt without blocking.
func (d *Dispatcher) ObserveRequest(_ context.Context, evt apiclient.RequestEvent) {
	if d == nil || d.fanout.Size() == 0 {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- NewEvent(evt):
	default:
		total := d.dropped.Add(1)
		d.log.WarnObj("request event dropped, telemetry queue full", "telemetry_queue", map[string]any{
			"request_id": evt.RequestID,
			"capacity":   cap(d.queue),
			"dropped":    total,
		})
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be delivered.
// It does not close the underlying fanout.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
	return nil
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for evt := range d.queue {
		d.publish(evt)
	}
}

func (d *Dispatcher) publish(evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	delivered, err := d.fanout.Publish(ctx, evt)
	if err != nil {
		d.log.WarnObj("request event publish failed", "telemetry_publish_error", map[string]any{
			"request_id": evt.RequestID,
			"delivered":  delivered,
			"sinks":      d.fanout.Size(),
			"error":      err.Error(),
		})
	}
}
