package publish

import (
	"context"
	"errors"
	"log"
	"time"

	"example.com/mapty/internal/events"
)

// ErrQueueFull is returned when the dispatcher cannot accept another event.
var ErrQueueFull = errors.New("publish queue full")

// deliveryTimeout bounds one delivery, including those flushed after shutdown.
const deliveryTimeout = 10 * time.Second

type eventPublisher interface {
	Publish(context.Context, events.Envelope) error
}

// DispatcherOption configures optional behaviour for the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger overrides the logger used to report delivery failures.
func WithDispatcherLogger(logger *log.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher queues events in memory and delivers them from a background
// loop so callers never wait on the broker.
type Dispatcher struct {
	target           eventPublisher
	queue            chan events.Envelope
	logger           *log.Logger
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher holding up to capacity pending events.
func NewDispatcher(target eventPublisher, capacity int, opts ...DispatcherOption) *Dispatcher {
	if capacity <= 0 {
		capacity = 1
	}
	d := &Dispatcher{
		target:           target,
		queue:            make(chan events.Envelope, capacity),
		logger:           log.New(log.Writer(), "[publish] ", log.LstdFlags|log.Lshortfile),
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Publish enqueues event without blocking.
func (d *Dispatcher) Publish(_ context.Context, event events.Envelope) error {
	select {
	case d.queue <- event:
		queueDepth.Set(float64(len(d.queue)))
		return nil
	default:
		droppedCounter.WithLabelValues(event.Type).Inc()
		return ErrQueueFull
	}
}

// Start delivers queued events until ctx is cancelled, then flushes what is
// still queued. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.shutdownComplete)

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case event := <-d.queue:
			d.deliver(event)
		}
	}
}

// Wait waits until the dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event events.Envelope) {
	queueDepth.Set(float64(len(d.queue)))
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := d.target.Publish(ctx, event); err != nil {
		d.logger.Printf("deliver %s (key=%s) failed: %v", event.Type, event.Key, err)
	}
}
