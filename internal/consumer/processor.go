// Package consumer reads workout events back from Kafka and hands them to a
// Handler, typically the Postgres event log.
package consumer

import (
	"context"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"
)

// Reader is the part of *kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded workout events.
type Handler interface {
	Handle(context.Context, Event) error
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor fetches framed workout events and dispatches them to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *log.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until ctx is cancelled or the reader fails with
// context.Canceled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		if p.process(ctx, msg) {
			p.commit(ctx, msg)
		}
	}
}

// process reports whether msg is finished with. Events the log can never
// accept are finished; a failing handler leaves msg for redelivery.
func (p *Processor) process(ctx context.Context, msg kafka.Message) bool {
	evt, err := decodeEvent(msg)
	if err != nil {
		p.logger.Printf("dropping %s[%d]@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		recordRejected(msg.Topic, decodeReason(err))
		return true
	}

	if err := p.handler.Handle(ctx, evt); err != nil {
		p.logger.Printf("handler error (%s, workout=%s): %v", evt.EventType, evt.Subject(), err)
		recordHandlerError(evt)
		return false
	}
	recordHandled(evt)
	return true
}

func (p *Processor) commit(ctx context.Context, msg kafka.Message) {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		p.logger.Printf("commit %s[%d]@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
	}
}
