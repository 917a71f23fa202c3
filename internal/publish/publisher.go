// Package publish delivers workout change events to Kafka using Schema
// Registry framing.
package publish

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/mapty/internal/events"
)

// DefaultTopic receives every workout event.
const DefaultTopic = "workout_events"

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Publisher frames events with their schema id and writes them to a topic.
type Publisher struct {
	producer      messageWriter
	registry      schemaRegistrar
	topic         string
	schemaIDCache sync.Map
	now           func() time.Time
}

// NewPublisher constructs a Publisher writing to topic, DefaultTopic when empty.
func NewPublisher(producer messageWriter, registry schemaRegistrar, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		producer: producer,
		registry: registry,
		topic:    topic,
		now:      time.Now,
	}
}

// Publish encodes the payload, resolves its schema id and writes the message
// keyed by event.Key so a workout's events stay on one partition.
func (p *Publisher) Publish(ctx context.Context, event events.Envelope) (err error) {
	start := time.Now()
	defer func() {
		publishDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			failedCounter.WithLabelValues(event.Type).Inc()
			return
		}
		publishedCounter.WithLabelValues(event.Type).Inc()
	}()

	meta, ok := schemaCatalog[event.Type]
	if !ok {
		return fmt.Errorf("no schema metadata for event_type=%s", event.Type)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event.Type, err)
	}

	schemaID, err := p.schemaID(ctx, meta)
	if err != nil {
		return err
	}

	record := kafka.Message{
		Key:   []byte(event.Key),
		Value: encodeWireFormat(schemaID, payload),
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "schema_subject", Value: []byte(meta.Subject)},
		},
	}
	return p.producer.WriteMessages(ctx, p.topic, record)
}

func (p *Publisher) schemaID(ctx context.Context, meta SchemaCatalogEntry) (int, error) {
	cacheKey := meta.Subject + "::" + meta.Schema
	if cached, ok := p.schemaIDCache.Load(cacheKey); ok {
		return cached.(int), nil
	}
	id, err := p.registry.EnsureSchema(ctx, meta.Subject, meta.Schema)
	if err != nil {
		return 0, fmt.Errorf("ensure schema %s: %w", meta.Subject, err)
	}
	p.schemaIDCache.Store(cacheKey, id)
	return id, nil
}

// encodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}

// Noop discards events. It is used when no brokers are configured.
type Noop struct{}

// Publish implements domain.EventPublisher.
func (Noop) Publish(context.Context, events.Envelope) error { return nil }
