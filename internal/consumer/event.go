package consumer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/mapty/internal/domain"
	"example.com/mapty/internal/events"
	"example.com/mapty/internal/publish"
)

// Decode failure reasons, used as metric labels.
const (
	reasonFrame       = "frame"
	reasonUnknownType = "unknown_type"
	reasonSubject     = "subject_mismatch"
	reasonPayload     = "payload"
)

// Event is a workout change read back from the topic. Body holds one of the
// events payload types selected by EventType.
type Event struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	SchemaSubject string
	SchemaID      int
	// WorkoutID is empty for workouts.cleared.
	WorkoutID string
	// Kind is set for created and updated events only.
	Kind    domain.Kind
	Body    any
	Payload json.RawMessage
}

// Subject is the key the event is logged under: the workout id, or "all"
// when the whole log was cleared.
func (e Event) Subject() string {
	if e.WorkoutID == "" {
		return "all"
	}
	return e.WorkoutID
}

type decodeError struct {
	reason string
	err    error
}

func (e *decodeError) Error() string { return e.reason + ": " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func rejected(reason, format string, args ...any) error {
	return &decodeError{reason: reason, err: fmt.Errorf(format, args...)}
}

func decodeReason(err error) string {
	var de *decodeError
	if errors.As(err, &de) {
		return de.reason
	}
	return reasonPayload
}

func decodeEvent(msg kafka.Message) (Event, error) {
	if len(msg.Value) < 5 || msg.Value[0] != 0 {
		return Event{}, rejected(reasonFrame, "value is not schema registry framed (%d bytes)", len(msg.Value))
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Event{}, rejected(reasonFrame, "missing event_type header")
	}
	subject, known := publish.SubjectFor(eventType)
	if !known {
		return Event{}, rejected(reasonUnknownType, "event_type %q is not a workout event", eventType)
	}
	if got, ok := headerValue(msg, "schema_subject"); ok && got != subject {
		return Event{}, rejected(reasonSubject, "%s framed with subject %q, want %q", eventType, got, subject)
	}

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	evt := Event{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     eventType,
		SchemaSubject: subject,
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:5])),
		Payload:       payload,
	}
	if err := evt.decodeBody(); err != nil {
		return Event{}, &decodeError{reason: reasonPayload, err: err}
	}
	return evt, nil
}

func (e *Event) decodeBody() error {
	switch e.EventType {
	case events.TypeWorkoutCreated:
		var body events.WorkoutCreated
		if err := strictUnmarshal(e.Payload, &body); err != nil {
			return err
		}
		kind, err := workoutKind(body.Kind)
		if err != nil {
			return err
		}
		e.WorkoutID, e.Kind, e.Body = body.WorkoutID, kind, body
	case events.TypeWorkoutUpdated:
		var body events.WorkoutUpdated
		if err := strictUnmarshal(e.Payload, &body); err != nil {
			return err
		}
		kind, err := workoutKind(body.Kind)
		if err != nil {
			return err
		}
		e.WorkoutID, e.Kind, e.Body = body.WorkoutID, kind, body
	case events.TypeWorkoutDeleted:
		var body events.WorkoutDeleted
		if err := strictUnmarshal(e.Payload, &body); err != nil {
			return err
		}
		e.WorkoutID, e.Body = body.WorkoutID, body
	case events.TypeWorkoutsCleared:
		var body events.WorkoutsCleared
		if err := strictUnmarshal(e.Payload, &body); err != nil {
			return err
		}
		if body.Count < 0 {
			return fmt.Errorf("negative cleared count %d", body.Count)
		}
		e.Body = body
		return nil
	}

	if e.WorkoutID == "" {
		return fmt.Errorf("%s without workout_id", e.EventType)
	}
	return nil
}

func workoutKind(raw string) (domain.Kind, error) {
	kind, ok := domain.ParseKind(raw)
	if !ok {
		return "", fmt.Errorf("unknown workout kind %q", raw)
	}
	return kind, nil
}

func strictUnmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after payload")
	}
	return nil
}

func headerValue(msg kafka.Message, key string) (string, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value), true
		}
	}
	return "", false
}
