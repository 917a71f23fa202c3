package consumer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LogHandler appends consumed events to workout_event_log. A redelivered
// record is ignored through its (topic, partition, offset) key.
type LogHandler struct {
	db  execer
	now func() time.Time
}

// NewLogHandler constructs a handler backed by db, usually a *pgxpool.Pool.
func NewLogHandler(db execer) *LogHandler {
	return &LogHandler{db: db, now: time.Now}
}

// Handle stores the event under its workout id and kind.
func (h *LogHandler) Handle(ctx context.Context, evt Event) error {
	receivedAt := evt.Timestamp
	if receivedAt.IsZero() {
		receivedAt = h.now().UTC()
	}
	_, err := h.db.Exec(ctx,
		`INSERT INTO workout_event_log (topic, partition, "offset", event_type, workout_key, workout_kind, schema_id, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, "offset") DO NOTHING`,
		evt.Topic,
		evt.Partition,
		evt.Offset,
		evt.EventType,
		evt.Subject(),
		string(evt.Kind),
		evt.SchemaID,
		string(evt.Payload),
		receivedAt,
	)
	return err
}
