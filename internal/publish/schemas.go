package publish

import "example.com/mapty/internal/events"

const workoutCreatedSchema = `{
  "type": "object",
  "title": "WorkoutCreated",
  "properties": {
    "workout_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["running", "cycling"]},
    "created_at": {"type": "string", "format": "date-time"},
    "coordinates": {"type": "array", "items": {"type": "number"}, "minItems": 2, "maxItems": 2},
    "distance_km": {"type": "number"},
    "duration_min": {"type": "number"},
    "metric": {"type": "number"},
    "description": {"type": "string"}
  },
  "required": ["workout_id", "kind", "created_at", "coordinates", "distance_km", "duration_min", "metric", "description"],
  "additionalProperties": false
}`

const workoutUpdatedSchema = `{
  "type": "object",
  "title": "WorkoutUpdated",
  "properties": {
    "workout_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["running", "cycling"]},
    "previous_kind": {"type": "string", "enum": ["running", "cycling"]},
    "distance_km": {"type": "number"},
    "duration_min": {"type": "number"},
    "metric": {"type": "number"},
    "description": {"type": "string"},
    "interactions": {"type": "integer"},
    "updated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "kind", "previous_kind", "distance_km", "duration_min", "metric", "description", "interactions", "updated_at"],
  "additionalProperties": false
}`

const workoutDeletedSchema = `{
  "type": "object",
  "title": "WorkoutDeleted",
  "properties": {
    "workout_id": {"type": "string"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "deleted_at"],
  "additionalProperties": false
}`

const workoutsClearedSchema = `{
  "type": "object",
  "title": "WorkoutsCleared",
  "properties": {
    "count": {"type": "integer"},
    "cleared_at": {"type": "string", "format": "date-time"}
  },
  "required": ["count", "cleared_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps an event type to its registry subject and schema.
type SchemaCatalogEntry struct {
	Subject string
	Schema  string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeWorkoutCreated: {
		Subject: "workout_created-value",
		Schema:  workoutCreatedSchema,
	},
	events.TypeWorkoutUpdated: {
		Subject: "workout_updated-value",
		Schema:  workoutUpdatedSchema,
	},
	events.TypeWorkoutDeleted: {
		Subject: "workout_deleted-value",
		Schema:  workoutDeletedSchema,
	},
	events.TypeWorkoutsCleared: {
		Subject: "workouts_cleared-value",
		Schema:  workoutsClearedSchema,
	},
}

// SubjectFor returns the registry subject events of eventType are framed with.
func SubjectFor(eventType string) (string, bool) {
	meta, ok := schemaCatalog[eventType]
	return meta.Subject, ok
}
