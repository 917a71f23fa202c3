// Package events defines the payloads emitted when the workout log changes.
package events

import "time"

// Event types.
const (
	TypeWorkoutCreated  = "workout.created"
	TypeWorkoutUpdated  = "workout.updated"
	TypeWorkoutDeleted  = "workout.deleted"
	TypeWorkoutsCleared = "workouts.cleared"
)

// Envelope pairs an event payload with its type and partition key.
type Envelope struct {
	Type    string
	Key     string
	Payload any
}

// WorkoutCreated is emitted when a workout is added to the log.
type WorkoutCreated struct {
	WorkoutID   string     `json:"workout_id"`
	Kind        string     `json:"kind"`
	CreatedAt   time.Time  `json:"created_at"`
	Coordinates [2]float64 `json:"coordinates"`
	DistanceKm  float64    `json:"distance_km"`
	DurationMin float64    `json:"duration_min"`
	Metric      float64    `json:"metric"`
	Description string     `json:"description"`
}

// WorkoutUpdated is emitted when a workout is edited or visited.
type WorkoutUpdated struct {
	WorkoutID    string    `json:"workout_id"`
	Kind         string    `json:"kind"`
	PreviousKind string    `json:"previous_kind"`
	DistanceKm   float64   `json:"distance_km"`
	DurationMin  float64   `json:"duration_min"`
	Metric       float64   `json:"metric"`
	Description  string    `json:"description"`
	Interactions int       `json:"interactions"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WorkoutDeleted is emitted when a single workout is removed.
type WorkoutDeleted struct {
	WorkoutID string    `json:"workout_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// WorkoutsCleared is emitted when the whole log is emptied.
type WorkoutsCleared struct {
	Count     int       `json:"count"`
	ClearedAt time.Time `json:"cleared_at"`
}
