// Package persistence stores the workout collection as a single JSON snapshot
// in a pluggable blob store.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/mapty/internal/domain"
)

// DefaultKey is the storage key the collection is kept under.
const DefaultKey = "workouts"

// Record is the persisted form of one workout.
type Record struct {
	ID               string              `json:"id"`
	CreatedAt        time.Time           `json:"createdAt"`
	Coordinates      *domain.Coordinates `json:"coordinates"`
	DistanceKm       float64             `json:"distanceKm"`
	DurationMin      float64             `json:"durationMin"`
	KindName         string              `json:"kindName"`
	CadenceSpm       *int                `json:"cadenceSpm,omitempty"`
	ElevationGainM   *float64            `json:"elevationGainM,omitempty"`
	PaceMinPerKm     *float64            `json:"paceMinPerKm,omitempty"`
	SpeedKmPerH      *float64            `json:"speedKmPerH,omitempty"`
	Description      string              `json:"description"`
	InteractionCount int                 `json:"interactionCount"`
}

// Encode serialises the collection in order.
func Encode(workouts []domain.Workout) ([]byte, error) {
	records := make([]Record, 0, len(workouts))
	for _, w := range workouts {
		rec, err := toRecord(w)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return json.Marshal(records)
}

// Decode rebuilds the collection. Empty or null data yields nil; anything that
// does not match the record schema fails with domain.ErrPersistenceCorrupt.
func Decode(data []byte) ([]domain.Workout, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceCorrupt, err)
	}

	workouts := make([]domain.Workout, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		w, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", domain.ErrPersistenceCorrupt, i, err)
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, fmt.Errorf("%w: record %d: duplicate id %q", domain.ErrPersistenceCorrupt, i, rec.ID)
		}
		seen[rec.ID] = struct{}{}
		workouts = append(workouts, w)
	}
	return workouts, nil
}

func toRecord(w domain.Workout) (Record, error) {
	b := w.Core()
	coords := b.Coords
	rec := Record{
		ID:               b.ID,
		CreatedAt:        b.CreatedAt,
		Coordinates:      &coords,
		DistanceKm:       b.DistanceKm,
		DurationMin:      b.DurationMin,
		KindName:         string(w.Kind()),
		Description:      b.Description,
		InteractionCount: b.Interactions,
	}
	switch v := w.(type) {
	case *domain.Run:
		cadence, pace := v.CadenceSpm, v.PaceMinPerKm
		rec.CadenceSpm = &cadence
		rec.PaceMinPerKm = &pace
	case *domain.Ride:
		elevation, speed := v.ElevationGainM, v.SpeedKmPerH
		rec.ElevationGainM = &elevation
		rec.SpeedKmPerH = &speed
	default:
		return Record{}, fmt.Errorf("encode workout %s: unsupported type %T", b.ID, w)
	}
	return rec, nil
}

// fromRecord applies the same range rules as new workouts; a record that
// breaks them is reported as corrupt by Decode.
func fromRecord(rec Record) (domain.Workout, error) {
	if rec.Coordinates == nil {
		return nil, fmt.Errorf("missing coordinates")
	}

	base := domain.Base{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt,
		Coords:       *rec.Coordinates,
		DistanceKm:   rec.DistanceKm,
		DurationMin:  rec.DurationMin,
		Description:  rec.Description,
		Interactions: rec.InteractionCount,
	}

	kind, ok := domain.ParseKind(rec.KindName)
	if !ok {
		return nil, fmt.Errorf("unknown kindName %q", rec.KindName)
	}
	switch kind {
	case domain.KindRunning:
		if rec.CadenceSpm == nil {
			return nil, fmt.Errorf("running record without cadenceSpm")
		}
		return domain.LoadRun(base, *rec.CadenceSpm)
	default:
		if rec.ElevationGainM == nil {
			return nil, fmt.Errorf("cycling record without elevationGainM")
		}
		return domain.LoadRide(base, *rec.ElevationGainM)
	}
}

// BlobStore reads and writes opaque snapshots by key.
type BlobStore interface {
	// Read returns nil data and no error when nothing is stored under key.
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// SnapshotStore adapts a BlobStore to domain.SnapshotStore.
type SnapshotStore struct {
	blobs BlobStore
	key   string
}

// NewSnapshotStore keeps the collection under key, DefaultKey when empty.
func NewSnapshotStore(blobs BlobStore, key string) *SnapshotStore {
	if key == "" {
		key = DefaultKey
	}
	return &SnapshotStore{blobs: blobs, key: key}
}

// Load implements domain.SnapshotStore.
func (s *SnapshotStore) Load(ctx context.Context) ([]domain.Workout, error) {
	data, err := s.blobs.Read(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", s.key, err)
	}
	return Decode(data)
}

// Save implements domain.SnapshotStore.
func (s *SnapshotStore) Save(ctx context.Context, workouts []domain.Workout) error {
	data, err := Encode(workouts)
	if err != nil {
		return err
	}
	if err := s.blobs.Write(ctx, s.key, data); err != nil {
		return fmt.Errorf("write snapshot %q: %w", s.key, err)
	}
	return nil
}
