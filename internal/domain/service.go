// Package domain defines the workout model and the operations on the workout log.
package domain

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"example.com/mapty/internal/events"
	"example.com/mapty/internal/observability"
)

// SnapshotStore persists the whole workout collection at once.
type SnapshotStore interface {
	// Load returns the stored collection, nil when nothing was stored yet.
	Load(ctx context.Context) ([]Workout, error)
	// Save overwrites the stored collection.
	Save(ctx context.Context, workouts []Workout) error
}

// EventPublisher delivers change notifications for the log.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Envelope) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, events.Envelope) error { return nil }

// Option configures optional behaviour for the Service.
type Option func(*Service)

// WithLogger overrides the logger used to report non-fatal failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithPublisher sets the publisher notified after each successful mutation.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the time source used for new workouts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service owns the ordered workout collection. Every mutation writes the full
// collection to the store before it becomes visible.
type Service struct {
	mu        sync.RWMutex
	store     SnapshotStore
	publisher EventPublisher
	now       func() time.Time
	logger    *log.Logger
	workouts  []Workout
}

// NewService constructs a Service with an empty collection. Call Load to
// restore persisted workouts.
func NewService(store SnapshotStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		publisher: noopPublisher{},
		now:       time.Now,
		logger:    log.New(log.Writer(), "[workouts] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load restores the collection from the store. Corrupt data is logged and
// treated as an empty log.
func (s *Service) Load(ctx context.Context) error {
	workouts, err := s.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrPersistenceCorrupt) {
			return fmt.Errorf("load workouts: %w", err)
		}
		s.logger.Printf("ignoring stored workouts: %v", err)
		observability.RecordCorruptSnapshot()
		workouts = nil
	}

	s.mu.Lock()
	s.workouts = workouts
	s.mu.Unlock()

	observability.RecordWorkoutCounts(countByKind(workouts))
	return nil
}

// Create validates the input, appends a new workout and persists the log.
func (s *Service) Create(ctx context.Context, in CreateInput) (Workout, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var (
		w   Workout
		err error
	)
	now := s.now()
	switch in.Kind {
	case KindRunning:
		w, err = NewRun(in.Coords, in.DistanceKm, in.DurationMin, *in.CadenceSpm, now)
	case KindCycling:
		w, err = NewRide(in.Coords, in.DistanceKm, in.DurationMin, *in.ElevationGainM, now)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	next := append(slices.Clone(s.workouts), w)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.publish(ctx, createdEvent(w))
	return w.clone(), nil
}

// Edit replaces the workout with a rebuilt instance carrying the new values.
func (s *Service) Edit(ctx context.Context, id string, in EditInput) (Workout, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrWorkoutNotFound
	}
	previous := s.workouts[idx]
	updated, err := Rebuild(previous, in)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next := slices.Clone(s.workouts)
	next[idx] = updated
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.publish(ctx, updatedEvent(updated, previous.Kind(), s.now()))
	return updated.clone(), nil
}

// Visit records an interaction with the workout.
func (s *Service) Visit(ctx context.Context, id string) (Workout, error) {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrWorkoutNotFound
	}
	visited := s.workouts[idx].clone()
	visited.RecordInteraction()
	next := slices.Clone(s.workouts)
	next[idx] = visited
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.publish(ctx, updatedEvent(visited, visited.Kind(), s.now()))
	return visited.clone(), nil
}

// Delete removes a single workout.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrWorkoutNotFound
	}
	next := slices.Delete(slices.Clone(s.workouts), idx, idx+1)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.publish(ctx, events.Envelope{
		Type:    events.TypeWorkoutDeleted,
		Key:     id,
		Payload: events.WorkoutDeleted{WorkoutID: id, DeletedAt: s.now().UTC()},
	})
	return nil
}

// DeleteAll empties the log and returns how many workouts were removed.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	count := len(s.workouts)
	if err := s.commit(ctx, []Workout{}); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	s.publish(ctx, events.Envelope{
		Type:    events.TypeWorkoutsCleared,
		Key:     "all",
		Payload: events.WorkoutsCleared{Count: count, ClearedAt: s.now().UTC()},
	})
	return count, nil
}

// Reorder persists the collection in the order given by ids, which must name
// every workout exactly once.
func (s *Service) Reorder(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(s.workouts) {
		return invalid("ids", "must list every workout exactly once")
	}
	byID := make(map[string]Workout, len(s.workouts))
	for _, w := range s.workouts {
		byID[w.Core().ID] = w
	}
	next := make([]Workout, 0, len(ids))
	for _, id := range ids {
		w, ok := byID[id]
		if !ok {
			return invalid("ids", "unknown or repeated workout id %q", id)
		}
		delete(byID, id)
		next = append(next, w)
	}
	return s.commit(ctx, next)
}

// Get returns a copy of the workout with the given id.
func (s *Service) Get(id string) (Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, ErrWorkoutNotFound
	}
	return s.workouts[idx].clone(), nil
}

// SortField selects the ordering of a List view.
type SortField string

const (
	SortNone     SortField = ""
	SortCreated  SortField = "created"
	SortDistance SortField = "distance"
	SortDuration SortField = "duration"
	SortMetric   SortField = "metric"
)

// ParseSortField maps a raw query value to a SortField.
func ParseSortField(raw string) (SortField, bool) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(raw))); f {
	case SortNone, SortCreated, SortDistance, SortDuration, SortMetric:
		return f, true
	default:
		return "", false
	}
}

// Query filters and orders a List view.
type Query struct {
	Kind       Kind
	SortBy     SortField
	Descending bool
}

// List returns copies of the workouts matching q. The stored order is not
// changed; with no SortBy the stored order is kept.
func (s *Service) List(q Query) []Workout {
	s.mu.RLock()
	out := make([]Workout, 0, len(s.workouts))
	for _, w := range s.workouts {
		if q.Kind != "" && w.Kind() != q.Kind {
			continue
		}
		out = append(out, w.clone())
	}
	s.mu.RUnlock()

	if q.SortBy == SortNone {
		if q.Descending {
			slices.Reverse(out)
		}
		return out
	}

	compare := compareBy(q.SortBy)
	slices.SortStableFunc(out, func(a, b Workout) int {
		if q.Descending {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

func compareBy(field SortField) func(a, b Workout) int {
	switch field {
	case SortDistance:
		return func(a, b Workout) int { return cmp.Compare(a.Core().DistanceKm, b.Core().DistanceKm) }
	case SortDuration:
		return func(a, b Workout) int { return cmp.Compare(a.Core().DurationMin, b.Core().DurationMin) }
	case SortMetric:
		return func(a, b Workout) int {
			ma, _ := a.Metric()
			mb, _ := b.Metric()
			return cmp.Compare(ma, mb)
		}
	default:
		return func(a, b Workout) int { return a.Core().CreatedAt.Compare(b.Core().CreatedAt) }
	}
}

// commit must be called with s.mu held.
func (s *Service) commit(ctx context.Context, next []Workout) error {
	if err := s.store.Save(ctx, next); err != nil {
		observability.RecordSnapshotFailure()
		return fmt.Errorf("persist workouts: %w", err)
	}
	s.workouts = next
	observability.RecordSnapshotPersisted(s.now(), countByKind(next))
	return nil
}

func (s *Service) indexOf(id string) int {
	return slices.IndexFunc(s.workouts, func(w Workout) bool { return w.Core().ID == id })
}

func (s *Service) publish(ctx context.Context, event events.Envelope) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Printf("publish %s (key=%s) failed: %v", event.Type, event.Key, err)
	}
}

func countByKind(workouts []Workout) map[string]int {
	counts := map[string]int{string(KindRunning): 0, string(KindCycling): 0}
	for _, w := range workouts {
		counts[string(w.Kind())]++
	}
	return counts
}

func createdEvent(w Workout) events.Envelope {
	b := w.Core()
	metric, _ := w.Metric()
	return events.Envelope{
		Type: events.TypeWorkoutCreated,
		Key:  b.ID,
		Payload: events.WorkoutCreated{
			WorkoutID:   b.ID,
			Kind:        string(w.Kind()),
			CreatedAt:   b.CreatedAt.UTC(),
			Coordinates: [2]float64{b.Coords.Lat, b.Coords.Lng},
			DistanceKm:  b.DistanceKm,
			DurationMin: b.DurationMin,
			Metric:      metric,
			Description: b.Description,
		},
	}
}

func updatedEvent(w Workout, previous Kind, at time.Time) events.Envelope {
	b := w.Core()
	metric, _ := w.Metric()
	return events.Envelope{
		Type: events.TypeWorkoutUpdated,
		Key:  b.ID,
		Payload: events.WorkoutUpdated{
			WorkoutID:    b.ID,
			Kind:         string(w.Kind()),
			PreviousKind: string(previous),
			DistanceKm:   b.DistanceKm,
			DurationMin:  b.DurationMin,
			Metric:       metric,
			Description:  b.Description,
			Interactions: b.Interactions,
			UpdatedAt:    at.UTC(),
		},
	}
}
