package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/mapty/internal/events"
	"example.com/mapty/internal/publish"
)

func TestServiceCreatePersistsAndPublishes(t *testing.T) {
	store := &memStore{}
	pub := &recordingPublisher{}
	svc := newTestService(store, WithPublisher(pub))

	w, err := svc.Create(context.Background(), runInput(5.2, 24))
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	require.Equal(t, w.Core().ID, store.saved[0].Core().ID)
	require.Len(t, pub.events, 1)
	require.Equal(t, events.TypeWorkoutCreated, pub.events[0].Type)
	require.Equal(t, w.Core().ID, pub.events[0].Key)
}

func TestServiceFailedSaveLeavesStateUnchanged(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	first, err := svc.Create(ctx, runInput(5, 25))
	require.NoError(t, err)

	store.err = errors.New("disk full")
	_, err = svc.Create(ctx, runInput(10, 50))
	require.Error(t, err)
	require.Len(t, svc.List(Query{}), 1)

	err = svc.Delete(ctx, first.Core().ID)
	require.Error(t, err)
	_, err = svc.Get(first.Core().ID)
	require.NoError(t, err)
}

func TestServicePublishFailureIsNotFatal(t *testing.T) {
	svc := newTestService(&memStore{}, WithPublisher(&recordingPublisher{err: errors.New("broker down")}))

	_, err := svc.Create(context.Background(), runInput(5, 25))
	require.NoError(t, err)
	require.Len(t, svc.List(Query{}), 1)
}

func TestServiceMutationsDoNotWaitOnBroker(t *testing.T) {
	broker := &blockingPublisher{release: make(chan struct{}), delivered: make(chan string, 4)}
	dispatcher := publish.NewDispatcher(broker, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)

	svc := newTestService(&memStore{}, WithPublisher(dispatcher))

	done := make(chan error, 1)
	go func() {
		w, err := svc.Create(context.Background(), runInput(5, 25))
		if err == nil {
			err = svc.Delete(context.Background(), w.Core().ID)
		}
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("mutation waited on the broker")
	}

	close(broker.release)
	require.Equal(t, events.TypeWorkoutCreated, <-broker.delivered)
	require.Equal(t, events.TypeWorkoutDeleted, <-broker.delivered)

	cancel()
	dispatcher.Wait()
}

func TestServiceEditRebuildsVariant(t *testing.T) {
	svc := newTestService(&memStore{})
	ctx := context.Background()

	w, err := svc.Create(ctx, runInput(5, 25))
	require.NoError(t, err)

	elevation := 120.0
	edited, err := svc.Edit(ctx, w.Core().ID, EditInput{Kind: KindCycling, DistanceKm: 30, DurationMin: 90, ElevationGainM: &elevation})
	require.NoError(t, err)
	require.Equal(t, KindCycling, edited.Kind())
	require.Equal(t, w.Core().ID, edited.Core().ID)

	_, err = svc.Edit(ctx, w.Core().ID, EditInput{Kind: KindRunning, DistanceKm: 5, DurationMin: 25})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Edit(ctx, "missing", EditInput{Kind: KindCycling, DistanceKm: 5, DurationMin: 25, ElevationGainM: &elevation})
	require.ErrorIs(t, err, ErrWorkoutNotFound)
}

func TestServiceVisitCountsInteractions(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	w, err := svc.Create(ctx, runInput(5, 25))
	require.NoError(t, err)

	_, err = svc.Visit(ctx, w.Core().ID)
	require.NoError(t, err)
	visited, err := svc.Visit(ctx, w.Core().ID)
	require.NoError(t, err)

	require.Equal(t, 2, visited.Core().Interactions)
	require.Equal(t, 2, store.saved[0].Core().Interactions)
	// returned copies do not alias stored state
	visited.RecordInteraction()
	got, err := svc.Get(w.Core().ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Core().Interactions)
}

func TestServiceListDoesNotReorder(t *testing.T) {
	svc := newTestService(&memStore{})
	ctx := context.Background()

	for _, distance := range []float64{10, 3, 7} {
		_, err := svc.Create(ctx, runInput(distance, 40))
		require.NoError(t, err)
	}
	elevation := 50.0
	_, err := svc.Create(ctx, CreateInput{Kind: KindCycling, DistanceKm: 20, DurationMin: 60, ElevationGainM: &elevation})
	require.NoError(t, err)

	sorted := svc.List(Query{SortBy: SortDistance})
	require.Equal(t, []float64{3, 7, 10, 20}, distances(sorted))

	desc := svc.List(Query{Kind: KindRunning, SortBy: SortDistance, Descending: true})
	require.Equal(t, []float64{10, 7, 3}, distances(desc))

	require.Equal(t, []float64{10, 3, 7, 20}, distances(svc.List(Query{})))
}

func TestServiceListSortsByCreatedAtToTheNanosecond(t *testing.T) {
	stamps := []time.Time{created.Add(2 * time.Nanosecond), created, created.Add(time.Nanosecond)}
	next := 0
	svc := newTestService(&memStore{}, WithClock(func() time.Time {
		ts := stamps[next%len(stamps)]
		next++
		return ts
	}))
	ctx := context.Background()

	for i, distance := range []float64{1, 2, 3} {
		// commit reads the clock too; pin the creation stamp
		next = i
		_, err := svc.Create(ctx, runInput(distance, 40))
		require.NoError(t, err)
	}

	require.Equal(t, []float64{2, 3, 1}, distances(svc.List(Query{SortBy: SortCreated})))
	require.Equal(t, []float64{1, 3, 2}, distances(svc.List(Query{SortBy: SortCreated, Descending: true})))
}

func TestServiceReorder(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	var ids []string
	for _, distance := range []float64{1, 2, 3} {
		w, err := svc.Create(ctx, runInput(distance, 10))
		require.NoError(t, err)
		ids = append(ids, w.Core().ID)
	}

	require.NoError(t, svc.Reorder(ctx, []string{ids[2], ids[0], ids[1]}))
	require.Equal(t, []float64{3, 1, 2}, distances(svc.List(Query{})))
	require.Equal(t, []float64{3, 1, 2}, distances(store.saved))

	err := svc.Reorder(ctx, []string{ids[0], ids[0], ids[1]})
	require.ErrorIs(t, err, ErrInvalidInput)
	err = svc.Reorder(ctx, ids[:2])
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Equal(t, []float64{3, 1, 2}, distances(svc.List(Query{})))
}

func TestServiceDeleteAll(t *testing.T) {
	store := &memStore{}
	pub := &recordingPublisher{}
	svc := newTestService(store, WithPublisher(pub))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, runInput(5, 25))
		require.NoError(t, err)
	}

	n, err := svc.DeleteAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Empty(t, svc.List(Query{}))
	require.NotNil(t, store.saved)
	require.Empty(t, store.saved)
	require.Equal(t, events.TypeWorkoutsCleared, pub.events[len(pub.events)-1].Type)
}

func TestServiceLoadTreatsCorruptAsEmpty(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("decode: %w", ErrPersistenceCorrupt)}
	svc := newTestService(store)

	require.NoError(t, svc.Load(context.Background()))
	require.Empty(t, svc.List(Query{}))

	store.loadErr = errors.New("connection refused")
	require.Error(t, svc.Load(context.Background()))
}

func TestServiceLoadRestoresWorkouts(t *testing.T) {
	run, err := NewRun(Coordinates{}, 5, 25, 170, created)
	require.NoError(t, err)
	store := &memStore{saved: []Workout{run}}
	svc := newTestService(store)

	require.NoError(t, svc.Load(context.Background()))
	got, err := svc.Get(run.ID)
	require.NoError(t, err)
	require.Equal(t, run.Description, got.Core().Description)
}

func newTestService(store SnapshotStore, opts ...Option) *Service {
	opts = append([]Option{
		WithClock(func() time.Time { return created }),
		WithLogger(log.New(testWriter{}, "", 0)),
	}, opts...)
	return NewService(store, opts...)
}

func runInput(distance, duration float64) CreateInput {
	cadence := 170
	return CreateInput{
		Kind:        KindRunning,
		Coords:      Coordinates{Lat: 39.7, Lng: -8.8},
		DistanceKm:  distance,
		DurationMin: duration,
		CadenceSpm:  &cadence,
	}
}

func distances(ws []Workout) []float64 {
	out := make([]float64, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Core().DistanceKm)
	}
	return out
}

type memStore struct {
	saved   []Workout
	err     error
	loadErr error
}

func (m *memStore) Load(context.Context) ([]Workout, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved, nil
}

func (m *memStore) Save(_ context.Context, workouts []Workout) error {
	if m.err != nil {
		return m.err
	}
	m.saved = workouts
	return nil
}

type recordingPublisher struct {
	events []events.Envelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Envelope) error {
	p.events = append(p.events, event)
	return p.err
}

type blockingPublisher struct {
	release   chan struct{}
	delivered chan string
}

func (p *blockingPublisher) Publish(_ context.Context, event events.Envelope) error {
	<-p.release
	p.delivered <- event.Type
	return nil
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }
