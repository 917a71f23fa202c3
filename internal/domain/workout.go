package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind names a workout variant.
type Kind string

const (
	KindRunning Kind = "running"
	KindCycling Kind = "cycling"
)

// ParseKind maps a raw kind name to a known Kind.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindRunning:
		return KindRunning, true
	case KindCycling:
		return KindCycling, true
	default:
		return "", false
	}
}

// Title returns the kind name with its first letter upper-cased.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Coordinates is a latitude/longitude pair. It encodes as [lat, lng].
type Coordinates struct {
	Lat float64
	Lng float64
}

// MarshalJSON implements json.Marshaler.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Lat, c.Lng})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinates must have 2 elements, got %d", len(pair))
	}
	c.Lat, c.Lng = pair[0], pair[1]
	return nil
}

// Base holds the fields shared by every workout variant.
type Base struct {
	ID           string
	CreatedAt    time.Time
	Coords       Coordinates
	DistanceKm   float64
	DurationMin  float64
	Description  string
	Interactions int
}

// NewBase assigns identity and creation time. Inputs are stored as given.
func NewBase(coords Coordinates, distanceKm, durationMin float64, now time.Time) Base {
	return Base{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		Coords:      coords,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
	}
}

// Core returns the shared fields.
func (b *Base) Core() *Base { return b }

// RecordInteraction bumps the interaction counter.
func (b *Base) RecordInteraction() { b.Interactions++ }

// Workout is implemented by *Run and *Ride only.
type Workout interface {
	Kind() Kind
	Core() *Base
	DeriveDescription() string
	RecordInteraction()
	// Metric returns pace (min/km) for runs and speed (km/h) for rides.
	Metric() (float64, error)

	clone() Workout
}

func describe(kind Kind, createdAt time.Time) string {
	return fmt.Sprintf("%s on %s %d", kind.Title(), createdAt.Month(), createdAt.Day())
}

func safeDivide(num, den float64) (float64, error) {
	if den == 0 {
		return 0, ErrDivisionDegenerate
	}
	v := num / den
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrDivisionDegenerate
	}
	return v, nil
}

// Run is an endurance run.
type Run struct {
	Base
	CadenceSpm   int
	PaceMinPerKm float64
}

// NewRun constructs a run and derives its pace and description.
func NewRun(coords Coordinates, distanceKm, durationMin float64, cadenceSpm int, now time.Time) (*Run, error) {
	r := &Run{Base: NewBase(coords, distanceKm, durationMin, now), CadenceSpm: cadenceSpm}
	if err := r.derive(); err != nil {
		return nil, err
	}
	r.Description = r.DeriveDescription()
	return r, nil
}

// LoadRun rebuilds a run from persisted fields, applying the same rules as
// CreateInput. The pace is recomputed.
func LoadRun(base Base, cadenceSpm int) (*Run, error) {
	if err := validateLoaded(KindRunning, base, &cadenceSpm, nil); err != nil {
		return nil, err
	}
	r := &Run{Base: base, CadenceSpm: cadenceSpm}
	if err := r.derive(); err != nil {
		return nil, err
	}
	if r.Description == "" {
		r.Description = r.DeriveDescription()
	}
	return r, nil
}

// Kind implements Workout.
func (r *Run) Kind() Kind { return KindRunning }

// DeriveDescription implements Workout.
func (r *Run) DeriveDescription() string { return describe(KindRunning, r.CreatedAt) }

// DerivePace returns duration / distance.
func (r *Run) DerivePace() (float64, error) {
	return safeDivide(r.DurationMin, r.DistanceKm)
}

// Metric implements Workout.
func (r *Run) Metric() (float64, error) { return r.DerivePace() }

func (r *Run) derive() error {
	pace, err := r.DerivePace()
	if err != nil {
		return err
	}
	r.PaceMinPerKm = pace
	return nil
}

func (r *Run) clone() Workout {
	cp := *r
	return &cp
}

// Ride is a cycling ride.
type Ride struct {
	Base
	ElevationGainM float64
	SpeedKmPerH    float64
}

// NewRide constructs a ride and derives its speed and description.
func NewRide(coords Coordinates, distanceKm, durationMin, elevationGainM float64, now time.Time) (*Ride, error) {
	r := &Ride{Base: NewBase(coords, distanceKm, durationMin, now), ElevationGainM: elevationGainM}
	if err := r.derive(); err != nil {
		return nil, err
	}
	r.Description = r.DeriveDescription()
	return r, nil
}

// LoadRide rebuilds a ride from persisted fields, applying the same rules as
// CreateInput. The speed is recomputed.
func LoadRide(base Base, elevationGainM float64) (*Ride, error) {
	if err := validateLoaded(KindCycling, base, nil, &elevationGainM); err != nil {
		return nil, err
	}
	r := &Ride{Base: base, ElevationGainM: elevationGainM}
	if err := r.derive(); err != nil {
		return nil, err
	}
	if r.Description == "" {
		r.Description = r.DeriveDescription()
	}
	return r, nil
}

// Kind implements Workout.
func (r *Ride) Kind() Kind { return KindCycling }

// DeriveDescription implements Workout.
func (r *Ride) DeriveDescription() string { return describe(KindCycling, r.CreatedAt) }

// DeriveSpeed returns distance / (duration / 60).
func (r *Ride) DeriveSpeed() (float64, error) {
	if r.DurationMin == 0 {
		return 0, ErrDivisionDegenerate
	}
	return safeDivide(r.DistanceKm, r.DurationMin/60)
}

// Metric implements Workout.
func (r *Ride) Metric() (float64, error) { return r.DeriveSpeed() }

func (r *Ride) derive() error {
	speed, err := r.DeriveSpeed()
	if err != nil {
		return err
	}
	r.SpeedKmPerH = speed
	return nil
}

func (r *Ride) clone() Workout {
	cp := *r
	return &cp
}

// Rebuild returns a new workout of in.Kind that keeps the identity, creation
// time, coordinates and interaction count of existing. The derived metric and
// the description are computed for the new values; existing is left untouched.
func Rebuild(existing Workout, in EditInput) (Workout, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	old := existing.Core()
	base := Base{
		ID:           old.ID,
		CreatedAt:    old.CreatedAt,
		Coords:       old.Coords,
		DistanceKm:   in.DistanceKm,
		DurationMin:  in.DurationMin,
		Interactions: old.Interactions,
	}

	switch in.Kind {
	case KindRunning:
		r := &Run{Base: base, CadenceSpm: *in.CadenceSpm}
		if err := r.derive(); err != nil {
			return nil, err
		}
		r.Description = r.DeriveDescription()
		return r, nil
	case KindCycling:
		r := &Ride{Base: base, ElevationGainM: *in.ElevationGainM}
		if err := r.derive(); err != nil {
			return nil, err
		}
		r.Description = r.DeriveDescription()
		return r, nil
	default:
		return nil, invalid("kind", "unknown workout kind %q", in.Kind)
	}
}
