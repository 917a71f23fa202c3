package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var created = time.Date(2024, time.April, 14, 9, 30, 0, 0, time.UTC)

func TestNewRunDerivesPaceAndDescription(t *testing.T) {
	run, err := NewRun(Coordinates{Lat: 39, Lng: -12}, 5.2, 24, 178, created)
	require.NoError(t, err)

	require.InDelta(t, 4.615, run.PaceMinPerKm, 0.001)
	require.Equal(t, "Running on April 14", run.Description)
	require.Equal(t, KindRunning, run.Kind())
	require.NotEmpty(t, run.ID)
	require.Equal(t, created, run.CreatedAt)
	require.Zero(t, run.Interactions)
}

func TestNewRideDerivesSpeedAndDescription(t *testing.T) {
	ride, err := NewRide(Coordinates{Lat: 39, Lng: -12}, 27, 95, 523, created)
	require.NoError(t, err)

	require.InDelta(t, 17.05, ride.SpeedKmPerH, 0.01)
	require.Equal(t, "Cycling on April 14", ride.Description)
	require.Equal(t, KindCycling, ride.Kind())
}

func TestDerivedMetricsMatchFloatDivision(t *testing.T) {
	berlin := Coordinates{Lat: 52.52, Lng: 13.405}
	cases := []struct {
		name     string
		distance float64
		duration float64
	}{
		{"run example", 5.2, 24},
		{"ride example", 27, 95},
		{"fractional", 0.3, 0.7},
		{"long", 42.195, 187.3},
		{"tiny distance", 1e-9, 33},
		{"huge values", 1e300, 3e300},
		{"thirds", 1.0 / 3, 2.0 / 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run, err := NewRun(berlin, tc.distance, tc.duration, 178, created)
			require.NoError(t, err)
			pace, err := run.DerivePace()
			require.NoError(t, err)
			require.Equal(t, tc.duration/tc.distance, pace)
			require.Equal(t, tc.duration/tc.distance, run.PaceMinPerKm)

			ride, err := NewRide(berlin, tc.distance, tc.duration, 456, created)
			require.NoError(t, err)
			speed, err := ride.DeriveSpeed()
			require.NoError(t, err)
			require.Equal(t, tc.distance/(tc.duration/60), speed)
			require.Equal(t, tc.distance/(tc.duration/60), ride.SpeedKmPerH)
		})
	}

	run, err := NewRun(berlin, 5.2, 24, 178, created)
	require.NoError(t, err)
	require.InDelta(t, 4.615, run.PaceMinPerKm, 0.0005)

	ride, err := NewRide(berlin, 27, 95, 456, created)
	require.NoError(t, err)
	require.InDelta(t, 17.05, ride.SpeedKmPerH, 0.005)
}

func TestUnderflowingDivisorIsDegenerate(t *testing.T) {
	// 5e-324 / 60 rounds to zero
	_, err := NewRide(Coordinates{}, 27, 5e-324, 456, created)
	require.ErrorIs(t, err, ErrDivisionDegenerate)

	ride := &Ride{Base: Base{DistanceKm: 27, DurationMin: 5e-324}}
	_, err = ride.DeriveSpeed()
	require.ErrorIs(t, err, ErrDivisionDegenerate)

	// the quotient overflows to +Inf
	_, err = NewRun(Coordinates{}, 5e-324, 1e300, 178, created)
	require.ErrorIs(t, err, ErrDivisionDegenerate)
}

func TestDeriveDescriptionIsIdempotent(t *testing.T) {
	run, err := NewRun(Coordinates{}, 5, 25, 170, created)
	require.NoError(t, err)

	first := run.DeriveDescription()
	require.Equal(t, first, run.DeriveDescription())
	require.Equal(t, first, run.Description)
}

func TestZeroDivisorIsDegenerate(t *testing.T) {
	_, err := NewRun(Coordinates{}, 0, 24, 178, created)
	require.ErrorIs(t, err, ErrDivisionDegenerate)

	_, err = NewRide(Coordinates{}, 27, 0, 100, created)
	require.ErrorIs(t, err, ErrDivisionDegenerate)

	ride := &Ride{Base: Base{DistanceKm: 10}}
	_, err = ride.DeriveSpeed()
	require.ErrorIs(t, err, ErrDivisionDegenerate)
}

func TestRecordInteractionOnlyBumpsCounter(t *testing.T) {
	run, err := NewRun(Coordinates{Lat: 1, Lng: 2}, 5, 25, 170, created)
	require.NoError(t, err)
	before := *run

	run.RecordInteraction()
	run.RecordInteraction()

	require.Equal(t, 2, run.Interactions)
	run.Interactions = 0
	require.Equal(t, before, *run)
}

func TestRebuildSwitchesKind(t *testing.T) {
	run, err := NewRun(Coordinates{Lat: 1, Lng: 2}, 5, 25, 170, created)
	require.NoError(t, err)
	run.RecordInteraction()

	elevation := 300.0
	rebuilt, err := Rebuild(run, EditInput{Kind: KindCycling, DistanceKm: 20, DurationMin: 60, ElevationGainM: &elevation})
	require.NoError(t, err)

	ride, ok := rebuilt.(*Ride)
	require.True(t, ok)
	require.Equal(t, run.ID, ride.ID)
	require.Equal(t, run.CreatedAt, ride.CreatedAt)
	require.Equal(t, run.Coords, ride.Coords)
	require.Equal(t, 1, ride.Interactions)
	require.InDelta(t, 20.0, ride.SpeedKmPerH, 1e-9)
	require.Equal(t, "Cycling on April 14", ride.Description)

	// the original value is untouched
	require.Equal(t, 5.0, run.DistanceKm)
	require.Equal(t, KindRunning, run.Kind())
}

func TestRebuildKindChangeRequiresNewField(t *testing.T) {
	run, err := NewRun(Coordinates{}, 5, 25, 170, created)
	require.NoError(t, err)

	cadence := 170
	_, err = Rebuild(run, EditInput{Kind: KindCycling, DistanceKm: 20, DurationMin: 60, CadenceSpm: &cadence})
	require.ErrorIs(t, err, ErrInvalidInput)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "elevationGainM", verr.Field)
}

func TestLoadRunKeepsStoredDescription(t *testing.T) {
	base := Base{ID: "w-1", CreatedAt: created, DistanceKm: 10, DurationMin: 50, Description: "Running on April 14", Interactions: 3}
	run, err := LoadRun(base, 180)
	require.NoError(t, err)
	require.InDelta(t, 5.0, run.PaceMinPerKm, 1e-9)
	require.Equal(t, 3, run.Interactions)
	require.Equal(t, "Running on April 14", run.Description)

	base.Description = ""
	run, err = LoadRun(base, 180)
	require.NoError(t, err)
	require.Equal(t, "Running on April 14", run.Description)
}

func TestLoadRejectsOutOfRangeFields(t *testing.T) {
	valid := Base{ID: "w-1", CreatedAt: created, Coords: Coordinates{Lat: 52.52, Lng: 13.405}, DistanceKm: 10, DurationMin: 50}

	_, err := LoadRun(valid, 0)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = LoadRide(valid, -3)
	require.ErrorIs(t, err, ErrInvalidInput)

	outOfRange := valid
	outOfRange.Coords.Lat = 95
	_, err = LoadRun(outOfRange, 170)
	require.ErrorIs(t, err, ErrInvalidInput)

	negative := valid
	negative.DurationMin = -1
	_, err = LoadRide(negative, 10)
	require.ErrorIs(t, err, ErrInvalidInput)

	noID := valid
	noID.ID = ""
	_, err = LoadRun(noID, 170)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidateInputs(t *testing.T) {
	cadence := 170
	negative := -5.0
	cases := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"zero distance", CreateInput{Kind: KindRunning, DistanceKm: 0, DurationMin: 10, CadenceSpm: &cadence}, "distanceKm"},
		{"missing cadence", CreateInput{Kind: KindRunning, DistanceKm: 5, DurationMin: 10}, "cadenceSpm"},
		{"negative elevation", CreateInput{Kind: KindCycling, DistanceKm: 5, DurationMin: 10, ElevationGainM: &negative}, "elevationGainM"},
		{"unknown kind", CreateInput{Kind: "swimming", DistanceKm: 5, DurationMin: 10}, "kind"},
		{"latitude out of range", CreateInput{Kind: KindRunning, Coords: Coordinates{Lat: 91}, DistanceKm: 5, DurationMin: 10, CadenceSpm: &cadence}, "coordinates"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			require.ErrorIs(t, err, ErrInvalidInput)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestParseKind(t *testing.T) {
	kind, ok := ParseKind(" Cycling ")
	require.True(t, ok)
	require.Equal(t, KindCycling, kind)

	_, ok = ParseKind("rowing")
	require.False(t, ok)
	require.Equal(t, "Running", KindRunning.Title())
}
