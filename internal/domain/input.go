package domain

import "math"

// CreateInput carries the raw values for a new workout.
type CreateInput struct {
	Kind           Kind
	Coords         Coordinates
	DistanceKm     float64
	DurationMin    float64
	CadenceSpm     *int
	ElevationGainM *float64
}

// Validate rejects non-finite or out-of-range values before construction.
func (in CreateInput) Validate() error {
	if err := validateCoords(in.Coords); err != nil {
		return err
	}
	return validateVariant(in.Kind, in.DistanceKm, in.DurationMin, in.CadenceSpm, in.ElevationGainM)
}

// EditInput replaces the editable fields of an existing workout. Coordinates
// and creation time are fixed for the lifetime of a workout.
type EditInput struct {
	Kind           Kind
	DistanceKm     float64
	DurationMin    float64
	CadenceSpm     *int
	ElevationGainM *float64
}

// Validate applies the same rules as CreateInput. Switching kind requires the
// extra field of the new kind.
func (in EditInput) Validate() error {
	return validateVariant(in.Kind, in.DistanceKm, in.DurationMin, in.CadenceSpm, in.ElevationGainM)
}

func validateVariant(kind Kind, distance, duration float64, cadence *int, elevation *float64) error {
	if !positive(distance) {
		return invalid("distanceKm", "must be a positive number")
	}
	if !positive(duration) {
		return invalid("durationMin", "must be a positive number")
	}

	switch kind {
	case KindRunning:
		if cadence == nil {
			return invalid("cadenceSpm", "is required for running")
		}
		if *cadence <= 0 {
			return invalid("cadenceSpm", "must be a positive integer")
		}
	case KindCycling:
		if elevation == nil {
			return invalid("elevationGainM", "is required for cycling")
		}
		if !finite(*elevation) || *elevation < 0 {
			return invalid("elevationGainM", "must be a non-negative number")
		}
	default:
		return invalid("kind", "unknown workout kind %q", kind)
	}
	return nil
}

func validateLoaded(kind Kind, base Base, cadence *int, elevation *float64) error {
	if base.ID == "" {
		return invalid("id", "is required")
	}
	if base.CreatedAt.IsZero() {
		return invalid("createdAt", "is required")
	}
	if base.Interactions < 0 {
		return invalid("interactionCount", "must not be negative")
	}
	if err := validateCoords(base.Coords); err != nil {
		return err
	}
	return validateVariant(kind, base.DistanceKm, base.DurationMin, cadence, elevation)
}

func validateCoords(c Coordinates) error {
	if !finite(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return invalid("coordinates", "latitude must be within [-90, 90]")
	}
	if !finite(c.Lng) || c.Lng < -180 || c.Lng > 180 {
		return invalid("coordinates", "longitude must be within [-180, 180]")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}
