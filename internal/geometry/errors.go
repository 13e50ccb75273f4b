package geometry

import "errors"

// Domain errors for the geometry package.
//
// These can be checked with errors.Is:
//
//	if errors.Is(err, geometry.ErrSelfIntersecting) {
//	    // reject the edit
//	}
var (
	// ErrTooFewPoints is returned when a ring has fewer than 3 distinct points.
	ErrTooFewPoints = errors.New("geometry: ring has fewer than 3 distinct points")

	// ErrZeroArea is returned when a ring encloses no area.
	ErrZeroArea = errors.New("geometry: ring has zero area")

	// ErrSelfIntersecting is returned when a ring crosses itself.
	ErrSelfIntersecting = errors.New("geometry: ring is self-intersecting")

	// ErrHoleOutsideOuter is returned when a hole ring is not contained by
	// the outer ring.
	ErrHoleOutsideOuter = errors.New("geometry: hole lies outside outer ring")

	// ErrInvalidDistance is returned when an offset distance is not finite.
	ErrInvalidDistance = errors.New("geometry: offset distance must be finite")

	// ErrInvalidJoin is returned when a join style is not recognised.
	ErrInvalidJoin = errors.New("geometry: invalid join style")

	// ErrPolylineTooShort is returned when a polyline has fewer than 2 points.
	ErrPolylineTooShort = errors.New("geometry: polyline needs at least 2 points")

	// ErrInvalidThickness is returned when a stroke width is not positive.
	ErrInvalidThickness = errors.New("geometry: stroke width must be positive")
)
