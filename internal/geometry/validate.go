package geometry

import "fmt"

// minValidArea is the smallest ring area accepted by Validate.
const minValidArea = 1e-9

// Validate checks a polygon for structural defects: rings with fewer than 3
// distinct points, zero-area rings, self-intersecting rings, and holes that
// escape the outer ring. Invalid polygons are rejected, never repaired.
func Validate(p Polygon) error {
	if err := validateRing(p.Outer); err != nil {
		return fmt.Errorf("outer ring: %w", err)
	}
	for i, h := range p.Holes {
		if err := validateRing(h); err != nil {
			return fmt.Errorf("hole %d: %w", i, err)
		}
		for _, pt := range h {
			if !p.Outer.Contains(pt) && !onRing(p.Outer, pt) {
				return fmt.Errorf("hole %d: %w", i, ErrHoleOutsideOuter)
			}
		}
	}
	return nil
}

// ValidateSet validates every polygon in the set.
func ValidateSet(s Set) error {
	for i, p := range s {
		if err := Validate(p); err != nil {
			return fmt.Errorf("polygon %d: %w", i, err)
		}
	}
	return nil
}

func validateRing(r Ring) error {
	distinct := make(map[Point]struct{}, len(r))
	for _, p := range r {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return ErrTooFewPoints
	}
	// Self-intersection first: a bowtie also has near-zero signed area,
	// and the crossing is the more useful diagnosis.
	if ringSelfIntersects(r) {
		return ErrSelfIntersecting
	}
	if r.Area() < minValidArea {
		return ErrZeroArea
	}
	return nil
}

// ringSelfIntersects reports whether any two non-adjacent edges of the ring
// cross, or adjacent edges fold back over each other.
func ringSelfIntersects(r Ring) bool {
	n := len(r)
	for i := 0; i < n; i++ {
		a1 := r[i]
		a2 := r[(i+1)%n]
		for j := i + 1; j < n; j++ {
			b1 := r[j]
			b2 := r[(j+1)%n]

			adjacent := j == i+1 || (i == 0 && j == n-1)
			if adjacent {
				// Shared endpoint is fine; a spike folding back is not.
				if segmentsOverlap(a1, a2, b1, b2) {
					return true
				}
				continue
			}
			if segmentsIntersect(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

// orient returns the sign of the cross product (b-a) x (c-a):
// +1 for a left turn, -1 for a right turn, 0 for collinear.
func orient(a, b, c Point) int {
	v := b.Sub(a).Cross(c.Sub(a))
	switch {
	case v > 1e-12:
		return 1
	case v < -1e-12:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether collinear point p lies within segment ab.
func onSegment(a, b, p Point) bool {
	return min(a.X, b.X)-1e-12 <= p.X && p.X <= max(a.X, b.X)+1e-12 &&
		min(a.Y, b.Y)-1e-12 <= p.Y && p.Y <= max(a.Y, b.Y)+1e-12
}

// onRing reports whether the point lies on any edge of the ring.
func onRing(r Ring, p Point) bool {
	for i, a := range r {
		b := r[(i+1)%len(r)]
		if orient(a, b, p) == 0 && onSegment(a, b, p) {
			return true
		}
	}
	return false
}

// segmentsIntersect reports whether segments a1a2 and b1b2 share any point.
func segmentsIntersect(a1, a2, b1, b2 Point) bool {
	o1 := orient(a1, a2, b1)
	o2 := orient(a1, a2, b2)
	o3 := orient(b1, b2, a1)
	o4 := orient(b1, b2, a2)

	if o1 != o2 && o3 != o4 {
		return true
	}
	return (o1 == 0 && onSegment(a1, a2, b1)) ||
		(o2 == 0 && onSegment(a1, a2, b2)) ||
		(o3 == 0 && onSegment(b1, b2, a1)) ||
		(o4 == 0 && onSegment(b1, b2, a2))
}

// segmentsOverlap reports whether two segments sharing an endpoint run back
// over each other (collinear with overlapping extent beyond the shared point).
func segmentsOverlap(a1, a2, b1, b2 Point) bool {
	if orient(a1, a2, b1) != 0 || orient(a1, a2, b2) != 0 {
		return false
	}
	// All four points collinear. Overlap exists if the segments share more
	// than a single endpoint.
	shared := 0
	for _, p := range []Point{b1, b2} {
		if p == a1 || p == a2 {
			shared++
			continue
		}
		if onSegment(a1, a2, p) {
			return true
		}
	}
	for _, p := range []Point{a1, a2} {
		if p == b1 || p == b2 {
			continue
		}
		if onSegment(b1, b2, p) {
			return true
		}
	}
	return shared == 2 // identical segments
}
