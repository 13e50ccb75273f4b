package geometry

import (
	"math"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"
)

// Op selects a boolean set operation.
type Op int

// Boolean operations.
const (
	OpUnion Op = iota
	OpIntersection
	OpDifference
)

// clipScale is the fixed-precision scaling factor applied before clipping.
// Coordinates are multiplied by clipScale and rounded, so the clipper only
// ever sees integral values; 1e6 keeps sub-micrometre resolution for
// metre-unit layouts.
const clipScale = 1e6

// minRingArea discards degenerate slivers produced by clipping, measured in
// world units after scaling back.
const minRingArea = 1e-9

// Boolean computes the union, intersection, or difference of two polygon
// sets. Holes in the inputs are honoured and holes in the result are
// reconstructed by containment. The result may be empty or contain several
// disjoint polygons (difference can split a polygon in two).
func Boolean(op Op, a, b Set) Set {
	// Trivial cases, which also spare the clipper from empty inputs.
	switch {
	case len(a) == 0 && len(b) == 0:
		return Set{}
	case len(a) == 0:
		if op == OpUnion {
			return normalizedClone(b)
		}
		return Set{}
	case len(b) == 0:
		if op == OpIntersection {
			return Set{}
		}
		return normalizedClone(a)
	}

	subject := toClip(a)
	clip := toClip(b)

	var pcOp polyclip.Op
	switch op {
	case OpIntersection:
		pcOp = polyclip.INTERSECTION
	case OpDifference:
		pcOp = polyclip.DIFFERENCE
	default:
		pcOp = polyclip.UNION
	}

	return fromClip(subject.Construct(pcOp, clip))
}

// Union is shorthand for Boolean(OpUnion, a, b).
func Union(a, b Set) Set { return Boolean(OpUnion, a, b) }

// Intersection is shorthand for Boolean(OpIntersection, a, b).
func Intersection(a, b Set) Set { return Boolean(OpIntersection, a, b) }

// Difference is shorthand for Boolean(OpDifference, a, b).
func Difference(a, b Set) Set { return Boolean(OpDifference, a, b) }

func normalizedClone(s Set) Set {
	out := s.Clone()
	for i := range out {
		out[i] = out[i].Normalize()
	}
	return out
}

// toClip converts a Set to clipper input, snapping every coordinate onto
// the fixed-precision grid.
func toClip(s Set) polyclip.Polygon {
	var out polyclip.Polygon
	for _, p := range s {
		out = append(out, ringToContour(p.Outer))
		for _, h := range p.Holes {
			out = append(out, ringToContour(h))
		}
	}
	return out
}

func ringToContour(r Ring) polyclip.Contour {
	c := make(polyclip.Contour, len(r))
	for i, p := range r {
		c[i] = polyclip.Point{
			X: math.Round(p.X * clipScale),
			Y: math.Round(p.Y * clipScale),
		}
	}
	return c
}

// fromClip scales clipper output back to world units and reassembles the
// flat contour list into polygons with holes.
//
// Contour nesting is recovered by even-odd depth: a contour contained by an
// even number of other contours is an outer ring, odd means hole. Each hole
// is attached to the smallest outer ring containing it.
func fromClip(p polyclip.Polygon) Set {
	type contour struct {
		ring Ring
		area float64
		rep  Point // interior representative point
	}

	contours := make([]contour, 0, len(p))
	for _, c := range p {
		ring := make(Ring, 0, len(c))
		for _, pt := range c {
			ring = append(ring, Point{pt.X / clipScale, pt.Y / clipScale})
		}
		ring = dedupeRing(ring)
		if len(ring) < 3 || ring.Area() < minRingArea {
			continue
		}
		contours = append(contours, contour{ring: ring, area: ring.Area(), rep: interiorPoint(ring)})
	}

	// Classify by containment depth. Clipper contours never cross, so a
	// contour can only enclose a strictly smaller one; the area guard
	// keeps a hole from claiming its own outer ring when the outer's
	// representative point happens to fall inside the hole.
	depth := make([]int, len(contours))
	for i := range contours {
		for j := range contours {
			if i == j || contours[j].area <= contours[i].area {
				continue
			}
			if contours[j].ring.Contains(contours[i].rep) {
				depth[i]++
			}
		}
	}

	type outer struct {
		idx  int
		ring Ring
	}
	var outers []outer
	var holes []int
	for i := range contours {
		if depth[i]%2 == 0 {
			outers = append(outers, outer{idx: i, ring: contours[i].ring})
		} else {
			holes = append(holes, i)
		}
	}

	// Smallest containing outer wins, so sort outers by area ascending.
	sort.Slice(outers, func(a, b int) bool {
		return contours[outers[a].idx].area < contours[outers[b].idx].area
	})

	polys := make([]Polygon, len(outers))
	for i, o := range outers {
		polys[i] = Polygon{Outer: o.ring}
	}
	for _, h := range holes {
		for i, o := range outers {
			if contours[o.idx].area <= contours[h].area {
				continue
			}
			if o.ring.Contains(contours[h].rep) {
				polys[i].Holes = append(polys[i].Holes, contours[h].ring)
				break
			}
		}
	}

	out := make(Set, 0, len(polys))
	for _, poly := range polys {
		out = append(out, poly.Normalize())
	}
	return out
}

// dedupeRing removes consecutive duplicate points, including the implicit
// wrap-around duplicate.
func dedupeRing(r Ring) Ring {
	if len(r) == 0 {
		return r
	}
	out := make(Ring, 0, len(r))
	for i, p := range r {
		if i == 0 || p != r[i-1] {
			out = append(out, p)
		}
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// interiorPoint returns a point strictly inside the ring. It uses the
// triangle at the bottom-most, left-most vertex, which is always convex.
func interiorPoint(r Ring) Point {
	lowest := 0
	for i, p := range r {
		q := r[lowest]
		if p.Y < q.Y || (p.Y == q.Y && p.X < q.X) {
			lowest = i
		}
	}
	a := r[(lowest+len(r)-1)%len(r)]
	v := r[lowest]
	b := r[(lowest+1)%len(r)]
	return Point{(a.X + v.X + b.X) / 3, (a.Y + v.Y + b.Y) / 3}
}
