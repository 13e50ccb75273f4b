package geometry

import "math"

// Point is a position in the shared planar coordinate system.
// Units are metres throughout the layout.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point { return Point{p.X * s, p.Y * s} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Cross returns the 2D cross product (z component) of p and q.
func (p Point) Cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }

// Length returns the Euclidean length of p treated as a vector.
func (p Point) Length() float64 { return math.Hypot(p.X, p.Y) }

// Dist returns the distance between p and q.
func (p Point) Dist(q Point) float64 { return p.Sub(q).Length() }

// Ring is an ordered closed sequence of points. The closing edge from the
// last point back to the first is implicit; rings never carry a duplicate
// closing point.
type Ring []Point

// Polygon is an outer ring plus zero or more hole rings.
// After Normalize the outer ring winds counter-clockwise and holes clockwise.
type Polygon struct {
	Outer Ring   `json:"outer"`
	Holes []Ring `json:"holes,omitempty"`
}

// Set is a collection of disjoint polygons. Boolean operations and offsets
// return a Set because results may contain zero, one, or several pieces.
type Set []Polygon

// Join selects the corner treatment used when offsetting or stroking.
type Join string

// Join styles.
const (
	JoinMiter Join = "miter"
	JoinRound Join = "round"
)

// MiterLimit caps the spike length of a mitered corner, as a multiple of
// the offset distance. Corners sharper than the limit fall back to a bevel.
const MiterLimit = 4.0

// roundSegmentAngle is the angular resolution of rounded joins.
const roundSegmentAngle = math.Pi / 16

// SignedArea returns the signed area of the ring: positive for
// counter-clockwise winding, negative for clockwise.
func (r Ring) SignedArea() float64 {
	if len(r) < 3 {
		return 0
	}
	sum := 0.0
	for i, p := range r {
		q := r[(i+1)%len(r)]
		sum += p.Cross(q)
	}
	return sum / 2
}

// Area returns the absolute area of the ring.
func (r Ring) Area() float64 { return math.Abs(r.SignedArea()) }

// Reverse reverses the winding of the ring in place.
func (r Ring) Reverse() {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}

// Clone returns an independent copy of the ring.
func (r Ring) Clone() Ring {
	if r == nil {
		return nil
	}
	out := make(Ring, len(r))
	copy(out, r)
	return out
}

// Contains reports whether the point lies inside the ring (even-odd rule).
// Points exactly on the boundary are not guaranteed either way.
func (r Ring) Contains(pt Point) bool {
	inside := false
	for i, a := range r {
		b := r[(i+1)%len(r)]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := a.X + (pt.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if pt.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Area returns the polygon's area: outer area minus hole areas.
func (p Polygon) Area() float64 {
	a := p.Outer.Area()
	for _, h := range p.Holes {
		a -= h.Area()
	}
	return a
}

// Contains reports whether the point is inside the polygon, holes excluded.
func (p Polygon) Contains(pt Point) bool {
	if !p.Outer.Contains(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.Contains(pt) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the polygon.
func (p Polygon) Clone() Polygon {
	out := Polygon{Outer: p.Outer.Clone()}
	if p.Holes != nil {
		out.Holes = make([]Ring, len(p.Holes))
		for i, h := range p.Holes {
			out.Holes[i] = h.Clone()
		}
	}
	return out
}

// Normalize enforces canonical winding: outer counter-clockwise, holes
// clockwise. It mutates the polygon and returns it for chaining.
func (p Polygon) Normalize() Polygon {
	if p.Outer.SignedArea() < 0 {
		p.Outer.Reverse()
	}
	for _, h := range p.Holes {
		if h.SignedArea() > 0 {
			h.Reverse()
		}
	}
	return p
}

// Area returns the total area of all polygons in the set.
func (s Set) Area() float64 {
	total := 0.0
	for _, p := range s {
		total += p.Area()
	}
	return total
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	for i, p := range s {
		out[i] = p.Clone()
	}
	return out
}

// Bounds returns the axis-aligned bounding box of the ring.
func (r Ring) Bounds() (minPt, maxPt Point) {
	minPt = Point{math.Inf(1), math.Inf(1)}
	maxPt = Point{math.Inf(-1), math.Inf(-1)}
	for _, p := range r {
		minPt.X = math.Min(minPt.X, p.X)
		minPt.Y = math.Min(minPt.Y, p.Y)
		maxPt.X = math.Max(maxPt.X, p.X)
		maxPt.Y = math.Max(maxPt.Y, p.Y)
	}
	return minPt, maxPt
}

// Rect builds a rectangle centred on pos with the given size, rotated by
// the given angle in degrees.
func Rect(pos Point, size Point, rotationDeg int) Polygon {
	corners := []Point{{-0.5, -0.5}, {0.5, -0.5}, {0.5, 0.5}, {-0.5, 0.5}}
	return fromUnitShape(corners, pos, size, rotationDeg)
}

// circleQuality is how many vertices approximate a circle.
const circleQuality = 45

// Circle builds a polygonal circle centred on pos; size gives the
// diameters along each axis, so unequal sizes yield an ellipse.
func Circle(pos Point, size Point, rotationDeg int) Polygon {
	pts := make([]Point, 0, circleQuality)
	for i := 0; i < circleQuality; i++ {
		angle := float64(i) / circleQuality * 2 * math.Pi
		pts = append(pts, Point{math.Cos(angle) * 0.5, math.Sin(angle) * 0.5})
	}
	return fromUnitShape(pts, pos, size, rotationDeg)
}

// Triangle builds a right triangle filling half the bounding rectangle.
func Triangle(pos Point, size Point, rotationDeg int) Polygon {
	corners := []Point{{-0.5, 0.5}, {0.5, 0.5}, {-0.5, -0.5}}
	return fromUnitShape(corners, pos, size, rotationDeg)
}

// fromUnitShape scales unit-square vertices by size, rotates, translates,
// and normalises winding.
func fromUnitShape(unit []Point, pos, size Point, rotationDeg int) Polygon {
	ring := make(Ring, len(unit))
	for i, u := range unit {
		ring[i] = rotatePoint(Point{u.X * size.X, u.Y * size.Y}, -rotationDeg).Add(pos)
	}
	return Polygon{Outer: ring}.Normalize()
}

// rotatePoint rotates p about the origin by deg degrees counter-clockwise.
func rotatePoint(p Point, deg int) Point {
	if deg == 0 {
		return p
	}
	rad := float64(deg) * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Point{p.X*cos - p.Y*sin, p.X*sin + p.Y*cos}
}
