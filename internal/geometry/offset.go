package geometry

import "math"

// Offset grows (distance > 0) or shrinks (distance < 0) a polygon's
// boundary by the given distance.
//
// It computes the stroke of the boundary with radius |distance| and unions
// it with (grow) or subtracts it from (shrink) the source polygon, which is
// the standard dilation/erosion identity. Growing may merge nearby lobes;
// shrinking may split the polygon or empty it entirely; the full result
// set is returned.
//
// A distance of 0 returns the input unchanged (modulo winding
// normalisation).
func Offset(p Polygon, distance float64, join Join) (Set, error) {
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return nil, ErrInvalidDistance
	}
	if err := validJoin(join); err != nil {
		return nil, err
	}
	if distance == 0 {
		return Set{p.Clone().Normalize()}, nil
	}

	radius := math.Abs(distance)
	stroke := Set{}
	for _, piece := range ringStroke(p.Outer, radius, join) {
		stroke = Union(stroke, Set{piece})
	}
	for _, h := range p.Holes {
		for _, piece := range ringStroke(h, radius, join) {
			stroke = Union(stroke, Set{piece})
		}
	}

	src := Set{p.Clone().Normalize()}
	if distance > 0 {
		return Union(src, stroke), nil
	}
	return Difference(src, stroke), nil
}

// OffsetSet offsets every polygon in the set and unions the results.
func OffsetSet(s Set, distance float64, join Join) (Set, error) {
	out := Set{}
	for _, p := range s {
		piece, err := Offset(p, distance, join)
		if err != nil {
			return nil, err
		}
		out = Union(out, piece)
	}
	return out, nil
}

// StrokePolyline converts an open center-line into a filled outline of the
// given total width, with mitered or rounded joins at interior vertices and
// butt caps at the ends. A straight segment of length L strokes to an exact
// L x width rectangle.
func StrokePolyline(pts []Point, width float64, join Join) (Set, error) {
	if width <= 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		return nil, ErrInvalidThickness
	}
	if err := validJoin(join); err != nil {
		return nil, err
	}
	line := dedupeLine(pts)
	if len(line) < 2 {
		return nil, ErrPolylineTooShort
	}

	half := width / 2
	out := Set{}
	for _, piece := range lineStroke(line, half, join, false) {
		out = Union(out, Set{piece})
	}
	return out, nil
}

func validJoin(join Join) error {
	switch join {
	case JoinMiter, JoinRound:
		return nil
	default:
		return ErrInvalidJoin
	}
}

// ringStroke strokes a closed ring: every vertex gets a join wedge.
func ringStroke(r Ring, radius float64, join Join) []Polygon {
	line := dedupeRing(r.Clone())
	if len(line) < 3 {
		return nil
	}
	closed := append(Ring{}, line...)
	closed = append(closed, line[0]) // reopen as a closed polyline
	return lineStroke(closed, radius, join, true)
}

// lineStroke builds per-edge rectangles plus join wedges for a polyline.
// When closed is true the first and last points coincide and the wrap-around
// vertex also receives a join.
func lineStroke(line []Point, radius float64, join Join, closed bool) []Polygon {
	var pieces []Polygon

	// Edge rectangles, expanded perpendicular on both sides.
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		d := b.Sub(a)
		length := d.Length()
		if length == 0 {
			continue
		}
		n := Point{-d.Y / length, d.X / length}.Scale(radius)
		pieces = append(pieces, Polygon{Outer: Ring{
			a.Add(n), b.Add(n), b.Sub(n), a.Sub(n),
		}}.Normalize())
	}

	// Join wedges at interior vertices.
	last := len(line) - 1
	for i := 1; i < last; i++ {
		if w := joinWedge(line[i-1], line[i], line[i+1], radius, join); w != nil {
			pieces = append(pieces, *w)
		}
	}
	if closed && last >= 2 {
		// Wrap-around join at the shared first/last vertex.
		if w := joinWedge(line[last-1], line[0], line[1], radius, join); w != nil {
			pieces = append(pieces, *w)
		}
	}
	return pieces
}

// joinWedge fills the gap between the edge rectangles of a->b and b->c on
// the outside of the turn. Returns nil for collinear edges.
func joinWedge(a, b, c Point, radius float64, join Join) *Polygon {
	d1 := b.Sub(a)
	d2 := c.Sub(b)
	l1, l2 := d1.Length(), d2.Length()
	if l1 == 0 || l2 == 0 {
		return nil
	}
	d1 = d1.Scale(1 / l1)
	d2 = d2.Scale(1 / l2)

	turn := d1.Cross(d2)
	if math.Abs(turn) < 1e-12 {
		return nil // collinear, rectangles already meet
	}

	// Outward normals on the gap side of the turn.
	var n1, n2 Point
	if turn < 0 {
		// Right turn: gap opens on the left side.
		n1 = Point{-d1.Y, d1.X}
		n2 = Point{-d2.Y, d2.X}
	} else {
		// Left turn: gap opens on the right side.
		n1 = Point{d1.Y, -d1.X}
		n2 = Point{d2.Y, -d2.X}
	}

	p1 := b.Add(n1.Scale(radius))
	p2 := b.Add(n2.Scale(radius))

	if join == JoinRound {
		ring := Ring{b, p1}
		ring = append(ring, arcPoints(b, n1, n2, radius, turn > 0)...)
		ring = append(ring, p2)
		poly := Polygon{Outer: dedupeRing(ring)}.Normalize()
		return &poly
	}

	// Mitered join: extend along the angle bisector, capped by MiterLimit.
	bis := n1.Add(n2)
	bl := bis.Length()
	if bl < 1e-12 {
		// ~180 degree turn, miter would be infinite; bevel instead.
		poly := Polygon{Outer: Ring{b, p1, p2}}.Normalize()
		return &poly
	}
	bis = bis.Scale(1 / bl)
	cosHalf := bis.Dot(n1)
	if cosHalf < 1/MiterLimit {
		// Spike exceeds the miter limit; bevel.
		poly := Polygon{Outer: Ring{b, p1, p2}}.Normalize()
		return &poly
	}
	m := b.Add(bis.Scale(radius / cosHalf))
	poly := Polygon{Outer: Ring{b, p1, m, p2}}.Normalize()
	return &poly
}

// arcPoints interpolates intermediate points along the arc from normal n1
// to n2 at the given radius around centre. ccw selects the sweep direction:
// counter-clockwise for left turns, clockwise for right turns.
func arcPoints(centre, n1, n2 Point, radius float64, ccw bool) []Point {
	a1 := math.Atan2(n1.Y, n1.X)
	a2 := math.Atan2(n2.Y, n2.X)

	sweep := a2 - a1
	if ccw {
		for sweep < 0 {
			sweep += 2 * math.Pi
		}
	} else {
		for sweep > 0 {
			sweep -= 2 * math.Pi
		}
	}

	steps := int(math.Ceil(math.Abs(sweep) / roundSegmentAngle))
	pts := make([]Point, 0, steps)
	for i := 1; i < steps; i++ {
		angle := a1 + sweep*float64(i)/float64(steps)
		pts = append(pts, centre.Add(Point{math.Cos(angle), math.Sin(angle)}.Scale(radius)))
	}
	return pts
}

// dedupeLine removes consecutive duplicate points from an open polyline.
func dedupeLine(pts []Point) []Point {
	out := make([]Point, 0, len(pts))
	for i, p := range pts {
		if i == 0 || p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
