package geometry

import (
	"math"
	"testing"
)

// square returns an axis-aligned square of the given side centred on (cx, cy).
func square(cx, cy, side float64) Polygon {
	h := side / 2
	return Polygon{Outer: Ring{
		{cx - h, cy - h}, {cx + h, cy - h}, {cx + h, cy + h}, {cx - h, cy + h},
	}}
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestUnionDisjoint(t *testing.T) {
	a := Set{square(0, 0, 2)}
	b := Set{square(10, 0, 2)}

	result := Union(a, b)

	if len(result) != 2 {
		t.Fatalf("expected 2 disjoint polygons, got %d", len(result))
	}
	if !almostEqual(result.Area(), 8, 1e-6) {
		t.Errorf("union area: got %f, want 8", result.Area())
	}
}

func TestIntersectionDisjointIsEmpty(t *testing.T) {
	a := Set{square(0, 0, 2)}
	b := Set{square(10, 0, 2)}

	result := Intersection(a, b)

	if len(result) != 0 {
		t.Fatalf("expected empty intersection, got %d polygons", len(result))
	}
}

func TestDifferenceDisjointIsIdentity(t *testing.T) {
	a := Set{square(0, 0, 2)}
	b := Set{square(10, 0, 2)}

	result := Difference(a, b)

	if len(result) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(result))
	}
	if !almostEqual(result.Area(), 4, 1e-6) {
		t.Errorf("difference area: got %f, want 4", result.Area())
	}
}

func TestUnionOverlapping(t *testing.T) {
	a := Set{square(0, 0, 2)}
	b := Set{square(1, 0, 2)} // overlaps a in a 1x2 strip

	result := Union(a, b)

	if len(result) != 1 {
		t.Fatalf("expected 1 merged polygon, got %d", len(result))
	}
	if !almostEqual(result.Area(), 6, 1e-6) {
		t.Errorf("union area: got %f, want 6", result.Area())
	}
}

func TestDifferenceSplitsPolygon(t *testing.T) {
	// A wide rectangle minus a full-height strip through the middle
	// splits into two pieces.
	a := Set{square(0, 0, 4)}
	strip := Polygon{Outer: Ring{{-0.5, -3}, {0.5, -3}, {0.5, 3}, {-0.5, 3}}}

	result := Difference(a, Set{strip})

	if len(result) != 2 {
		t.Fatalf("expected split into 2 polygons, got %d", len(result))
	}
	if !almostEqual(result.Area(), 12, 1e-6) {
		t.Errorf("split area: got %f, want 12", result.Area())
	}
}

func TestDifferenceCreatesHole(t *testing.T) {
	a := Set{square(0, 0, 4)}
	b := Set{square(0, 0, 2)}

	result := Difference(a, b)

	if len(result) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(result))
	}
	if len(result[0].Holes) != 1 {
		t.Fatalf("expected 1 hole, got %d", len(result[0].Holes))
	}
	if !almostEqual(result.Area(), 12, 1e-6) {
		t.Errorf("area with hole: got %f, want 12", result.Area())
	}
	// Canonical winding after the operation.
	if result[0].Outer.SignedArea() <= 0 {
		t.Error("outer ring should wind counter-clockwise")
	}
	if result[0].Holes[0].SignedArea() >= 0 {
		t.Error("hole ring should wind clockwise")
	}
}

func TestDifferenceOffCentreHole(t *testing.T) {
	// The hole sits off-centre, towards the outer's bottom-left corner,
	// so containment classification cannot rely on any single fixed
	// sample point of the outer ring landing outside it.
	a := Set{square(5, 5, 10)}
	b := Set{square(3.4, 3.4, 2)}

	result := Difference(a, b)

	if len(result) != 1 {
		t.Fatalf("expected 1 polygon, got %d", len(result))
	}
	if len(result[0].Holes) != 1 {
		t.Fatalf("expected 1 hole, got %d", len(result[0].Holes))
	}
	if !almostEqual(result.Area(), 96, 1e-6) {
		t.Errorf("area: got %f, want 96", result.Area())
	}
}

func TestHolePreservedThroughUnion(t *testing.T) {
	// A square with a centred hole, unioned with a disjoint square,
	// keeps its hole.
	withHole := Difference(Set{square(0, 0, 4)}, Set{square(0, 0, 2)})
	other := Set{square(20, 0, 2)}

	result := Union(withHole, other)

	holes := 0
	for _, p := range result {
		holes += len(p.Holes)
	}
	if holes != 1 {
		t.Errorf("expected hole to survive union, got %d holes", holes)
	}
	if !almostEqual(result.Area(), 16, 1e-6) {
		t.Errorf("area: got %f, want 16", result.Area())
	}
}

func TestIntersectionOverlap(t *testing.T) {
	a := Set{square(0, 0, 2)}
	b := Set{square(1, 1, 2)}

	result := Intersection(a, b)

	if !almostEqual(result.Area(), 1, 1e-6) {
		t.Errorf("intersection area: got %f, want 1", result.Area())
	}
}

func TestBooleanEmptyOperands(t *testing.T) {
	a := Set{square(0, 0, 2)}

	if got := Union(a, Set{}); !almostEqual(got.Area(), 4, 1e-9) {
		t.Errorf("union with empty: got area %f, want 4", got.Area())
	}
	if got := Union(Set{}, a); !almostEqual(got.Area(), 4, 1e-9) {
		t.Errorf("union onto empty: got area %f, want 4", got.Area())
	}
	if got := Intersection(a, Set{}); len(got) != 0 {
		t.Errorf("intersection with empty: got %d polygons", len(got))
	}
	if got := Difference(Set{}, a); len(got) != 0 {
		t.Errorf("empty minus a: got %d polygons", len(got))
	}
	if got := Difference(a, Set{}); !almostEqual(got.Area(), 4, 1e-9) {
		t.Errorf("a minus empty: got area %f, want 4", got.Area())
	}
}

func TestBooleanDeterministic(t *testing.T) {
	// Near-degenerate sliver overlap: repeated runs must agree exactly.
	a := Set{square(0, 0, 2)}
	b := Set{Polygon{Outer: Ring{
		{0.9999999, -1}, {1.0000001, -1}, {1.0000001, 1}, {0.9999999, 1},
	}}}

	first := Union(a, b).Area()
	for i := 0; i < 10; i++ {
		if got := Union(a, b).Area(); got != first {
			t.Fatalf("non-deterministic union area: %v vs %v", got, first)
		}
	}
}
