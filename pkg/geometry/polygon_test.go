package geometry

import (
	"math"
	"testing"
)

var unitSquare = []Point2D{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

func TestPointInPolygon(t *testing.T) {
	tests := []struct {
		p    Point2D
		want bool
	}{
		{Point2D{0.5, 0.5}, true},
		{Point2D{1.5, 0.5}, false},
		{Point2D{-0.1, 0.9}, false},
	}
	for _, tt := range tests {
		if got := PointInPolygon(tt.p, unitSquare); got != tt.want {
			t.Errorf("PointInPolygon(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestSignedDistance(t *testing.T) {
	tests := []struct {
		name   string
		p      Point2D
		closed bool
		want   float64
	}{
		{"inside closed", Point2D{0.5, 0.25}, true, 0.25},
		{"outside closed", Point2D{2, 0.5}, true, -1},
		{"open has no interior", Point2D{0.5, 0.25}, false, -0.25},
		{"open skips closing edge", Point2D{-0.5, 0.5}, false, -math.Hypot(0.5, 0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := unitSquare
			if !tt.closed {
				pts = []Point2D{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
			}
			got := SignedDistance(tt.p, pts, tt.closed)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("SignedDistance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLineLength(t *testing.T) {
	if got := LineLength(unitSquare, false); got != 3 {
		t.Fatalf("open length = %v, want 3", got)
	}
	if got := LineLength(unitSquare, true); got != 4 {
		t.Fatalf("closed length = %v, want 4", got)
	}
	if got := LineLength(unitSquare[:1], true); got != 0 {
		t.Fatalf("single point length = %v", got)
	}
}

func TestSignedArea(t *testing.T) {
	if got := SignedArea(unitSquare); got != 1 {
		t.Fatalf("ccw area = %v, want 1", got)
	}
	rev := []Point2D{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	if got := SignedArea(rev); got != -1 {
		t.Fatalf("cw area = %v, want -1", got)
	}
	if Area(rev) != 1 {
		t.Fatalf("Area should be unsigned")
	}
}

func TestCollinear(t *testing.T) {
	if !Collinear([]Point2D{{0, 0}, {1, 1}, {2, 2}, {5, 5}}, 1e-9) {
		t.Fatal("diagonal points should be collinear")
	}
	if Collinear(unitSquare, 1e-9) {
		t.Fatal("square corners are not collinear")
	}
}

func TestBoundsAndBoundingBox(t *testing.T) {
	b := BoundingBox([]Point2D{{1, 5}, {-2, 3}, {4, -1}})
	want := Bounds{XMin: -2, YMin: -1, XMax: 4, YMax: 5}
	if b != want {
		t.Fatalf("BoundingBox = %+v, want %+v", b, want)
	}
	if b.Center() != (Point2D{1, 2}) {
		t.Fatalf("Center = %v", b.Center())
	}
	if !b.Intersects(Bounds{XMin: 3, YMin: 4, XMax: 10, YMax: 10}) {
		t.Fatal("expected intersection")
	}
	if got := b.Union(Bounds{XMin: 0, YMin: 0, XMax: 10, YMax: 1}); got.XMax != 10 || got.YMin != -1 {
		t.Fatalf("Union = %+v", got)
	}
}
