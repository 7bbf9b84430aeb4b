package geometry

import "math"

// PointInPolygon tests if a point is inside a polygon using ray casting.
func PointInPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}

	inside := false
	n := len(polygon)

	for i := 0; i < n; i++ {
		j := (i + 1) % n
		pi, pj := polygon[i], polygon[j]

		// Check if ray from p going right intersects edge pi-pj
		if ((pi.Y > p.Y) != (pj.Y > p.Y)) &&
			(p.X < (pj.X-pi.X)*(p.Y-pi.Y)/(pj.Y-pi.Y)+pi.X) {
			inside = !inside
		}
	}

	return inside
}

// SegmentDistance returns the distance from p to the segment a-b.
func SegmentDistance(p, a, b Point2D) float64 {
	l2 := distSq(a, b)
	if l2 == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*(b.X-a.X) + (p.Y-a.Y)*(b.Y-a.Y)) / l2
	t = math.Max(0, math.Min(1, t))
	proj := Point2D{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
	return p.Distance(proj)
}

// PolylineDistance returns the distance from p to the nearest edge of the
// polyline. A closed polyline includes the edge from the last point back to
// the first.
func PolylineDistance(p Point2D, points []Point2D, closed bool) float64 {
	switch len(points) {
	case 0:
		return math.Inf(1)
	case 1:
		return p.Distance(points[0])
	}
	best := math.Inf(1)
	for i := 0; i < len(points)-1; i++ {
		best = math.Min(best, SegmentDistance(p, points[i], points[i+1]))
	}
	if closed {
		best = math.Min(best, SegmentDistance(p, points[len(points)-1], points[0]))
	}
	return best
}

// SignedDistance returns the distance from p to the polyline, positive when
// p lies inside a closed polygon and negative otherwise. Open polylines have
// no interior, so the result is never positive for them.
func SignedDistance(p Point2D, points []Point2D, closed bool) float64 {
	d := PolylineDistance(p, points, closed)
	if closed && PointInPolygon(p, points) {
		return d
	}
	return -d
}

// LineLength returns the summed edge lengths of the polyline.
func LineLength(points []Point2D, closed bool) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 0; i < len(points)-1; i++ {
		total += points[i].Distance(points[i+1])
	}
	if closed {
		total += points[len(points)-1].Distance(points[0])
	}
	return total
}

// SignedArea returns the shoelace area of the polygon. Counter-clockwise
// vertex order (x right, y up) gives a positive value.
func SignedArea(points []Point2D) float64 {
	n := len(points)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].X*points[j].Y - points[j].X*points[i].Y
	}
	return sum / 2
}

// Area returns the unsigned polygon area.
func Area(points []Point2D) float64 {
	return math.Abs(SignedArea(points))
}

// Collinear reports whether every point lies within tol of the line through
// the two most distant points of the set.
func Collinear(points []Point2D, tol float64) bool {
	if len(points) < 3 {
		return true
	}
	var a, b Point2D
	var far float64
	for i := range points {
		for j := i + 1; j < len(points); j++ {
			if d := distSq(points[i], points[j]); d > far {
				far, a, b = d, points[i], points[j]
			}
		}
	}
	if far == 0 {
		return true
	}
	length := math.Sqrt(far)
	for _, p := range points {
		if math.Abs(crossProduct(a, b, p))/length > tol {
			return false
		}
	}
	return true
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// distSq computes the squared distance between two points.
func distSq(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
