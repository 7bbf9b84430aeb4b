// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Bounds is an axis-aligned box given by its extreme coordinates.
type Bounds struct {
	XMin, YMin, XMax, YMax float64
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.XMax - b.XMin }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.YMax - b.YMin }

// Center returns the center point of the box.
func (b Bounds) Center() Point2D {
	return Point2D{X: (b.XMin + b.XMax) / 2, Y: (b.YMin + b.YMax) / 2}
}

// Contains returns true if the point is inside the box (edges included).
func (b Bounds) Contains(p Point2D) bool {
	return p.X >= b.XMin && p.X <= b.XMax && p.Y >= b.YMin && p.Y <= b.YMax
}

// Intersects returns true if this box overlaps another.
func (b Bounds) Intersects(other Bounds) bool {
	return b.XMin <= other.XMax && b.XMax >= other.XMin &&
		b.YMin <= other.YMax && b.YMax >= other.YMin
}

// Union returns the smallest box containing both boxes.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		XMin: math.Min(b.XMin, other.XMin),
		YMin: math.Min(b.YMin, other.YMin),
		XMax: math.Max(b.XMax, other.XMax),
		YMax: math.Max(b.YMax, other.YMax),
	}
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point2D) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{XMin: points[0].X, YMin: points[0].Y, XMax: points[0].X, YMax: points[0].Y}
	for _, p := range points[1:] {
		b.XMin = math.Min(b.XMin, p.X)
		b.XMax = math.Max(b.XMax, p.X)
		b.YMin = math.Min(b.YMin, p.Y)
		b.YMax = math.Max(b.YMax, p.Y)
	}
	return b
}

// GenerateCirclePoints generates n evenly-spaced points around a circle.
func GenerateCirclePoints(centerX, centerY, radius float64, n int) []Point2D {
	points := make([]Point2D, n)
	for i := 0; i < n; i++ {
		angle := float64(i) * 2.0 * math.Pi / float64(n)
		points[i] = Point2D{
			X: centerX + radius*math.Cos(angle),
			Y: centerY + radius*math.Sin(angle),
		}
	}
	return points
}
