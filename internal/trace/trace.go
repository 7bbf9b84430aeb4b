// Package trace defines traces, contours and ztraces.
package trace

import (
	"errors"
	"math"

	"recon-tracer/pkg/colorutil"
	"recon-tracer/pkg/geometry"
)

// ID is a section-unique handle assigned when a trace is stored in a section.
// The zero ID marks a trace that is not owned by any section.
type ID uint64

// OverlapTolerance is the largest point-set distance, in field units, at
// which two traces are considered the same geometry.
const OverlapTolerance = 1e-6

// ErrTooFewPoints is returned when an edit would leave a trace with fewer
// than two points.
var ErrTooFewPoints = errors.New("trace: need at least 2 points")

// FillMode is the (style, condition) pair controlling how a trace is filled.
type FillMode struct {
	Style     string
	Condition string
}

// DefaultFillMode is the fill mode of a new trace.
var DefaultFillMode = FillMode{Style: "none", Condition: "none"}

// Trace is a single drawn outline in section-local coordinates.
type Trace struct {
	ID       ID
	Name     string
	Points   []geometry.Point2D
	Color    colorutil.Color
	Closed   bool
	Negative bool
	Hidden   bool
	Fill     FillMode
	Tags     TagSet
}

// New creates a visible, positive trace with the default fill mode.
func New(name string, points []geometry.Point2D, color colorutil.Color, closed bool) *Trace {
	pts := make([]geometry.Point2D, len(points))
	copy(pts, points)
	return &Trace{
		Name:   name,
		Points: pts,
		Color:  color,
		Closed: closed,
		Fill:   DefaultFillMode,
		Tags:   NewTagSet(),
	}
}

// Copy returns a deep copy that is not owned by any section.
func (t *Trace) Copy() *Trace {
	c := *t
	c.ID = 0
	c.Points = make([]geometry.Point2D, len(t.Points))
	copy(c.Points, t.Points)
	c.Tags = t.Tags.Copy()
	return &c
}

// Normalize enforces the point-count invariants: a 2-point trace is open.
// It reports false when the trace has fewer than two points.
func (t *Trace) Normalize() bool {
	if len(t.Points) < 2 {
		return false
	}
	if len(t.Points) == 2 {
		t.Closed = false
	}
	return true
}

// Bounds returns the bounding box of the points mapped through tform.
func (t *Trace) Bounds(tform geometry.Transform) geometry.Bounds {
	pts, _ := tform.MapPoints(t.Points, false)
	return geometry.BoundingBox(pts)
}

// Midpoint returns the center of the untransformed bounding box.
func (t *Trace) Midpoint() geometry.Point2D {
	return geometry.BoundingBox(t.Points).Center()
}

// Centroid returns the mean of the points.
func (t *Trace) Centroid() geometry.Point2D {
	return geometry.Centroid(t.Points)
}

// Length returns the polyline length of the transformed points, including
// the closing edge for closed traces.
func (t *Trace) Length(tform geometry.Transform) float64 {
	pts, _ := tform.MapPoints(t.Points, false)
	return geometry.LineLength(pts, t.Closed)
}

// FieldPoints returns the points mapped through tform.
func (t *Trace) FieldPoints(tform geometry.Transform) []geometry.Point2D {
	pts, _ := tform.MapPoints(t.Points, false)
	return pts
}

// Overlaps reports whether other has the same geometry: equal closedness and
// every point of each trace within OverlapTolerance of a point of the other.
func (t *Trace) Overlaps(other *Trace) bool {
	if t.Closed != other.Closed {
		return false
	}
	if len(t.Points) == len(other.Points) {
		same := true
		for i := range t.Points {
			if t.Points[i].Distance(other.Points[i]) > OverlapTolerance {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return directedHausdorff(t.Points, other.Points) <= OverlapTolerance &&
		directedHausdorff(other.Points, t.Points) <= OverlapTolerance
}

func directedHausdorff(a, b []geometry.Point2D) float64 {
	var worst float64
	for _, p := range a {
		best := math.Inf(1)
		for _, q := range b {
			if d := p.Distance(q); d < best {
				best = d
			}
		}
		worst = math.Max(worst, best)
	}
	return worst
}

// MergeTags adds other's tags to t.
func (t *Trace) MergeTags(other *Trace) {
	if t.Tags == nil {
		t.Tags = NewTagSet()
	}
	t.Tags.Union(other.Tags)
}

// MagScale rescales every point by newMag/oldMag.
func (t *Trace) MagScale(oldMag, newMag float64) {
	k := newMag / oldMag
	for i, p := range t.Points {
		t.Points[i] = p.Scale(k)
	}
}

// Radius returns the mean distance of the points from their centroid.
func (t *Trace) Radius() float64 {
	if len(t.Points) == 0 {
		return 0
	}
	c := t.Centroid()
	var sum float64
	for _, p := range t.Points {
		sum += p.Distance(c)
	}
	return sum / float64(len(t.Points))
}

// Resize scales the trace about its centroid so its radius becomes r.
// A trace with zero radius is left unchanged.
func (t *Trace) Resize(r float64) {
	cur := t.Radius()
	if cur == 0 {
		return
	}
	k := r / cur
	c := t.Centroid()
	for i, p := range t.Points {
		t.Points[i] = c.Add(p.Sub(c).Scale(k))
	}
}

// Reshape replaces the points with shape, recentered on the current
// centroid and scaled to the current radius.
func (t *Trace) Reshape(shape []geometry.Point2D) error {
	if len(shape) < 2 {
		return ErrTooFewPoints
	}
	rad := t.Radius()
	center := t.Centroid()

	s := &Trace{Points: shape}
	sc, sr := s.Centroid(), s.Radius()
	k := 1.0
	if sr > 0 {
		k = rad / sr
	}
	pts := make([]geometry.Point2D, len(shape))
	for i, p := range shape {
		pts[i] = center.Add(p.Sub(sc).Scale(k))
	}
	t.Points = pts
	t.Normalize()
	return nil
}
