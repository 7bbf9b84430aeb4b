package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrSingularTransform is returned when a transform has no inverse.
var ErrSingularTransform = errors.New("geometry: transform is not invertible")

// Transform is a 2D affine map stored as six coefficients.
//
//	x' = A*x + B*y + C
//	y' = D*x + E*y + F
//
// It encodes to JSON as the flat list [a, b, c, d, e, f].
type Transform struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1, E: 1}
}

// Translation returns a pure translation.
func Translation(dx, dy float64) Transform {
	return Transform{A: 1, E: 1, C: dx, F: dy}
}

// FromList builds a transform from six coefficients in [a b c d e f] order.
func FromList(coef []float64) (Transform, error) {
	if len(coef) != 6 {
		return Transform{}, fmt.Errorf("geometry: transform needs 6 coefficients, got %d", len(coef))
	}
	return Transform{A: coef[0], B: coef[1], C: coef[2], D: coef[3], E: coef[4], F: coef[5]}, nil
}

// List returns the coefficients in [a b c d e f] order.
func (t Transform) List() []float64 {
	return []float64{t.A, t.B, t.C, t.D, t.E, t.F}
}

// Map applies the transform to a point.
func (t Transform) Map(p Point2D) Point2D {
	return Point2D{
		X: t.A*p.X + t.B*p.Y + t.C,
		Y: t.D*p.X + t.E*p.Y + t.F,
	}
}

// MapInverse applies the inverse transform to a point.
func (t Transform) MapInverse(p Point2D) (Point2D, error) {
	inv, err := t.Inverse()
	if err != nil {
		return Point2D{}, err
	}
	return inv.Map(p), nil
}

// MapPoints maps every point, through the inverse when inverted is set.
// The input slice is not modified.
func (t Transform) MapPoints(points []Point2D, inverted bool) ([]Point2D, error) {
	m := t
	if inverted {
		inv, err := t.Inverse()
		if err != nil {
			return nil, err
		}
		m = inv
	}
	out := make([]Point2D, len(points))
	for i, p := range points {
		out[i] = m.Map(p)
	}
	return out, nil
}

// Compose returns the transform that applies other first and then t.
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		A: t.A*other.A + t.B*other.D,
		B: t.A*other.B + t.B*other.E,
		C: t.A*other.C + t.B*other.F + t.C,
		D: t.D*other.A + t.E*other.D,
		E: t.D*other.B + t.E*other.E,
		F: t.D*other.C + t.E*other.F + t.F,
	}
}

// Det returns the determinant of the linear part.
func (t Transform) Det() float64 {
	return t.A*t.E - t.B*t.D
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() (Transform, error) {
	det := t.Det()
	if math.Abs(det) < 1e-12 {
		return Transform{}, ErrSingularTransform
	}

	invDet := 1.0 / det
	return Transform{
		A: t.E * invDet,
		B: -t.B * invDet,
		C: (t.B*t.F - t.E*t.C) * invDet,
		D: -t.D * invDet,
		E: t.A * invDet,
		F: (t.D*t.C - t.A*t.F) * invDet,
	}, nil
}

// MagScale rescales the translation for a new magnification, so pixel
// space geometry is unchanged once every point is rescaled by the same ratio.
func (t Transform) MagScale(oldMag, newMag float64) Transform {
	k := newMag / oldMag
	t.C *= k
	t.F *= k
	return t
}

// ApproxEqual reports whether every coefficient differs by at most tol.
func (t Transform) ApproxEqual(other Transform, tol float64) bool {
	a, b := t.List(), other.List()
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

// IsIdentity reports whether t is exactly the identity.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}

// MarshalJSON encodes the transform as [a, b, c, d, e, f].
func (t Transform) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.List())
}

// UnmarshalJSON decodes the [a, b, c, d, e, f] layout.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var coef []float64
	if err := json.Unmarshal(data, &coef); err != nil {
		return err
	}
	parsed, err := FromList(coef)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
