// Package alignment estimates section transforms and parses external
// transform formats.
package alignment

import (
	"errors"
	"fmt"

	"recon-tracer/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// ErrTooFewPoints is returned when fewer than three correspondences are given.
var ErrTooFewPoints = errors.New("alignment: need at least 3 point pairs")

// ErrCollinearPoints is returned by CheckNonCollinear.
var ErrCollinearPoints = errors.New("alignment: points are collinear")

// EstimateLinearTform returns the least-squares affine transform mapping
// each a[i] onto b[i]. It does not detect degenerate (collinear) input;
// callers that accept user points should run CheckNonCollinear first.
func EstimateLinearTform(a, b []geometry.Point2D) (geometry.Transform, error) {
	if len(a) != len(b) {
		return geometry.Transform{}, fmt.Errorf("alignment: point count mismatch: %d vs %d", len(a), len(b))
	}
	n := len(a)
	if n < 3 {
		return geometry.Transform{}, ErrTooFewPoints
	}

	// Build overdetermined system
	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := a[i].X, a[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, b[i].X)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, b[i].Y)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.Transform{}, fmt.Errorf("alignment: least squares: %w", err)
	}

	return geometry.Transform{
		A: params.AtVec(0),
		B: params.AtVec(1),
		C: params.AtVec(2),
		D: params.AtVec(3),
		E: params.AtVec(4),
		F: params.AtVec(5),
	}, nil
}

// CheckNonCollinear rejects point sets that cannot constrain an affine fit.
func CheckNonCollinear(points []geometry.Point2D) error {
	if len(points) < 3 {
		return ErrTooFewPoints
	}
	b := geometry.BoundingBox(points)
	tol := 1e-9 * max(b.Width(), b.Height(), 1)
	if geometry.Collinear(points, tol) {
		return ErrCollinearPoints
	}
	return nil
}
