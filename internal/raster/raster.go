// Package raster merges polygons by painting them onto a pixel mask and
// tracing the outlines of the filled region.
package raster

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"

	"recon-tracer/pkg/geometry"
)

// DefaultMaxPixels bounds the mask allocated by Merge.
const DefaultMaxPixels = 64 << 20

// ErrTooLarge is returned when the polygons span more pixels than allowed.
var ErrTooLarge = errors.New("raster: region too large")

// Options configures Merge.
type Options struct {
	// Epsilon is the Douglas-Peucker tolerance in pixels. Zero removes only
	// collinear vertices, so the result is exact on the pixel grid.
	Epsilon float64
	// MaxPixels caps the mask size; zero means DefaultMaxPixels.
	MaxPixels int
}

// Merge returns the outer boundaries of the union of polys. Coordinates are
// pixels; holes are dropped. Every returned outline is counter-clockwise
// (positive signed area).
func Merge(polys [][]geometry.Point2D, opts Options) ([][]geometry.Point2D, error) {
	var all []geometry.Point2D
	for _, p := range polys {
		if len(p) >= 3 {
			all = append(all, p...)
		}
	}
	if len(all) == 0 {
		return nil, nil
	}
	bb := geometry.BoundingBox(all)
	// one pixel margin so outlines never touch the mask edge
	ox := math.Floor(bb.XMin) - 1
	oy := math.Floor(bb.YMin) - 1
	w := int(math.Ceil(bb.XMax)-ox) + 1
	h := int(math.Ceil(bb.YMax)-oy) + 1
	maxPx := opts.MaxPixels
	if maxPx <= 0 {
		maxPx = DefaultMaxPixels
	}
	if w*h > maxPx {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}

	mask, err := paint(polys, w, h, ox, oy)
	if err != nil {
		return nil, err
	}

	var out [][]geometry.Point2D
	for _, loop := range traceLoops(mask, w, h) {
		if geometry.SignedArea(loop) <= 0 {
			continue
		}
		loop = simplifyLoop(loop, opts.Epsilon)
		for i := range loop {
			loop[i] = geometry.Point2D{X: loop[i].X + ox, Y: loop[i].Y + oy}
		}
		out = append(out, loop)
	}
	return out, nil
}

// paint fills every polygon with the non-zero rule and thresholds the
// coverage into a mask indexed [y*w+x].
func paint(polys [][]geometry.Point2D, w, h int, ox, oy float64) ([]bool, error) {
	dc := gg.NewContext(w, h)
	defer func() { _ = dc.Close() }()
	dc.SetFillRule(gg.FillRuleNonZero)
	dc.SetRGBA(1, 1, 1, 1)
	for _, p := range polys {
		if len(p) < 3 {
			continue
		}
		dc.MoveTo(p[0].X-ox, p[0].Y-oy)
		for _, q := range p[1:] {
			dc.LineTo(q.X-ox, q.Y-oy)
		}
		dc.ClosePath()
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("raster: fill: %w", err)
		}
	}
	img := dc.Image()
	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			mask[y*w+x] = a >= 0x8000
		}
	}
	return mask, nil
}

type edge struct {
	from, to image.Point
}

// traceLoops walks the pixel-edge boundary of mask. Each edge keeps the
// filled pixel on its left, so outer boundaries come out counter-clockwise
// and holes clockwise.
func traceLoops(mask []bool, w, h int) [][]geometry.Point2D {
	in := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask[y*w+x]
	}
	var order []edge
	out := make(map[image.Point][]int)
	add := func(e edge) {
		out[e.from] = append(out[e.from], len(order))
		order = append(order, e)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !in(x, y) {
				continue
			}
			if !in(x, y-1) {
				add(edge{image.Pt(x, y), image.Pt(x+1, y)})
			}
			if !in(x+1, y) {
				add(edge{image.Pt(x+1, y), image.Pt(x+1, y+1)})
			}
			if !in(x, y+1) {
				add(edge{image.Pt(x+1, y+1), image.Pt(x, y+1)})
			}
			if !in(x-1, y) {
				add(edge{image.Pt(x, y+1), image.Pt(x, y)})
			}
		}
	}

	used := make([]bool, len(order))
	var loops [][]geometry.Point2D
	for start := range order {
		if used[start] {
			continue
		}
		var loop []geometry.Point2D
		cur := start
		for {
			used[cur] = true
			e := order[cur]
			loop = append(loop, geometry.Point2D{X: float64(e.from.X), Y: float64(e.from.Y)})
			next := pickNext(e, out[e.to], order, used)
			if next < 0 {
				break
			}
			cur = next
		}
		if len(loop) >= 4 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// pickNext chooses the continuation at a vertex: left turn, then straight,
// then right. At a saddle this separates diagonally touching pixels.
func pickNext(in edge, candidates []int, order []edge, used []bool) int {
	dx, dy := in.to.X-in.from.X, in.to.Y-in.from.Y
	best, bestRank := -1, 3
	for _, c := range candidates {
		if used[c] {
			continue
		}
		e := order[c]
		ex, ey := e.to.X-e.from.X, e.to.Y-e.from.Y
		var rank int
		switch cross := dx*ey - dy*ex; {
		case cross > 0:
			rank = 0
		case cross == 0:
			rank = 1
		default:
			rank = 2
		}
		if rank < bestRank {
			best, bestRank = c, rank
		}
	}
	return best
}

// simplifyLoop runs simplifyPath on a closed loop.
func simplifyLoop(loop []geometry.Point2D, epsilon float64) []geometry.Point2D {
	closed := append(append([]geometry.Point2D(nil), loop...), loop[0])
	s := simplifyPath(closed, epsilon)
	return s[:len(s)-1]
}

// simplifyPath reduces points using the Douglas-Peucker algorithm.
func simplifyPath(path []geometry.Point2D, epsilon float64) []geometry.Point2D {
	if len(path) <= 2 {
		return path
	}

	dmax := 0.0
	index := 0
	end := len(path) - 1
	for i := 1; i < end; i++ {
		d := perpendicularDistance(path[i], path[0], path[end])
		if d > dmax {
			dmax = d
			index = i
		}
	}

	if dmax > epsilon {
		left := simplifyPath(path[:index+1], epsilon)
		right := simplifyPath(path[index:], epsilon)
		result := make([]geometry.Point2D, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}
	return []geometry.Point2D{path[0], path[end]}
}

// perpendicularDistance is the distance from p to the line through a and b.
func perpendicularDistance(p, a, b geometry.Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return p.Distance(a)
	}
	num := math.Abs(dy*p.X - dx*p.Y + b.X*a.Y - b.Y*a.X)
	return num / math.Hypot(dx, dy)
}
