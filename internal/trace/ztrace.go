package trace

import (
	"fmt"

	"recon-tracer/pkg/colorutil"
	"recon-tracer/pkg/geometry"
)

// ZPoint is a ztrace vertex: section-local coordinates on section Section.
type ZPoint struct {
	X, Y    float64
	Section int
}

// Ztrace is a named path through several sections. It is owned by the series.
type Ztrace struct {
	Name   string
	Color  colorutil.Color
	Points []ZPoint
}

// DefaultZtraceColor is used for legacy ztraces without a color.
var DefaultZtraceColor = colorutil.Yellow

// Copy returns a deep copy.
func (z *Ztrace) Copy() *Ztrace {
	c := *z
	c.Points = make([]ZPoint, len(z.Points))
	copy(c.Points, z.Points)
	return &c
}

// PointsOn returns the indices of the points lying on section n.
func (z *Ztrace) PointsOn(n int) []int {
	var idx []int
	for i, p := range z.Points {
		if p.Section == n {
			idx = append(idx, i)
		}
	}
	return idx
}

// Point2D returns point i without its section number.
func (z *Ztrace) Point2D(i int) geometry.Point2D {
	return geometry.Point2D{X: z.Points[i].X, Y: z.Points[i].Y}
}

// Dict returns the persisted {"color": [r,g,b], "points": [[x,y,n], ...]} form.
func (z *Ztrace) Dict() map[string]any {
	pts := make([][]float64, len(z.Points))
	for i, p := range z.Points {
		pts[i] = []float64{p.X, p.Y, float64(p.Section)}
	}
	return map[string]any{
		"color":  z.Color.Ints(),
		"points": pts,
	}
}

// ZtraceFromDict parses the persisted form.
func ZtraceFromDict(name string, d map[string]any) (*Ztrace, error) {
	z := &Ztrace{Name: name, Color: DefaultZtraceColor}
	if c, ok := d["color"]; ok {
		col, err := ColorOf(c)
		if err != nil {
			return nil, fmt.Errorf("ztrace %q: color: %w", name, err)
		}
		z.Color = col
	}
	var raw []any
	switch pts := d["points"].(type) {
	case []any:
		raw = pts
	case [][]float64:
		for _, p := range pts {
			raw = append(raw, p)
		}
	}
	for i, p := range raw {
		v, err := Floats(p)
		if err != nil || len(v) != 3 {
			return nil, fmt.Errorf("ztrace %q: point %d must be [x, y, section]", name, i)
		}
		z.Points = append(z.Points, ZPoint{X: v[0], Y: v[1], Section: int(v[2])})
	}
	return z, nil
}
