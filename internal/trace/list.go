package trace

import (
	"fmt"

	"recon-tracer/pkg/colorutil"
	"recon-tracer/pkg/geometry"
)

// ListForm returns the persisted list layout
//
//	[x[], y[], [r,g,b], closed, negative, hidden, [style, condition], tags[]]
//
// with the name prepended when includeName is set (palette traces).
func (t *Trace) ListForm(includeName bool) []any {
	xs := make([]float64, len(t.Points))
	ys := make([]float64, len(t.Points))
	for i, p := range t.Points {
		xs[i], ys[i] = p.X, p.Y
	}
	out := make([]any, 0, 9)
	if includeName {
		out = append(out, t.Name)
	}
	return append(out,
		xs,
		ys,
		t.Color.Ints(),
		t.Closed,
		t.Negative,
		t.Hidden,
		[]string{t.Fill.Style, t.Fill.Condition},
		t.Tags.Sorted(),
	)
}

// FromListForm parses a decoded JSON list. With name empty the name is read
// from the first element (palette layout); otherwise the list omits it.
func FromListForm(raw []any, name string) (*Trace, error) {
	if name == "" {
		if len(raw) != 9 {
			return nil, fmt.Errorf("trace: named list needs 9 elements, got %d", len(raw))
		}
		n, ok := raw[0].(string)
		if !ok {
			return nil, fmt.Errorf("trace: name must be a string")
		}
		name, raw = n, raw[1:]
	}
	if len(raw) != 8 {
		return nil, fmt.Errorf("trace %q: list needs 8 elements, got %d", name, len(raw))
	}

	xs, err := Floats(raw[0])
	if err != nil {
		return nil, fmt.Errorf("trace %q: x: %w", name, err)
	}
	ys, err := Floats(raw[1])
	if err != nil {
		return nil, fmt.Errorf("trace %q: y: %w", name, err)
	}
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("trace %q: %d x values but %d y values", name, len(xs), len(ys))
	}
	col, err := ColorOf(raw[2])
	if err != nil {
		return nil, fmt.Errorf("trace %q: color: %w", name, err)
	}
	var flags [3]bool
	for i := range flags {
		b, ok := raw[3+i].(bool)
		if !ok {
			return nil, fmt.Errorf("trace %q: element %d must be a bool", name, 3+i)
		}
		flags[i] = b
	}
	mode := DefaultFillMode
	if m, ok := raw[6].([]string); ok && len(m) == 2 {
		mode = FillMode{Style: m[0], Condition: m[1]}
	} else if m, ok := raw[6].([]any); ok && len(m) == 2 {
		if s, ok := m[0].(string); ok {
			mode.Style = s
		}
		if c, ok := m[1].(string); ok {
			mode.Condition = c
		}
	}
	tags := NewTagSet()
	if list, ok := raw[7].([]string); ok {
		for _, v := range list {
			tags.Add(v)
		}
	} else if list, ok := raw[7].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				tags.Add(s)
			}
		}
	}

	pts := make([]geometry.Point2D, len(xs))
	for i := range xs {
		pts[i] = geometry.Point2D{X: xs[i], Y: ys[i]}
	}
	return &Trace{
		Name:     name,
		Points:   pts,
		Color:    col,
		Closed:   flags[0],
		Negative: flags[1],
		Hidden:   flags[2],
		Fill:     mode,
		Tags:     tags,
	}, nil
}

// Number returns v as a float64. Documents built in memory carry ints
// where decoded JSON carries float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Floats converts a decoded JSON number list.
func Floats(v any) ([]float64, error) {
	switch list := v.(type) {
	case []float64:
		return list, nil
	case [3]int:
		return []float64{float64(list[0]), float64(list[1]), float64(list[2])}, nil
	case []any:
		out := make([]float64, len(list))
		for i, e := range list {
			f, ok := Number(e)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, not a number", i, e)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}

// ColorOf converts a decoded [r, g, b] list.
func ColorOf(v any) (colorutil.Color, error) {
	ch, err := Floats(v)
	if err != nil {
		return colorutil.Color{}, err
	}
	if len(ch) != 3 {
		return colorutil.Color{}, fmt.Errorf("need 3 channels, got %d", len(ch))
	}
	return colorutil.FromInts(int(ch[0]), int(ch[1]), int(ch[2])), nil
}
