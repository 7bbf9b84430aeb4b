package trace

import (
	"fmt"

	"recon-tracer/pkg/geometry"
)

// NameMismatchError is returned when a trace is added to a contour with a
// different name.
type NameMismatchError struct {
	Trace   string
	Contour string
}

func (e *NameMismatchError) Error() string {
	return fmt.Sprintf("trace: name %q does not match contour %q", e.Trace, e.Contour)
}

// Contour is the ordered set of traces that share a name on one section.
type Contour struct {
	Name   string
	traces []*Trace
}

// NewContour builds a contour, failing if any trace carries another name.
func NewContour(name string, traces ...*Trace) (*Contour, error) {
	c := &Contour{Name: name}
	for _, t := range traces {
		if err := c.Append(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append adds t at the end. The contour is unchanged on error.
func (c *Contour) Append(t *Trace) error {
	if t.Name != c.Name {
		return &NameMismatchError{Trace: t.Name, Contour: c.Name}
	}
	c.traces = append(c.traces, t)
	return nil
}

// Remove deletes t (by identity) and reports whether it was present.
func (c *Contour) Remove(t *Trace) bool {
	i := c.Index(t)
	if i < 0 {
		return false
	}
	c.traces = append(c.traces[:i], c.traces[i+1:]...)
	return true
}

// Index returns the position of t, or -1.
func (c *Contour) Index(t *Trace) int {
	for i, o := range c.traces {
		if o == t {
			return i
		}
	}
	return -1
}

// Len returns the number of traces.
func (c *Contour) Len() int { return len(c.traces) }

// At returns the i-th trace.
func (c *Contour) At(i int) *Trace { return c.traces[i] }

// IsEmpty reports whether the contour holds no traces.
func (c *Contour) IsEmpty() bool { return len(c.traces) == 0 }

// Traces returns a copy of the trace slice. The traces themselves are shared.
func (c *Contour) Traces() []*Trace {
	out := make([]*Trace, len(c.traces))
	copy(out, c.traces)
	return out
}

// Copy returns a deep copy.
func (c *Contour) Copy() *Contour {
	out := &Contour{Name: c.Name, traces: make([]*Trace, len(c.traces))}
	for i, t := range c.traces {
		out.traces[i] = t.Copy()
	}
	return out
}

// Bounds returns the union of the trace bounds under tform.
func (c *Contour) Bounds(tform geometry.Transform) (geometry.Bounds, bool) {
	if len(c.traces) == 0 {
		return geometry.Bounds{}, false
	}
	b := c.traces[0].Bounds(tform)
	for _, t := range c.traces[1:] {
		b = b.Union(t.Bounds(tform))
	}
	return b, true
}

// Midpoint returns the center of Bounds.
func (c *Contour) Midpoint(tform geometry.Transform) (geometry.Point2D, bool) {
	b, ok := c.Bounds(tform)
	return b.Center(), ok
}

// ImportTraces merges other into c. Traces that overlap an existing trace
// only contribute their tags; the rest are appended as copies. The common
// leading run of overlapping traces is matched positionally before the
// remainder is scanned. It returns the appended copies.
func (c *Contour) ImportTraces(other *Contour) []*Trace {
	k := 0
	for k < other.Len() && k < c.Len() {
		if !c.traces[k].Overlaps(other.traces[k]) {
			break
		}
		c.traces[k].MergeTags(other.traces[k])
		k++
	}

	remaining := make([]*Trace, len(c.traces)-k)
	copy(remaining, c.traces[k:])

	var added []*Trace
	for _, o := range other.traces[k:] {
		found := -1
		for i, s := range remaining {
			if s.Overlaps(o) {
				s.MergeTags(o)
				found = i
				break
			}
		}
		if found >= 0 {
			remaining = append(remaining[:found], remaining[found+1:]...)
			continue
		}
		cp := o.Copy()
		cp.Name = c.Name
		c.traces = append(c.traces, cp)
		added = append(added, cp)
	}
	return added
}
