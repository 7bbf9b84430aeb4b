// Package section holds a single section: its per-alignment transforms,
// contours and flags, plus the transient selection and change tracking used
// by the editor.
package section

import (
	"errors"
	"sort"

	"recon-tracer/internal/trace"
	"recon-tracer/pkg/geometry"
)

// ErrTraceNotFound is returned when an ID does not name a trace on the section.
var ErrTraceNotFound = errors.New("section: trace not found")

// Defaults for a new section.
const (
	DefaultMag       = 0.00254
	DefaultThickness = 0.05
)

// ZtraceRef names a single ztrace point.
type ZtraceRef struct {
	Name  string
	Index int
}

// Section is one slice of the series.
type Section struct {
	N           int
	Src         string
	Brightness  int
	Contrast    int
	Mag         float64
	AlignLocked bool
	Tforms      map[string]geometry.Transform
	Thickness   float64
	Contours    map[string]*trace.Contour
	Flags       []*Flag
	Calgrid     bool

	// Extra keeps document fields this package does not interpret.
	Extra map[string]any

	SelectedTraces  []trace.ID
	SelectedZtraces []ZtraceRef
	SelectedFlags   []string

	nextID   trace.ID
	byID     map[trace.ID]*trace.Trace
	added    []*trace.Trace
	removed  []*trace.Trace
	modified map[string]struct{}
}

// New returns an empty section with default values.
func New(n int) *Section {
	return &Section{
		N:           n,
		Mag:         DefaultMag,
		AlignLocked: true,
		Thickness:   DefaultThickness,
		Tforms:      map[string]geometry.Transform{"default": geometry.Identity()},
		Contours:    make(map[string]*trace.Contour),
		Extra:       make(map[string]any),
		byID:        make(map[trace.ID]*trace.Trace),
		modified:    make(map[string]struct{}),
	}
}

// Tform returns the transform for alignment. Unknown alignments and
// NoAlignment yield identity.
func (s *Section) Tform(alignment string) geometry.Transform {
	if alignment == NoAlignment {
		return geometry.Identity()
	}
	if t, ok := s.Tforms[alignment]; ok {
		return t
	}
	return geometry.Identity()
}

// SetTform stores t under alignment. It is a no-op for NoAlignment.
func (s *Section) SetTform(alignment string, t geometry.Transform) {
	if alignment == NoAlignment {
		return
	}
	s.Tforms[alignment] = t
}

// register assigns t a fresh ID unless it already holds an unused one.
func (s *Section) register(t *trace.Trace) {
	if t.ID == 0 || s.byID[t.ID] != nil {
		s.nextID++
		t.ID = s.nextID
	} else if t.ID > s.nextID {
		s.nextID = t.ID
	}
	s.byID[t.ID] = t
}

// attach registers t and appends it to its contour.
func (s *Section) attach(t *trace.Trace) {
	s.register(t)
	c, ok := s.Contours[t.Name]
	if !ok {
		c = &trace.Contour{Name: t.Name}
		s.Contours[t.Name] = c
	}
	// names match by construction
	_ = c.Append(t)
}

// detach removes t from its contour without touching tracking. Empty
// contours are dropped.
func (s *Section) detach(t *trace.Trace) bool {
	c, ok := s.Contours[t.Name]
	if !ok || !c.Remove(t) {
		return false
	}
	if c.IsEmpty() {
		delete(s.Contours, t.Name)
	}
	delete(s.byID, t.ID)
	return true
}

func (s *Section) markModified(name string) {
	s.modified[name] = struct{}{}
}

// Trace returns the trace with the given ID.
func (s *Section) Trace(id trace.ID) (*trace.Trace, bool) {
	t, ok := s.byID[id]
	return t, ok
}

// Contour returns the contour with the given name.
func (s *Section) Contour(name string) (*trace.Contour, bool) {
	c, ok := s.Contours[name]
	return c, ok
}

// ContourNames returns the contour names in sorted order.
func (s *Section) ContourNames() []string {
	names := make([]string, 0, len(s.Contours))
	for n := range s.Contours {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TracesAsList returns every trace, grouped by contour in name order. The
// traces are not copied.
func (s *Section) TracesAsList() []*trace.Trace {
	var out []*trace.Trace
	for _, name := range s.ContourNames() {
		out = append(out, s.Contours[name].Traces()...)
	}
	return out
}

// Flag returns the flag with the given ID.
func (s *Section) Flag(id string) (*Flag, bool) {
	for _, f := range s.Flags {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// SelectedTraceList resolves the selection to traces, skipping stale IDs.
func (s *Section) SelectedTraceList() []*trace.Trace {
	out := make([]*trace.Trace, 0, len(s.SelectedTraces))
	for _, id := range s.SelectedTraces {
		if t, ok := s.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SelectedFlagList resolves the flag selection.
func (s *Section) SelectedFlagList() []*Flag {
	var out []*Flag
	for _, id := range s.SelectedFlags {
		if f, ok := s.Flag(id); ok {
			out = append(out, f)
		}
	}
	return out
}

// IsSelected reports whether id is in the trace selection.
func (s *Section) IsSelected(id trace.ID) bool {
	for _, o := range s.SelectedTraces {
		if o == id {
			return true
		}
	}
	return false
}

// Select adds ids to the trace selection.
func (s *Section) Select(ids ...trace.ID) {
	for _, id := range ids {
		if _, ok := s.byID[id]; ok && !s.IsSelected(id) {
			s.SelectedTraces = append(s.SelectedTraces, id)
		}
	}
}

// Deselect removes ids from the trace selection.
func (s *Section) Deselect(ids ...trace.ID) {
	drop := make(map[trace.ID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.SelectedTraces[:0]
	for _, id := range s.SelectedTraces {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.SelectedTraces = kept
}

// SelectAll selects every visible trace.
func (s *Section) SelectAll() {
	s.SelectedTraces = s.SelectedTraces[:0]
	for _, t := range s.TracesAsList() {
		if !t.Hidden {
			s.SelectedTraces = append(s.SelectedTraces, t.ID)
		}
	}
}

// DeselectAll clears the trace, ztrace and flag selections.
func (s *Section) DeselectAll() {
	s.SelectedTraces = nil
	s.SelectedZtraces = nil
	s.SelectedFlags = nil
}

// Added returns the traces added since the last ClearTracking.
func (s *Section) Added() []*trace.Trace { return s.added }

// Removed returns copies of the traces removed since the last ClearTracking.
func (s *Section) Removed() []*trace.Trace { return s.removed }

// ModifiedNames returns the names of every contour touched since the last
// ClearTracking, sorted.
func (s *Section) ModifiedNames() []string {
	set := make(map[string]struct{}, len(s.modified))
	for n := range s.modified {
		set[n] = struct{}{}
	}
	for _, t := range s.added {
		set[t.Name] = struct{}{}
	}
	for _, t := range s.removed {
		set[t.Name] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ClearTracking forgets added, removed and modified contours.
func (s *Section) ClearTracking() {
	s.added = nil
	s.removed = nil
	s.modified = make(map[string]struct{})
}

// SetMag rescales every transform and every trace to newMag.
func (s *Section) SetMag(newMag float64) {
	if newMag == s.Mag || s.Mag == 0 {
		s.Mag = newMag
		return
	}
	for name, t := range s.Tforms {
		s.Tforms[name] = t.MagScale(s.Mag, newMag)
	}
	for _, t := range s.TracesAsList() {
		t.MagScale(s.Mag, newMag)
		s.markModified(t.Name)
	}
	k := newMag / s.Mag
	for _, f := range s.Flags {
		f.X *= k
		f.Y *= k
	}
	s.Mag = newMag
}

// ImageFieldBounds returns the field-space bounds of an image of w×h pixels
// placed on this section under alignment.
func (s *Section) ImageFieldBounds(w, h int, alignment string) geometry.Bounds {
	fw, fh := float64(w)*s.Mag, float64(h)*s.Mag
	corners := []geometry.Point2D{{X: 0, Y: 0}, {X: fw, Y: 0}, {X: fw, Y: fh}, {X: 0, Y: fh}}
	pts, _ := s.Tform(alignment).MapPoints(corners, false)
	return geometry.BoundingBox(pts)
}

// Copy returns a deep copy. Trace IDs are preserved; selection and tracking
// are not copied.
func (s *Section) Copy() *Section {
	c := New(s.N)
	c.Src, c.Brightness, c.Contrast = s.Src, s.Brightness, s.Contrast
	c.Mag, c.AlignLocked, c.Thickness, c.Calgrid = s.Mag, s.AlignLocked, s.Thickness, s.Calgrid
	c.Tforms = make(map[string]geometry.Transform, len(s.Tforms))
	for k, v := range s.Tforms {
		c.Tforms[k] = v
	}
	for k, v := range s.Extra {
		c.Extra[k] = v
	}
	for _, t := range s.TracesAsList() {
		cp := t.Copy()
		cp.ID = t.ID
		c.attach(cp)
	}
	for _, f := range s.Flags {
		c.Flags = append(c.Flags, f.Copy())
	}
	return c
}
