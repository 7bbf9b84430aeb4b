package section

import (
	"fmt"
	"regexp"

	"recon-tracer/internal/trace"
	"recon-tracer/pkg/colorutil"
	"recon-tracer/pkg/geometry"
)

// AttrEdit lists the attributes EditTraceAttributes changes. Zero values
// keep the existing attribute.
type AttrEdit struct {
	Name  string
	Color *colorutil.Color
	// Tags replaces the tag set, or is added to it when AddTags is set.
	Tags    trace.TagSet
	AddTags bool
	// Fill style and condition; empty strings keep the current value.
	Fill trace.FillMode
}

// AddTrace stores t on the section. A trace with fewer than two points is
// rejected with trace.ErrTooFewPoints; a 2-point trace is forced open.
func (s *Section) AddTrace(t *trace.Trace, logEvent bool) (Change, error) {
	var ch Change
	if !t.Normalize() {
		return ch, trace.ErrTooFewPoints
	}
	if t.Tags == nil {
		t.Tags = trace.NewTagSet()
	}
	s.attach(t)
	s.added = append(s.added, t)
	ch.Added = append(ch.Added, t.ID)
	ch.Modified = append(ch.Modified, t.Name)
	if logEvent {
		ch.log(t.Name, s.N, "Create trace(s)")
	}
	return ch, nil
}

// RemoveTrace deletes the trace with the given ID. A copy is kept in the
// removed-traces tracking list.
func (s *Section) RemoveTrace(id trace.ID, logEvent bool) (Change, error) {
	var ch Change
	t, ok := s.byID[id]
	if !ok {
		return ch, fmt.Errorf("%w: id %d on section %d", ErrTraceNotFound, id, s.N)
	}
	s.detach(t)
	s.removed = append(s.removed, t.Copy())
	s.Deselect(id)
	ch.Removed = append(ch.Removed, t.Name)
	if logEvent {
		ch.log(t.Name, s.N, "Delete trace(s)")
	}
	return ch, nil
}

// resolve maps ids to traces. A nil slice means the current selection.
func (s *Section) resolve(ids []trace.ID) []*trace.Trace {
	if ids == nil {
		return s.SelectedTraceList()
	}
	out := make([]*trace.Trace, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// EditTraceAttributes applies edit to the given traces (nil: selection).
// The traces keep their IDs, so the selection survives a rename.
func (s *Section) EditTraceAttributes(ids []trace.ID, edit AttrEdit, logEvent bool) Change {
	var ch Change
	for _, t := range s.resolve(ids) {
		oldName := t.Name
		newName := oldName
		if edit.Name != "" {
			newName = edit.Name
		}
		s.removed = append(s.removed, t.Copy())
		if newName != oldName {
			s.detach(t)
			t.Name = newName
			s.attach(t)
		}
		if edit.Color != nil {
			t.Color = *edit.Color
		}
		if edit.Tags != nil {
			if edit.AddTags {
				t.Tags.Union(edit.Tags)
			} else {
				t.Tags = edit.Tags.Copy()
			}
		}
		if edit.Fill.Style != "" {
			t.Fill.Style = edit.Fill.Style
		}
		if edit.Fill.Condition != "" {
			t.Fill.Condition = edit.Fill.Condition
		}
		s.added = append(s.added, t)
		s.markModified(oldName)
		s.markModified(newName)
		ch.Modified = append(ch.Modified, oldName)
		if newName != oldName {
			ch.Modified = append(ch.Modified, newName)
		}
		if logEvent {
			if newName != oldName {
				ch.log(oldName, s.N, "Rename to "+newName)
				ch.log(newName, s.N, "Create trace(s) from "+oldName)
			} else {
				ch.log(newName, s.N, "Modify trace(s)")
			}
		}
	}
	return ch
}

// EditTraceRadius resizes the given traces (nil: selection) about their centroids.
func (s *Section) EditTraceRadius(ids []trace.ID, radius float64, logEvent bool) Change {
	var ch Change
	for _, t := range s.resolve(ids) {
		s.touch(t)
		t.Resize(radius)
		ch.Modified = append(ch.Modified, t.Name)
		if logEvent {
			ch.log(t.Name, s.N, "Modify radius")
		}
	}
	return ch
}

// EditTraceShape replaces the shape of the given traces (nil: selection),
// keeping each trace's radius and centroid. Nothing changes on error.
func (s *Section) EditTraceShape(ids []trace.ID, shape []geometry.Point2D, logEvent bool) (Change, error) {
	var ch Change
	if len(shape) < 2 {
		return ch, trace.ErrTooFewPoints
	}
	for _, t := range s.resolve(ids) {
		s.touch(t)
		if err := t.Reshape(shape); err != nil {
			return ch, err
		}
		ch.Modified = append(ch.Modified, t.Name)
		if logEvent {
			ch.log(t.Name, s.N, "Modify shape")
		}
	}
	return ch, nil
}

// touch records an in-place modification of t.
func (s *Section) touch(t *trace.Trace) {
	s.removed = append(s.removed, t.Copy())
	s.added = append(s.added, t)
	s.markModified(t.Name)
}

// HideTraces sets the hidden state of the given traces (nil: selection)
// and clears the trace selection.
func (s *Section) HideTraces(ids []trace.ID, hide bool, logEvent bool) Change {
	var ch Change
	for _, t := range s.resolve(ids) {
		t.Hidden = hide
		s.markModified(t.Name)
		ch.Modified = append(ch.Modified, t.Name)
		if logEvent {
			ch.log(t.Name, s.N, "Modify trace(s)")
		}
	}
	s.SelectedTraces = nil
	return ch
}

// UnhideAllTraces makes every hidden trace visible.
func (s *Section) UnhideAllTraces(logEvent bool) Change {
	var ch Change
	for _, t := range s.TracesAsList() {
		if !t.Hidden {
			continue
		}
		t.Hidden = false
		s.markModified(t.Name)
		ch.Modified = append(ch.Modified, t.Name)
		if logEvent {
			ch.log(t.Name, s.N, "Modify trace(s)")
		}
	}
	return ch
}

// MakeNegative sets the negative state of the selected traces.
func (s *Section) MakeNegative(negative bool, logEvent bool) Change {
	var ch Change
	for _, t := range s.SelectedTraceList() {
		s.touch(t)
		t.Negative = negative
		ch.Modified = append(ch.Modified, t.Name)
		if logEvent {
			ch.log(t.Name, s.N, "Modify trace(s)")
		}
	}
	return ch
}

// DeleteTraces removes the given traces and flags. A nil slice means the
// corresponding selection.
func (s *Section) DeleteTraces(ids []trace.ID, flagIDs []string, logEvent bool) Change {
	var ch Change
	if ids == nil {
		ids = append([]trace.ID(nil), s.SelectedTraces...)
	}
	for _, id := range ids {
		if c, err := s.RemoveTrace(id, logEvent); err == nil {
			ch.Merge(c)
		}
	}
	if flagIDs == nil {
		flagIDs = append([]string(nil), s.SelectedFlags...)
	}
	for _, id := range flagIDs {
		ch.Merge(s.RemoveFlag(id, logEvent))
	}
	return ch
}

// AddFlag appends f.
func (s *Section) AddFlag(f *Flag, logEvent bool) Change {
	s.Flags = append(s.Flags, f)
	ch := Change{FlagsChanged: true}
	if logEvent {
		ch.log("", s.N, "Create flag(s)")
	}
	return ch
}

// RemoveFlag deletes the flag with the given ID, if present.
func (s *Section) RemoveFlag(id string, logEvent bool) Change {
	var ch Change
	for i, f := range s.Flags {
		if f.ID != id {
			continue
		}
		s.Flags = append(s.Flags[:i], s.Flags[i+1:]...)
		kept := s.SelectedFlags[:0]
		for _, sel := range s.SelectedFlags {
			if sel != id {
				kept = append(kept, sel)
			}
		}
		s.SelectedFlags = kept
		ch.FlagsChanged = true
		if logEvent {
			ch.log("", s.N, "Delete flag(s)")
		}
		break
	}
	return ch
}

// TranslateTraces moves the selected traces, ztrace points and flags by
// (dx, dy) in field space under the context's alignment. Selected ztrace
// points are looked up in ztraces.
func (s *Section) TranslateTraces(ec EditContext, dx, dy float64, ztraces map[string]*trace.Ztrace, logEvent bool) (Change, error) {
	var ch Change
	tform := s.Tform(ec.Alignment)
	inv, err := tform.Inverse()
	if err != nil {
		return ch, fmt.Errorf("section %d: %w", s.N, err)
	}
	move := func(p geometry.Point2D) geometry.Point2D {
		f := tform.Map(p)
		return inv.Map(geometry.Point2D{X: f.X + dx, Y: f.Y + dy})
	}

	for _, t := range s.SelectedTraceList() {
		s.touch(t)
		for i, p := range t.Points {
			t.Points[i] = move(p)
		}
		ch.Modified = append(ch.Modified, t.Name)
		if logEvent {
			ch.log(t.Name, s.N, "Modify trace(s)")
		}
	}

	for _, ref := range s.SelectedZtraces {
		z, ok := ztraces[ref.Name]
		if !ok || ref.Index < 0 || ref.Index >= len(z.Points) {
			continue
		}
		zp := z.Points[ref.Index]
		p := move(geometry.Point2D{X: zp.X, Y: zp.Y})
		z.Points[ref.Index] = trace.ZPoint{X: p.X, Y: p.Y, Section: zp.Section}
		ch.ZtracesModified = append(ch.ZtracesModified, z.Name)
		if logEvent {
			ch.log(z.Name, s.N, "Modify ztrace")
		}
	}

	for _, f := range s.SelectedFlagList() {
		p := move(geometry.Point2D{X: f.X, Y: f.Y})
		f.X, f.Y = p.X, p.Y
		ch.FlagsChanged = true
		if logEvent {
			ch.log("", s.N, "Modify flag")
		}
	}
	return ch, nil
}

// ImportTraces merges other's contours into s. When filters is non-empty a
// contour is imported only if its name fully matches one of them.
func (s *Section) ImportTraces(other *Section, filters []string) (Change, error) {
	var ch Change
	res := make([]*regexp.Regexp, 0, len(filters))
	for _, f := range filters {
		re, err := regexp.Compile("^(?:" + f + ")$")
		if err != nil {
			return ch, fmt.Errorf("section: filter %q: %w", f, err)
		}
		res = append(res, re)
	}
	for _, name := range other.ContourNames() {
		if !matchesAny(res, name) {
			continue
		}
		src := other.Contours[name]
		if dst, ok := s.Contours[name]; ok {
			for _, t := range dst.ImportTraces(src) {
				s.register(t)
				s.added = append(s.added, t)
				ch.Added = append(ch.Added, t.ID)
			}
		} else {
			for _, t := range src.Traces() {
				cp := t.Copy()
				s.attach(cp)
				s.added = append(s.added, cp)
				ch.Added = append(ch.Added, cp.ID)
			}
		}
		s.markModified(name)
		ch.Modified = append(ch.Modified, name)
	}
	return ch, nil
}

func matchesAny(res []*regexp.Regexp, name string) bool {
	if len(res) == 0 {
		return true
	}
	for _, re := range res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
