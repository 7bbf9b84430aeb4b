package app

import (
	"recon-tracer/internal/section"
	"recon-tracer/internal/trace"
)

// Trace edits on the current section. Every entry point does nothing while
// the trace layer is hidden.

// AddTrace stores a new trace given in local coordinates.
func (s *State) AddTrace(t *trace.Trace) error {
	if s.TraceLayerHidden {
		return nil
	}
	ch, err := s.Section.AddTrace(t, true)
	if err != nil {
		return err
	}
	return s.dispatch(ch)
}

// AddFlag places a flag on the current section.
func (s *State) AddFlag(f *section.Flag) error {
	if s.TraceLayerHidden {
		return nil
	}
	return s.dispatch(s.Section.AddFlag(f, true))
}

// Select toggles the trace, ztrace point or flag nearest to the field point
// (x, y) within radius. It returns what was hit.
func (s *State) Select(x, y, radius float64) section.Hit {
	if s.TraceLayerHidden {
		return section.Hit{}
	}
	hit := s.Section.FindClosest(s.Series.EditContext(), x, y, section.FindOptions{
		Radius:      radius,
		ShowZtraces: true,
		Ztraces:     s.Series.Ztraces,
		ShowFlags:   s.Series.ShowFlags(),
	})
	switch hit.Kind {
	case section.HitTrace:
		if s.Section.IsSelected(hit.Trace.ID) {
			s.Section.Deselect(hit.Trace.ID)
		} else {
			s.Section.Select(hit.Trace.ID)
		}
	case section.HitZtracePoint:
		s.Section.SelectedZtraces = append(s.Section.SelectedZtraces, hit.Ztrace)
	case section.HitFlag:
		s.Section.SelectedFlags = append(s.Section.SelectedFlags, hit.Flag.ID)
	}
	return hit
}

// SelectAll selects every visible trace.
func (s *State) SelectAll() {
	if s.TraceLayerHidden {
		return
	}
	s.Section.SelectAll()
}

// DeselectAll clears the selection.
func (s *State) DeselectAll() {
	if s.TraceLayerHidden {
		return
	}
	s.Section.DeselectAll()
}

// DeleteSelected removes the selected traces and flags.
func (s *State) DeleteSelected() error {
	if s.TraceLayerHidden {
		return nil
	}
	ch := s.Section.DeleteTraces(nil, nil, true)
	if ch.Empty() {
		return nil
	}
	return s.dispatch(ch)
}

// EditSelected applies edit to the selected traces.
func (s *State) EditSelected(edit section.AttrEdit) error {
	if s.TraceLayerHidden {
		return nil
	}
	ch := s.Section.EditTraceAttributes(nil, edit, true)
	if ch.Empty() {
		return nil
	}
	return s.dispatch(ch)
}

// HideSelected hides or shows the selected traces.
func (s *State) HideSelected(hide bool) error {
	if s.TraceLayerHidden {
		return nil
	}
	ch := s.Section.HideTraces(nil, hide, true)
	if ch.Empty() {
		return nil
	}
	return s.dispatch(ch)
}

// UnhideAll shows the trace layer and every hidden trace.
func (s *State) UnhideAll() error {
	s.TraceLayerHidden = false
	ch := s.Section.UnhideAllTraces(true)
	if ch.Empty() {
		return nil
	}
	return s.dispatch(ch)
}

// MakeNegative sets the negative state of the selected traces.
func (s *State) MakeNegative(negative bool) error {
	ch := s.Section.MakeNegative(negative, true)
	if ch.Empty() {
		return nil
	}
	return s.dispatch(ch)
}

// Copy puts the selected traces on the clipboard in field coordinates.
func (s *State) Copy() {
	if s.TraceLayerHidden {
		return
	}
	if copied := s.copied(); len(copied) > 0 {
		s.clipboard = copied
	}
}

func (s *State) copied() []*trace.Trace {
	tform := s.Section.Tform(s.Series.Alignment)
	var out []*trace.Trace
	for _, t := range s.Section.SelectedTraceList() {
		c := t.Copy()
		c.Points = t.FieldPoints(tform)
		out = append(out, c)
	}
	return out
}

// Cut copies the selected traces and deletes them.
func (s *State) Cut() error {
	if s.TraceLayerHidden {
		return nil
	}
	copied := s.copied()
	if len(copied) == 0 {
		return nil
	}
	s.clipboard = copied
	return s.dispatch(s.Section.DeleteTraces(nil, []string{}, true))
}

// Paste adds the clipboard traces at their field position and selects them.
func (s *State) Paste() error {
	if s.TraceLayerHidden || len(s.clipboard) == 0 {
		return nil
	}
	tform := s.Section.Tform(s.Series.Alignment)
	var ch section.Change
	for _, t := range s.clipboard {
		c := t.Copy()
		pts, err := tform.MapPoints(c.Points, true)
		if err != nil {
			return err
		}
		c.Points = pts
		added, err := s.Section.AddTrace(c, true)
		if err != nil {
			return err
		}
		ch.Merge(added)
	}
	s.Section.DeselectAll()
	s.Section.Select(ch.Added...)
	return s.dispatch(ch)
}

// PasteAttributes gives the selected traces the name, color, tags and fill
// of the first clipboard trace.
func (s *State) PasteAttributes() error {
	if s.TraceLayerHidden || len(s.clipboard) == 0 {
		return nil
	}
	src := s.clipboard[0]
	color := src.Color
	ch := s.Section.EditTraceAttributes(nil, section.AttrEdit{
		Name:  src.Name,
		Color: &color,
		Tags:  src.Tags.Copy(),
		Fill:  src.Fill,
	}, true)
	if ch.Empty() {
		return nil
	}
	return s.dispatch(ch)
}

// Clipboard returns the copied traces.
func (s *State) Clipboard() []*trace.Trace { return s.clipboard }
