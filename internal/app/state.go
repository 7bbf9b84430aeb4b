// Package app provides the editing session: the current and comparison
// sections, their undo histories, transform propagation and events.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/stat"

	"recon-tracer/internal/alignment"
	"recon-tracer/internal/imagesrc"
	"recon-tracer/internal/logging"
	"recon-tracer/internal/section"
	"recon-tracer/internal/series"
	"recon-tracer/internal/states"
	"recon-tracer/internal/trace"
	"recon-tracer/pkg/geometry"
)

var (
	// ErrNoBSection is returned by LinearAlign when no comparison section is loaded.
	ErrNoBSection = errors.New("app: no comparison section")
	// ErrAlignSelection is returned by LinearAlign for an unusable selection.
	ErrAlignSelection = errors.New("app: select 3 or more traces of one name on both sections")
	// ErrNoImages is returned by Home when no image source is configured.
	ErrNoImages = errors.New("app: no image source")
	// ErrNothingToCalibrate is returned by CalibrateMag when no trace was measured.
	ErrNothingToCalibrate = errors.New("app: no traces to calibrate")
)

// EventType identifies session events.
type EventType int

const (
	EventSectionChanged EventType = iota
	EventTracesChanged
	EventTformChanged
	EventModified
	EventReloaded
	EventViewChanged
)

// EventListener is called when an event occurs.
type EventListener func(data any)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(message string) bool

// State is one editing session on a series. Apart from On and Emit it is
// used from a single goroutine.
type State struct {
	mu sync.RWMutex

	Series *series.Series
	// Section is the section being edited; BSection is the previously
	// shown one, kept for comparison and alignment.
	Section  *section.Section
	BSection *section.Section

	// TraceLayerHidden disables every trace edit.
	TraceLayerHidden bool

	states      map[int]*states.SectionStates
	propagating bool
	stored      geometry.Transform
	propagated  map[int]bool
	clipboard   []*trace.Trace

	images  *imagesrc.Source
	confirm ConfirmFunc

	listeners map[EventType][]EventListener
}

// Option configures New.
type Option func(*State)

// WithConfirm sets the callback asked before propagating past locked
// sections. The default answers yes.
func WithConfirm(fn ConfirmFunc) Option { return func(s *State) { s.confirm = fn } }

// WithImages sets the image source used by Home.
func WithImages(src *imagesrc.Source) Option { return func(s *State) { s.images = src } }

// New opens a session on the series' current section, falling back to the
// first section when the current one does not exist.
func New(ctx context.Context, ser *series.Series, opts ...Option) (*State, error) {
	s := &State{
		Series:     ser,
		stored:     geometry.Identity(),
		propagated: make(map[int]bool),
		states:     make(map[int]*states.SectionStates),
		confirm:    func(string) bool { return true },
		listeners:  make(map[EventType][]EventListener),
	}
	for _, o := range opts {
		o(s)
	}
	n := ser.CurrentSection
	if !ser.HasSection(n) {
		nums := ser.SectionNumbers()
		if len(nums) == 0 {
			return nil, series.ErrNoSection
		}
		n = nums[0]
		ser.CurrentSection = n
	}
	sec, err := ser.LoadSection(ctx, n)
	if err != nil {
		return nil, err
	}
	s.Section = sec
	if err := s.ensureStates(sec); err != nil {
		return nil, err
	}
	return s, nil
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data any) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

func (s *State) ensureStates(sec *section.Section) error {
	if _, ok := s.states[sec.N]; ok {
		return nil
	}
	st, err := states.New(sec)
	if err != nil {
		return err
	}
	s.states[sec.N] = st
	return nil
}

// dispatch records an edit of the current section: its undo state, its log
// events and the change notification.
func (s *State) dispatch(ch section.Change) error {
	if err := s.states[s.Section.N].AddState(s.Section); err != nil {
		return err
	}
	s.Series.LogEvents(ch.Events)
	s.Series.Modified = true
	s.Emit(EventTracesChanged, ch)
	s.Emit(EventModified, true)
	return nil
}

// CanUndo reports whether the current section has an undo state.
func (s *State) CanUndo() bool { return s.states[s.Section.N].CanUndo() }

// CanRedo reports whether the current section has a redo state.
func (s *State) CanRedo() bool { return s.states[s.Section.N].CanRedo() }

// Undo restores the previous state of the current section.
func (s *State) Undo() (bool, error) {
	return s.step(s.states[s.Section.N].UndoState)
}

// Redo reapplies the last undone state of the current section.
func (s *State) Redo() (bool, error) {
	return s.step(s.states[s.Section.N].RedoState)
}

func (s *State) step(fn func(*section.Section) (bool, error)) (bool, error) {
	if s.TraceLayerHidden {
		return false, nil
	}
	s.Section.SelectedTraces = nil
	s.Section.SelectedZtraces = nil
	ok, err := fn(s.Section)
	if err != nil || !ok {
		return false, err
	}
	s.Series.Modified = true
	s.Emit(EventTracesChanged, section.Change{Modified: s.Section.ModifiedNames()})
	return true, nil
}

// ChangeSection shows section n. The current section is saved and becomes
// the comparison section. While propagating, n receives the stored
// transform unless it is locked or already propagated.
func (s *State) ChangeSection(ctx context.Context, n int) error {
	if !s.Series.HasSection(n) {
		return &series.SectionError{N: n, Err: series.ErrNoSection}
	}
	if n == s.Section.N {
		return nil
	}
	if err := s.Series.SaveSection(ctx, s.Section); err != nil {
		return err
	}
	s.Section, s.BSection = s.BSection, s.Section
	if s.Section == nil || s.Section.N != n {
		sec, err := s.Series.LoadSection(ctx, n)
		if err != nil {
			s.Section, s.BSection = s.BSection, s.Section
			return err
		}
		s.Section = sec
		s.Section.SelectedTraces = nil
	}
	s.Series.CurrentSection = n
	s.Series.Modified = true
	if err := s.ensureStates(s.Section); err != nil {
		return err
	}

	if s.propagating && !s.Section.AlignLocked && !s.propagated[n] {
		alignment := s.Series.Alignment
		s.Section.SetTform(alignment, s.Section.Tform(alignment).Compose(s.stored))
		s.propagated[n] = true
		if err := s.dispatch(tformChange(n)); err != nil {
			return err
		}
	}
	s.Emit(EventSectionChanged, n)
	return nil
}

// SwapSections exchanges the current and comparison sections.
func (s *State) SwapSections() {
	if s.BSection == nil {
		return
	}
	s.Section, s.BSection = s.BSection, s.Section
	s.Series.CurrentSection = s.Section.N
	s.Emit(EventSectionChanged, s.Section.N)
}

// Reload rereads the shown sections from the store and drops their undo
// histories. Batch operations call it after rewriting sections.
func (s *State) Reload(ctx context.Context) error {
	sec, err := s.Series.LoadSection(ctx, s.Section.N)
	if err != nil {
		return err
	}
	s.Section = sec
	if s.BSection != nil {
		if s.BSection, err = s.Series.LoadSection(ctx, s.BSection.N); err != nil {
			return err
		}
	}
	s.states = make(map[int]*states.SectionStates)
	if err := s.ensureStates(s.Section); err != nil {
		return err
	}
	if s.BSection != nil {
		if err := s.ensureStates(s.BSection); err != nil {
			return err
		}
	}
	s.Emit(EventReloaded, nil)
	s.Emit(EventModified, true)
	return nil
}

// Save writes the shown sections and the series document.
func (s *State) Save(ctx context.Context) error {
	if err := s.Series.SaveSection(ctx, s.Section); err != nil {
		return err
	}
	if s.BSection != nil {
		if err := s.Series.SaveSection(ctx, s.BSection); err != nil {
			return err
		}
	}
	return s.Series.Save(ctx)
}

// Home sets the series window to the current section's image.
func (s *State) Home() error {
	if s.images == nil {
		return ErrNoImages
	}
	size, err := s.images.Dimensions(s.Section.Src)
	if err != nil {
		return err
	}
	b := s.Section.ImageFieldBounds(size.Width, size.Height, s.Series.Alignment)
	s.Series.Window = [4]float64{b.XMin, b.YMin, b.Width(), b.Height()}
	s.Series.Modified = true
	s.Emit(EventViewChanged, s.Series.Window)
	return nil
}

// ToggleTraceLayer hides or shows the trace layer. Hiding drops hidden
// traces from the selection.
func (s *State) ToggleTraceLayer() {
	s.TraceLayerHidden = !s.TraceLayerHidden
	if s.TraceLayerHidden {
		kept := s.Section.SelectedTraces[:0]
		for _, id := range s.Section.SelectedTraces {
			if t, ok := s.Section.Trace(id); ok && !t.Hidden {
				kept = append(kept, id)
			}
		}
		s.Section.SelectedTraces = kept
	}
	s.Emit(EventViewChanged, nil)
}

func tformChange(n int) section.Change {
	return section.Change{Events: []section.LogEvent{{Section: n, HasSection: true, Message: "Modify transform"}}}
}

// ChangeTform replaces the current section's transform. Locked sections
// are left alone and report false. While propagating the change is added
// to the stored transform.
func (s *State) ChangeTform(t geometry.Transform) (bool, error) {
	if s.Section.AlignLocked {
		return false, nil
	}
	alignment := s.Series.Alignment
	if s.propagating {
		inv, err := s.Section.Tform(alignment).Inverse()
		if err != nil {
			return false, err
		}
		// delta in local space: current ∘ delta = t
		s.stored = s.stored.Compose(inv.Compose(t))
	}
	s.Section.SetTform(alignment, t)
	if err := s.dispatch(tformChange(s.Section.N)); err != nil {
		return false, err
	}
	s.Emit(EventTformChanged, t)
	return true, nil
}

// TranslateTform shifts the current section's transform in field space.
func (s *State) TranslateTform(dx, dy float64) (bool, error) {
	t := s.Section.Tform(s.Series.Alignment)
	t.C += dx
	t.F += dy
	return s.ChangeTform(t)
}

// Translate moves the selected traces, ztrace points and flags, or the
// whole section transform when nothing is selected.
func (s *State) Translate(dx, dy float64) error {
	sec := s.Section
	if len(sec.SelectedTraces) == 0 && len(sec.SelectedZtraces) == 0 && len(sec.SelectedFlags) == 0 {
		_, err := s.TranslateTform(dx, dy)
		return err
	}
	if s.TraceLayerHidden {
		return nil
	}
	ch, err := sec.TranslateTraces(s.Series.EditContext(), dx, dy, s.Series.Ztraces, true)
	if err != nil {
		return err
	}
	return s.dispatch(ch)
}

// LinearAlign sets the current transform so that the centroids of the
// selected traces land on the matching selected traces of the comparison
// section. Traces pair up in contour order.
func (s *State) LinearAlign() (bool, error) {
	if s.BSection == nil {
		return false, ErrNoBSection
	}
	a, b := s.Section.SelectedTraceList(), s.BSection.SelectedTraceList()
	if len(a) < 3 || len(a) != len(b) {
		return false, ErrAlignSelection
	}
	name := a[0].Name
	for _, t := range append(append([]*trace.Trace(nil), a...), b...) {
		if t.Name != name {
			return false, ErrAlignSelection
		}
	}

	centsA := contourCentroids(s.Section, name, geometry.Identity())
	centsB := contourCentroids(s.BSection, name, s.BSection.Tform(s.Series.Alignment))
	if err := alignment.CheckNonCollinear(centsA); err != nil {
		return false, err
	}
	t, err := alignment.EstimateLinearTform(centsA, centsB)
	if err != nil {
		return false, err
	}
	return s.ChangeTform(t)
}

// contourCentroids returns the centroids of the selected traces of contour
// name in contour order, mapped through tform.
func contourCentroids(sec *section.Section, name string, tform geometry.Transform) []geometry.Point2D {
	c, _ := sec.Contour(name)
	var out []geometry.Point2D
	for _, t := range c.Traces() {
		if sec.IsSelected(t.ID) {
			out = append(out, geometry.Centroid(t.FieldPoints(tform)))
		}
	}
	return out
}

// CalibrateMag rescales the series so that the named traces on the current
// section measure the given lengths. The scale factor is the mean of
// expected/measured over every trace of every named contour.
func (s *State) CalibrateMag(ctx context.Context, lengths map[string]float64) error {
	tform := s.Section.Tform(s.Series.Alignment)
	var factors []float64
	for name, want := range lengths {
		c, ok := s.Section.Contour(name)
		if !ok {
			return fmt.Errorf("%w: %s", series.ErrObjectNotFound, name)
		}
		for _, t := range c.Traces() {
			// measured along the drawn points; a closed trace's closing
			// edge is not part of the ruler
			d := geometry.LineLength(t.FieldPoints(tform), false)
			if d == 0 {
				continue
			}
			factors = append(factors, want/d)
		}
	}
	if len(factors) == 0 {
		return ErrNothingToCalibrate
	}
	newMag := s.Section.Mag * stat.Mean(factors, nil)

	if err := s.Series.SaveSection(ctx, s.Section); err != nil {
		return err
	}
	if err := s.Series.SetMag(ctx, newMag); err != nil {
		return err
	}
	s.Series.AddLog("", nil, "Calibrate series")
	logging.Logger().Info("series calibrated", "mag", newMag, "traces", len(factors))
	return s.Reload(ctx)
}
