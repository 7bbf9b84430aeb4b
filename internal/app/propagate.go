package app

import (
	"context"

	"recon-tracer/internal/logging"
	"recon-tracer/internal/section"
	"recon-tracer/internal/series"
	"recon-tracer/pkg/geometry"
)

// SetPropagationMode starts or stops recording transform changes. Starting
// resets the stored transform and marks only the current section as
// propagated.
func (s *State) SetPropagationMode(on bool) {
	s.propagating = on
	if on {
		s.stored = geometry.Identity()
		s.propagated = map[int]bool{s.Section.N: true}
	}
}

// Propagating reports whether transform changes are being recorded.
func (s *State) Propagating() bool { return s.propagating }

// StoredTform returns the transform change recorded since propagation
// started.
func (s *State) StoredTform() geometry.Transform { return s.stored }

// PropagateTo applies the stored transform to every section after (toEnd)
// or before the current one that has not been propagated yet. When locked
// sections are in range the confirm callback decides whether to go on;
// locked sections themselves are never modified. It reports whether the
// propagation ran.
func (s *State) PropagateTo(ctx context.Context, toEnd bool, logEvent bool) (bool, error) {
	if err := s.Series.SaveSection(ctx, s.Section); err != nil {
		return false, err
	}
	cur := s.Section.N
	included := make(map[int]bool)
	for _, n := range s.Series.SectionNumbers() {
		if s.propagated[n] {
			continue
		}
		if (toEnd && n > cur) || (!toEnd && n < cur) {
			included[n] = true
		}
	}
	if len(included) == 0 {
		return true, nil
	}

	locked, err := series.Enumerate(ctx, s.Series, "propagate_check", func(sec *section.Section) (bool, bool, error) {
		return included[sec.N] && sec.AlignLocked, false, nil
	})
	if err != nil {
		return false, err
	}
	for _, l := range locked {
		if l {
			if !s.confirm("Locked sections will not be modified.\nWould you still like to propagate the transform?") {
				return false, nil
			}
			break
		}
	}

	alignment := s.Series.Alignment
	stored := s.stored
	done, err := series.Enumerate(ctx, s.Series, "propagate", func(sec *section.Section) (bool, bool, error) {
		if !included[sec.N] {
			return false, false, nil
		}
		if sec.AlignLocked {
			logging.Logger().Warn("locked section not propagated", "section", sec.N)
			return false, false, nil
		}
		sec.SetTform(alignment, sec.Tform(alignment).Compose(stored))
		return true, true, nil
	})
	if err != nil {
		return false, err
	}

	for _, n := range s.Series.SectionNumbers() {
		if !done[n] {
			continue
		}
		s.propagated[n] = true
		if logEvent {
			s.Series.AddLog("", []int{n}, "Modify transform")
		}
	}
	return true, s.Reload(ctx)
}
