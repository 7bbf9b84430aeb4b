package series

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"recon-tracer/internal/alignment"
	"recon-tracer/internal/logging"
	"recon-tracer/internal/section"
	"recon-tracer/internal/trace"
	"recon-tracer/pkg/geometry"
)

func compileFilters(filters []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(filters))
	for _, f := range filters {
		re, err := regexp.Compile("^(?:" + f + ")$")
		if err != nil {
			return nil, fmt.Errorf("series: filter %q: %w", f, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func passes(res []*regexp.Regexp, name string) bool {
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

func includeSet(sections []int) map[int]bool {
	if sections == nil {
		return nil
	}
	m := make(map[int]bool, len(sections))
	for _, n := range sections {
		m[n] = true
	}
	return m
}

// ImportTraces merges the traces of other into the matching sections.
// Traces that overlap an existing trace only contribute their tags. The
// import covers the given sections (nil: all) that exist in both series
// and, with filters, only objects whose names fully match one of them.
func (s *Series) ImportTraces(ctx context.Context, other *Series, sections []int, filters []string) error {
	if _, err := compileFilters(filters); err != nil {
		return err
	}
	include := includeSet(sections)
	_, err := Map(ctx, s, "import_traces", func(sec *section.Section) (struct{}, bool, error) {
		if (include != nil && !include[sec.N]) || !other.HasSection(sec.N) {
			return struct{}{}, false, nil
		}
		src, err := other.LoadSection(ctx, sec.N)
		if err != nil {
			return struct{}{}, false, err
		}
		ch, err := sec.ImportTraces(src, filters)
		if err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, !ch.Empty(), nil
	})
	if err != nil {
		return err
	}
	s.AddLog("", nil, "Begin importing traces from another series")
	s.ObjectGroups.Merge(other.ObjectGroups)
	if err := s.ImportHistory(ctx, other, true, false); err != nil {
		return err
	}
	s.AddLog("", nil, "Finish importing traces from another series")
	return s.Save(ctx)
}

// ImportZtraces copies the ztraces of other that the series lacks. Existing
// ztraces are never replaced. Nothing is imported when a ztrace has a point
// on a section the series does not have.
func (s *Series) ImportZtraces(ctx context.Context, other *Series, filters []string) error {
	res, err := compileFilters(filters)
	if err != nil {
		return err
	}
	var names []string
	for name, z := range other.Ztraces {
		if _, ok := s.Ztraces[name]; ok || !passes(res, name) {
			continue
		}
		for _, p := range z.Points {
			if !s.HasSection(p.Section) {
				return fmt.Errorf("ztrace %q: %w", name, &SectionError{N: p.Section, Err: ErrNoSection})
			}
		}
		names = append(names, name)
	}
	slices.Sort(names)

	s.AddLog("", nil, "Begin importing ztraces from another series")
	for _, name := range names {
		s.Ztraces[name] = other.Ztraces[name].Copy()
		for _, g := range other.ZtraceGroups.ObjectGroups(name) {
			s.ZtraceGroups.Add(g, name)
		}
	}
	if err := s.ImportHistory(ctx, other, false, true); err != nil {
		return err
	}
	s.AddLog("", nil, "Finish importing ztraces from another series")
	return s.Save(ctx)
}

// ImportTransforms copies the named alignments from other. Both series
// must have the same section numbers and every section of other must hold
// every alignment. Alignments the series already has are replaced only
// with overwrite set.
func (s *Series) ImportTransforms(ctx context.Context, other *Series, alignments []string, overwrite bool) error {
	if !slices.Equal(s.SectionNumbers(), other.SectionNumbers()) {
		return ErrSectionMismatch
	}
	_, err := Map(ctx, s, "import_transforms", func(sec *section.Section) (struct{}, bool, error) {
		src, err := other.LoadSection(ctx, sec.N)
		if err != nil {
			return struct{}{}, false, err
		}
		for _, a := range alignments {
			t, ok := src.Tforms[a]
			if !ok {
				return struct{}{}, false, fmt.Errorf("other series has no alignment %q", a)
			}
			if _, exists := sec.Tforms[a]; exists && !overwrite {
				return struct{}{}, false, fmt.Errorf("%w: %q", ErrAlignmentExists, a)
			}
			sec.Tforms[a] = t
		}
		return struct{}{}, true, nil
	})
	if err != nil {
		return err
	}
	s.AddLog("", nil, fmt.Sprintf("Import alignments %s from another series", strings.Join(alignments, ", ")))
	return s.Save(ctx)
}

// ImportBC copies brightness and contrast from other for the given
// sections (nil: all) present in both series.
func (s *Series) ImportBC(ctx context.Context, other *Series, sections []int) error {
	include := includeSet(sections)
	_, err := Map(ctx, s, "import_bc", func(sec *section.Section) (struct{}, bool, error) {
		if (include != nil && !include[sec.N]) || !other.HasSection(sec.N) {
			return struct{}{}, false, nil
		}
		src, err := other.LoadSection(ctx, sec.N)
		if err != nil {
			return struct{}{}, false, err
		}
		sec.Brightness, sec.Contrast = src.Brightness, src.Contrast
		return struct{}{}, true, nil
	})
	if err != nil {
		return err
	}
	s.AddLog("", nil, "Import brightness/contrast from another series")
	return s.Save(ctx)
}

// ImportPalettes copies every palette group of other. A name that is
// already taken gets a "-n" suffix.
func (s *Series) ImportPalettes(ctx context.Context, other *Series) error {
	for _, name := range other.PaletteNames() {
		target := name
		for n := 1; ; n++ {
			if _, taken := s.PaletteTraces[target]; !taken {
				break
			}
			target = fmt.Sprintf("%s-%d", name, n)
		}
		src := other.PaletteTraces[name]
		cp := make([]*trace.Trace, len(src))
		for i, t := range src {
			cp[i] = t.Copy()
		}
		s.PaletteTraces[target] = cp
	}
	s.AddLog("", nil, "Import palettes from another series")
	return s.Save(ctx)
}

// ImportHistory appends the object entries of other's history that the
// series does not have. The common prefix of both histories is skipped.
// traces selects trace events and ztraces selects ztrace events.
func (s *Series) ImportHistory(ctx context.Context, other *Series, traces, ztraces bool) error {
	mine, err := s.FullHistory(ctx)
	if err != nil {
		return err
	}
	theirs, err := other.FullHistory(ctx)
	if err != nil {
		return err
	}
	a, b := mine.logs, theirs.logs
	for len(a) > 0 && len(b) > 0 && a[0].Equal(b[0]) {
		a, b = a[1:], b[1:]
	}
	for _, l := range b {
		if l.Obj == "" {
			continue
		}
		isZ := strings.Contains(l.Event, "ztrace")
		if (isZ && !ztraces) || (!isZ && !traces) {
			continue
		}
		if slices.ContainsFunc(a, l.Equal) {
			continue
		}
		s.LogSet.AddExisting(l)
	}
	s.Modified = true
	return nil
}

// freeAlignmentName returns name, or name with a "-n" suffix when a section
// already holds an alignment called name.
func (s *Series) freeAlignmentName(ctx context.Context, name string) (string, error) {
	held, err := Map(ctx, s, "alignment_names", func(sec *section.Section) ([]string, bool, error) {
		names := make([]string, 0, len(sec.Tforms))
		for a := range sec.Tforms {
			names = append(names, a)
		}
		return names, false, nil
	})
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool)
	for _, names := range held {
		for _, a := range names {
			taken[a] = true
		}
	}
	target := name
	for n := 1; taken[target]; n++ {
		target = fmt.Sprintf("%s-%d", name, n)
	}
	if target != name {
		logging.Logger().Warn("alignment name taken, importing under a new name", "name", name, "alignment", target)
	}
	return target, nil
}

// setImportedAlignment stores tforms, whose translations are in pixels,
// under a free name derived from name after scaling them by each section's
// mag. It returns the name used.
func (s *Series) setImportedAlignment(ctx context.Context, op, name string, tforms map[int]geometry.Transform) (string, error) {
	name, err := s.freeAlignmentName(ctx, name)
	if err != nil {
		return "", err
	}
	_, err = Map(ctx, s, op, func(sec *section.Section) (struct{}, bool, error) {
		t, ok := tforms[sec.N]
		if !ok {
			return struct{}{}, false, nil
		}
		t.C *= sec.Mag
		t.F *= sec.Mag
		sec.Tforms[name] = t
		return struct{}{}, true, nil
	})
	if err != nil {
		return "", err
	}
	s.Alignment = name
	s.Modified = true
	return name, nil
}

// ImportTransformFile reads "n a b c d e f" lines into a new alignment
// named after path and makes it current. The whole file is validated
// before any section changes.
func (s *Series) ImportTransformFile(ctx context.Context, r io.Reader, path string) (string, error) {
	tforms, err := alignment.ParseTransformFile(r, s.HasSection)
	if err != nil {
		return "", err
	}
	name, err := s.setImportedAlignment(ctx, "import_transform_file", alignment.ImportedAlignmentName(path, s.LogSet.now()), tforms)
	if err != nil {
		return "", err
	}
	s.AddLog("", nil, "Import transforms to alignment "+name)
	return name, s.Save(ctx)
}

// ImportSwiftTransforms reads a SWiFT project into a new alignment named
// after path and makes it current. The project must hold one transform per
// section, numbered from zero.
func (s *Series) ImportSwiftTransforms(ctx context.Context, r io.Reader, path string, scale int, calGrid bool) (string, error) {
	list, err := alignment.ParseSwiftProject(r, scale, calGrid)
	if err != nil {
		return "", err
	}
	if len(list) != len(s.Sections) {
		return "", &alignment.SectionNumberError{
			Msg: fmt.Sprintf("project has %d transforms for %d sections", len(list), len(s.Sections)),
		}
	}
	tforms := make(map[int]geometry.Transform, len(list))
	for i, t := range list {
		if !s.HasSection(i) {
			return "", &alignment.SectionNumberError{Section: i}
		}
		tforms[i] = t
	}
	name, err := s.setImportedAlignment(ctx, "import_swift", alignment.ImportedAlignmentName(path, s.LogSet.now()), tforms)
	if err != nil {
		return "", err
	}
	s.AddLog("", nil, "Import SWIFT transforms to alignment "+name)
	return name, s.Save(ctx)
}
