package series

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"recon-tracer/internal/logging"
	"recon-tracer/internal/raster"
	"recon-tracer/internal/section"
	"recon-tracer/internal/trace"
	"recon-tracer/pkg/colorutil"
	"recon-tracer/pkg/geometry"
)

// objectTraces returns the IDs of every trace of names on sec.
func objectTraces(sec *section.Section, names []string) []trace.ID {
	var ids []trace.ID
	for _, name := range names {
		c, ok := sec.Contour(name)
		if !ok {
			continue
		}
		for _, t := range c.Traces() {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// logResults records the events of per-section changes in section order.
func (s *Series) logResults(results map[int]section.Change) {
	nums := make([]int, 0, len(results))
	for n := range results {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	var events []section.LogEvent
	for _, n := range nums {
		events = append(events, results[n].Events...)
	}
	s.LogEvents(events)
}

// DeleteObjects removes every trace of names from every section.
func (s *Series) DeleteObjects(ctx context.Context, names []string) error {
	present, err := Map(ctx, s, "delete_objects", func(sec *section.Section) ([]string, bool, error) {
		var found []string
		for _, name := range names {
			if _, ok := sec.Contour(name); ok {
				found = append(found, name)
			}
		}
		for _, id := range objectTraces(sec, names) {
			if _, err := sec.RemoveTrace(id, false); err != nil {
				return nil, false, err
			}
		}
		return found, len(found) > 0, nil
	})
	if err != nil {
		return err
	}
	secs := make(map[string][]int)
	for n, found := range present {
		for _, name := range found {
			secs[name] = append(secs[name], n)
		}
	}
	for _, name := range names {
		s.ObjectGroups.RemoveObject(name)
		if len(secs[name]) > 0 {
			s.AddLog(name, secs[name], "Delete object")
		}
	}
	s.Modified = true
	return nil
}

// EditObjectAttributes applies edit to every trace of names on the given
// sections (nil: all). Tags are added to the existing ones. A rename moves
// the object attributes unless the new name already existed.
func (s *Series) EditObjectAttributes(ctx context.Context, names []string, edit section.AttrEdit, sections []int) error {
	var include map[int]bool
	if sections != nil {
		include = make(map[int]bool, len(sections))
		for _, n := range sections {
			include[n] = true
		}
	}
	edit.AddTags = true
	existed, err := Map(ctx, s, "edit_objects", func(sec *section.Section) (bool, bool, error) {
		if include != nil && !include[sec.N] {
			return false, false, nil
		}
		_, had := sec.Contour(edit.Name)
		ids := objectTraces(sec, names)
		if len(ids) == 0 {
			return had, false, nil
		}
		sec.EditTraceAttributes(ids, edit, false)
		return had, true, nil
	})
	if err != nil {
		return err
	}
	newExisted := false
	if edit.Name != "" {
		for _, had := range existed {
			newExisted = newExisted || had
		}
	}
	for _, name := range names {
		if edit.Name != "" && edit.Name != name {
			s.AddLog(name, nil, "Rename object to "+edit.Name)
			s.AddLog(edit.Name, nil, "Create trace(s) from "+name)
			s.RenameObjAttrs(name, edit.Name, newExisted)
		} else {
			s.AddLog(name, nil, "Modify object")
		}
	}
	return nil
}

// EditObjectRadius resizes every trace of names to radius.
func (s *Series) EditObjectRadius(ctx context.Context, names []string, radius float64) error {
	results, err := Map(ctx, s, "edit_radius", func(sec *section.Section) (section.Change, bool, error) {
		ids := objectTraces(sec, names)
		if len(ids) == 0 {
			return section.Change{}, false, nil
		}
		return sec.EditTraceRadius(ids, radius, true), true, nil
	})
	if err != nil {
		return err
	}
	s.logResults(results)
	return nil
}

// EditObjectShape replaces the shape of every trace of names.
func (s *Series) EditObjectShape(ctx context.Context, names []string, shape []geometry.Point2D) error {
	if len(shape) < 2 {
		return trace.ErrTooFewPoints
	}
	results, err := Map(ctx, s, "edit_shape", func(sec *section.Section) (section.Change, bool, error) {
		ids := objectTraces(sec, names)
		if len(ids) == 0 {
			return section.Change{}, false, nil
		}
		ch, err := sec.EditTraceShape(ids, shape, true)
		return ch, err == nil, err
	})
	if err != nil {
		return err
	}
	s.logResults(results)
	return nil
}

// RemoveAllTraceTags clears the tags of every trace of names.
func (s *Series) RemoveAllTraceTags(ctx context.Context, names []string) error {
	_, err := Map(ctx, s, "remove_tags", func(sec *section.Section) (struct{}, bool, error) {
		ids := objectTraces(sec, names)
		if len(ids) == 0 {
			return struct{}{}, false, nil
		}
		sec.EditTraceAttributes(ids, section.AttrEdit{Tags: trace.NewTagSet()}, false)
		return struct{}{}, true, nil
	})
	if err != nil {
		return err
	}
	for _, name := range names {
		s.AddLog(name, nil, "Remove all trace tags")
	}
	return nil
}

// HideObjects hides or unhides every trace of names.
func (s *Series) HideObjects(ctx context.Context, names []string, hide bool) error {
	_, err := Map(ctx, s, "hide_objects", func(sec *section.Section) (struct{}, bool, error) {
		ids := objectTraces(sec, names)
		if len(ids) == 0 {
			return struct{}{}, false, nil
		}
		sec.HideTraces(ids, hide, false)
		return struct{}{}, true, nil
	})
	if err != nil {
		return err
	}
	event := "Unhide object"
	if hide {
		event = "Hide object"
	}
	for _, name := range names {
		s.AddLog(name, nil, event)
	}
	return nil
}

// HideAllTraces hides or unhides every trace of the series.
func (s *Series) HideAllTraces(ctx context.Context, hide bool) error {
	_, err := Map(ctx, s, "hide_all", func(sec *section.Section) (struct{}, bool, error) {
		var ids []trace.ID
		for _, t := range sec.TracesAsList() {
			if t.Hidden != hide {
				ids = append(ids, t.ID)
			}
		}
		if len(ids) == 0 {
			return struct{}{}, false, nil
		}
		sec.HideTraces(ids, hide, false)
		return struct{}{}, true, nil
	})
	if err != nil {
		return err
	}
	if hide {
		s.AddLog("", nil, "Hide all traces in series")
	} else {
		s.AddLog("", nil, "Unhide all traces in series")
	}
	return nil
}

// MergeOptions configures MergeObjects.
type MergeOptions struct {
	// Resolution is the field size of one pixel. Zero uses each section's mag.
	Resolution float64
	// MaxPixels caps the raster size per section; zero uses the raster default.
	MaxPixels int
}

type mergeResult struct {
	change section.Change
	// drift is the largest distance a point moved when snapped to pixels.
	drift float64
}

// MergeObjects replaces the traces of names on every section with the
// outlines of their union, named newName. The union is computed on the
// pixel grid, so points snap to multiples of the pixel size. Color and fill
// mode come from the first source trace.
func (s *Series) MergeObjects(ctx context.Context, names []string, newName string, opts MergeOptions) error {
	if newName == "" {
		return fmt.Errorf("series: merge: empty object name")
	}
	results, err := Map(ctx, s, "merge_objects", func(sec *section.Section) (mergeResult, bool, error) {
		var res mergeResult
		ids := objectTraces(sec, names)
		if len(ids) == 0 {
			return res, false, nil
		}
		mag := opts.Resolution
		if mag <= 0 {
			mag = sec.Mag
		}
		first, _ := sec.Trace(ids[0])
		color, fill := first.Color, first.Fill

		pix := make([][]geometry.Point2D, 0, len(ids))
		for _, id := range ids {
			t, _ := sec.Trace(id)
			pts := make([]geometry.Point2D, len(t.Points))
			for i, p := range t.Points {
				q := geometry.Point2D{X: math.Round(p.X / mag), Y: math.Round(p.Y / mag)}
				res.drift = math.Max(res.drift, p.Distance(q.Scale(mag)))
				pts[i] = q
			}
			pix = append(pix, pts)
		}
		loops, err := raster.Merge(pix, raster.Options{MaxPixels: opts.MaxPixels})
		if err != nil {
			return res, false, err
		}
		if len(loops) == 0 {
			return res, false, nil
		}
		for _, id := range ids {
			ch, err := sec.RemoveTrace(id, false)
			if err != nil {
				return res, false, err
			}
			res.change.Merge(ch)
		}
		for _, loop := range loops {
			for i := range loop {
				loop[i] = loop[i].Scale(mag)
			}
			t := trace.New(newName, loop, color, true)
			t.Fill = fill
			ch, err := sec.AddTrace(t, false)
			if err != nil {
				return res, false, err
			}
			res.change.Merge(ch)
		}
		res.change.Events = append(res.change.Events, section.LogEvent{
			Object: newName, Section: sec.N, HasSection: true, Message: "Created by merging objects",
		})
		return res, true, nil
	})
	if err != nil {
		return err
	}
	var drift float64
	changes := make(map[int]section.Change, len(results))
	for n, r := range results {
		drift = math.Max(drift, r.drift)
		changes[n] = r.change
	}
	if drift > 0 {
		logging.Logger().Warn("merge snapped points to the pixel grid",
			"object", newName, "max_shift", drift)
	}
	s.logResults(changes)
	return nil
}

// DeleteDuplicateTraces collapses overlapping traces within each contour.
// The earliest trace is kept and receives the tags of its duplicates. The
// result lists the affected contour names per section.
func (s *Series) DeleteDuplicateTraces(ctx context.Context) (map[int][]string, error) {
	results, err := Map(ctx, s, "delete_duplicates", func(sec *section.Section) ([]string, bool, error) {
		var names []string
		for _, name := range sec.ContourNames() {
			c, _ := sec.Contour(name)
			traces := c.Traces()
			found := false
			for i := 1; i < len(traces); i++ {
				for j := i - 1; j >= 0; j-- {
					if !traces[i].Overlaps(traces[j]) {
						continue
					}
					traces[j].MergeTags(traces[i])
					if _, err := sec.RemoveTrace(traces[i].ID, false); err != nil {
						return nil, false, err
					}
					traces = append(traces[:i], traces[i+1:]...)
					i--
					found = true
					break
				}
			}
			if found {
				names = append(names, name)
			}
		}
		return names, len(names) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	removed := make(map[int][]string)
	for n, names := range results {
		if len(names) > 0 {
			removed[n] = names
		}
	}
	s.AddLog("", nil, "Delete all duplicate traces")
	return removed, nil
}

// SetMag rescales every section to newMag.
func (s *Series) SetMag(ctx context.Context, newMag float64) error {
	if newMag <= 0 {
		return fmt.Errorf("series: invalid magnification %v", newMag)
	}
	_, err := Map(ctx, s, "set_mag", func(sec *section.Section) (struct{}, bool, error) {
		if sec.Mag == newMag {
			return struct{}{}, false, nil
		}
		sec.SetMag(newMag)
		return struct{}{}, true, nil
	})
	return err
}

// SetAlignLocked locks or unlocks the alignment of the given sections, or
// of every section when sections is nil.
func (s *Series) SetAlignLocked(ctx context.Context, sections []int, locked bool) error {
	include := includeSet(sections)
	results, err := Map(ctx, s, "set_align_locked", func(sec *section.Section) (bool, bool, error) {
		if (include != nil && !include[sec.N]) || sec.AlignLocked == locked {
			return false, false, nil
		}
		sec.AlignLocked = locked
		return true, true, nil
	})
	if err != nil {
		return err
	}
	var changed []int
	for _, n := range s.SectionNumbers() {
		if results[n] {
			changed = append(changed, n)
		}
	}
	if len(changed) == 0 {
		return nil
	}
	event := "Unlock section alignment"
	if locked {
		event = "Lock section alignment"
	}
	s.AddLog("", changed, event)
	return nil
}

// ModifyAlignments rewrites the alignments of every section. The map is
// new name -> old name; a nil old name deletes (or leaves out) the new name
// and section.NoAlignment as the old name yields identity. When the current
// alignment disappears the series switches to the first new name copied
// from it, or to section.NoAlignment.
func (s *Series) ModifyAlignments(ctx context.Context, m map[string]*string) error {
	newNames := make([]string, 0, len(m))
	for k := range m {
		newNames = append(newNames, k)
	}
	sort.Strings(newNames)

	before, err := Map(ctx, s, "modify_alignments", func(sec *section.Section) ([]string, bool, error) {
		old := sec.Tforms
		names := make([]string, 0, len(old))
		for k := range old {
			names = append(names, k)
		}
		next := make(map[string]geometry.Transform, len(m))
		for _, newA := range newNames {
			oldA := m[newA]
			switch {
			case oldA == nil:
			case *oldA == section.NoAlignment:
				next[newA] = geometry.Identity()
			default:
				if t, ok := old[*oldA]; ok {
					next[newA] = t
				}
			}
		}
		sec.Tforms = next
		return names, true, nil
	})
	if err != nil {
		return err
	}
	existed := make(map[string]bool)
	for _, names := range before {
		for _, n := range names {
			existed[n] = true
		}
	}

	if cur, ok := m[s.Alignment]; s.Alignment != section.NoAlignment && (!ok || cur == nil) {
		next := section.NoAlignment
		for _, newA := range newNames {
			if old := m[newA]; old != nil && *old == s.Alignment {
				next = newA
				break
			}
		}
		s.Alignment = next
		s.Modified = true
	}

	for _, newA := range newNames {
		oldA := m[newA]
		switch {
		case oldA == nil:
			if existed[newA] {
				s.AddLog("", nil, "Delete alignment "+newA)
			}
		case *oldA == newA:
		case keptUnderOwnName(m, *oldA):
			s.AddLog("", nil, fmt.Sprintf("Create alignment %s from %s", newA, *oldA))
		case existed[*oldA]:
			s.AddLog("", nil, fmt.Sprintf("Rename alignment %s to %s", *oldA, newA))
		}
	}
	return nil
}

func keptUnderOwnName(m map[string]*string, name string) bool {
	v, ok := m[name]
	return ok && v != nil && *v == name
}

// CreateZtrace builds "<obj>_zlen" from the midpoints of obj. With
// crossSectioned set there is one point per section (the contour midpoint);
// otherwise one point per trace. An existing ztrace of that name is
// replaced.
func (s *Series) CreateZtrace(ctx context.Context, obj string, crossSectioned bool) (*trace.Ztrace, error) {
	results, err := Enumerate(ctx, s, "create_ztrace", func(sec *section.Section) ([]trace.ZPoint, bool, error) {
		c, ok := sec.Contour(obj)
		if !ok {
			return nil, false, nil
		}
		var pts []trace.ZPoint
		if crossSectioned {
			mid, ok := c.Midpoint(geometry.Identity())
			if ok {
				pts = append(pts, trace.ZPoint{X: mid.X, Y: mid.Y, Section: sec.N})
			}
		} else {
			for _, t := range c.Traces() {
				mid := t.Midpoint()
				pts = append(pts, trace.ZPoint{X: mid.X, Y: mid.Y, Section: sec.N})
			}
		}
		return pts, false, nil
	})
	if err != nil {
		return nil, err
	}
	z := &trace.Ztrace{Name: obj + "_zlen", Color: colorutil.Black}
	for _, n := range s.SectionNumbers() {
		z.Points = append(z.Points, results[n]...)
	}
	if len(z.Points) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrObjectNotFound, obj)
	}
	s.Ztraces[z.Name] = z
	s.AddLog(z.Name, nil, "Create ztrace")
	return z, nil
}

// EditZtraceAttributes renames and/or recolors a ztrace. Empty newName and
// nil color keep the current values.
func (s *Series) EditZtraceAttributes(name, newName string, color *colorutil.Color) error {
	z, ok := s.Ztraces[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrZtraceNotFound, name)
	}
	if newName != "" && newName != name {
		if _, taken := s.Ztraces[newName]; taken {
			return fmt.Errorf("series: ztrace %q already exists", newName)
		}
		delete(s.Ztraces, name)
		z.Name = newName
		s.Ztraces[newName] = z
		for _, g := range s.ZtraceGroups.ObjectGroups(name) {
			s.ZtraceGroups.Add(g, newName)
		}
		s.ZtraceGroups.RemoveObject(name)
	}
	if color != nil {
		z.Color = *color
	}
	s.Modified = true
	return nil
}

// DeleteZtraces removes ztraces and their group memberships.
func (s *Series) DeleteZtraces(names []string) {
	for _, name := range names {
		if _, ok := s.Ztraces[name]; !ok {
			continue
		}
		delete(s.Ztraces, name)
		s.ZtraceGroups.RemoveObject(name)
		s.AddLog(name, nil, "Delete ztrace")
	}
}

// RecentSegGroup returns the lexically greatest "seg_" object group.
func (s *Series) RecentSegGroup() (string, bool) {
	var best string
	for _, g := range s.ObjectGroups.Groups() {
		if strings.HasPrefix(g, "seg_") && g > best {
			best = g
		}
	}
	return best, best != ""
}
