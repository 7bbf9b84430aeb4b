package series

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"recon-tracer/internal/section"
	"recon-tracer/internal/trace"
	"recon-tracer/pkg/geometry"
)

// ObjectStats summarizes one object across the series. Areas are in field
// units under the object's alignment (or the series alignment).
type ObjectStats struct {
	Name  string
	Start int
	End   int
	Count int
	// FlatArea sums closed trace areas plus open trace length times
	// section thickness.
	FlatArea float64
	// Volume sums closed trace areas times section thickness; negative
	// traces subtract.
	Volume   float64
	Tags     []string
	Sections []int
}

type sectionStats struct {
	thickness float64
	objects   map[string]*ObjectStats
	tags      map[string]trace.TagSet
}

// RefreshData recomputes the object statistics of every section.
func (s *Series) RefreshData(ctx context.Context) error {
	results, err := Map(ctx, s, "refresh_data", func(sec *section.Section) (sectionStats, bool, error) {
		st := sectionStats{
			thickness: sec.Thickness,
			objects:   make(map[string]*ObjectStats),
			tags:      make(map[string]trace.TagSet),
		}
		for _, name := range sec.ContourNames() {
			c, _ := sec.Contour(name)
			tform := sec.Tform(s.objectAlignment(name))
			o := &ObjectStats{Name: name, Start: sec.N, End: sec.N, Sections: []int{sec.N}}
			tags := trace.NewTagSet()
			for _, t := range c.Traces() {
				o.Count++
				tags.Union(t.Tags)
				if t.Closed {
					a := geometry.Area(t.FieldPoints(tform))
					if t.Negative {
						a = -a
					}
					o.FlatArea += a
					o.Volume += a * sec.Thickness
				} else {
					o.FlatArea += t.Length(tform) * sec.Thickness
				}
			}
			st.objects[name] = o
			st.tags[name] = tags
		}
		return st, false, nil
	})
	if err != nil {
		return err
	}

	objects := make(map[string]ObjectStats)
	tags := make(map[string]trace.TagSet)
	for _, n := range s.SectionNumbers() {
		st, ok := results[n]
		if !ok {
			continue
		}
		for name, o := range st.objects {
			agg, seen := objects[name]
			if !seen {
				objects[name] = *o
				tags[name] = st.tags[name]
				continue
			}
			agg.End = n
			agg.Count += o.Count
			agg.FlatArea += o.FlatArea
			agg.Volume += o.Volume
			agg.Sections = append(agg.Sections, n)
			objects[name] = agg
			tags[name].Union(st.tags[name])
		}
	}
	for name, o := range objects {
		o.Tags = tags[name].Sorted()
		objects[name] = o
	}
	s.objects = objects
	return nil
}

func (s *Series) objectAlignment(name string) string {
	if a, ok := s.GetObjAttr(name, AttrAlignment).(string); ok && a != "" {
		return a
	}
	return s.Alignment
}

// Objects returns the sorted object names found by the last RefreshData.
func (s *Series) Objects() []string {
	out := make([]string, 0, len(s.objects))
	for name := range s.objects {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Object returns the statistics of name from the last RefreshData.
func (s *Series) Object(name string) (ObjectStats, bool) {
	o, ok := s.objects[name]
	return o, ok
}

// ZValues returns the cumulative depth of every section: each section's
// value is the sum of the thicknesses up to and including it.
func (s *Series) ZValues(ctx context.Context) (map[int]float64, error) {
	thick, err := Map(ctx, s, "z_values", func(sec *section.Section) (float64, bool, error) {
		return sec.Thickness, false, nil
	})
	if err != nil {
		return nil, err
	}
	out := make(map[int]float64, len(thick))
	var z float64
	for _, n := range s.SectionNumbers() {
		z += thick[n]
		out[n] = z
	}
	return out, nil
}

// ObjectsCSVHeader is the header row written by ExportObjectsCSV.
var ObjectsCSVHeader = []string{
	"Name", "Start", "End", "Count", "Flat_Area", "Volume", "Groups", "Trace_Tags",
	"Last_User", "Curation_Status", "Curation_User", "Curation_Date", "Alignment", "Comment",
}

// ExportObjectsCSV refreshes the object statistics and writes one row per
// object.
func (s *Series) ExportObjectsCSV(ctx context.Context, w io.Writer) error {
	if err := s.RefreshData(ctx); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ObjectsCSVHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, name := range s.Objects() {
		o := s.objects[name]
		var status, user, date string
		if c, ok := s.Curation(name); ok {
			status, user, date = "Needs Curation", c.User, c.Date
			if c.Curated {
				status = "Curated"
			}
		}
		align, _ := s.GetObjAttr(name, AttrAlignment).(string)
		lastUser, _ := s.GetObjAttr(name, AttrLastUser).(string)
		comment, _ := s.GetObjAttr(name, AttrComment).(string)
		row := []string{
			name,
			strconv.Itoa(o.Start),
			strconv.Itoa(o.End),
			strconv.Itoa(o.Count),
			f(o.FlatArea),
			f(o.Volume),
			strings.Join(s.ObjectGroups.ObjectGroups(name), ":"),
			strings.Join(o.Tags, ":"),
			lastUser,
			status,
			user,
			date,
			align,
			comment,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write objects csv: %w", err)
	}
	return nil
}
