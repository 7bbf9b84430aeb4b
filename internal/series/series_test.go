package series

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"recon-tracer/internal/section"
	"recon-tracer/internal/store"
	"recon-tracer/internal/trace"
	"recon-tracer/pkg/colorutil"
	"recon-tracer/pkg/geometry"
)

var fixedNow = time.Date(2026, 3, 9, 14, 5, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newSeries(t *testing.T, n int, opts ...Option) *Series {
	t.Helper()
	images := make([]string, n)
	for i := range images {
		images[i] = "/data/img" + string(rune('a'+i)) + ".tif"
	}
	opts = append([]Option{WithUser("alice"), WithClock(clock)}, opts...)
	s, err := Create(context.Background(), store.NewMemory(), "demo", images, 1, 0.05, opts...)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func square(name string, x0, y0, size float64, tags ...string) *trace.Trace {
	tr := trace.New(name, []geometry.Point2D{
		{X: x0, Y: y0}, {X: x0 + size, Y: y0}, {X: x0 + size, Y: y0 + size}, {X: x0, Y: y0 + size},
	}, colorutil.Red, true)
	tr.Tags = trace.NewTagSet(tags...)
	return tr
}

func addTraces(t *testing.T, s *Series, n int, traces ...*trace.Trace) {
	t.Helper()
	ctx := context.Background()
	sec, err := s.LoadSection(ctx, n)
	if err != nil {
		t.Fatalf("LoadSection %d: %v", n, err)
	}
	for _, tr := range traces {
		if _, err := sec.AddTrace(tr, false); err != nil {
			t.Fatalf("AddTrace: %v", err)
		}
	}
	if err := s.SaveSection(ctx, sec); err != nil {
		t.Fatalf("SaveSection: %v", err)
	}
}

func load(t *testing.T, s *Series, n int) *section.Section {
	t.Helper()
	sec, err := s.LoadSection(context.Background(), n)
	if err != nil {
		t.Fatalf("LoadSection %d: %v", n, err)
	}
	return sec
}

func events(s *Series) []string {
	var out []string
	for _, l := range s.LogSet.All() {
		out = append(out, l.Event)
	}
	return out
}

func TestCreateAndOpen(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 3)
	if got := s.SectionNumbers(); len(got) != 3 || got[2] != 2 {
		t.Fatalf("SectionNumbers = %v", got)
	}
	if s.SrcDir != "/data" {
		t.Fatalf("SrcDir = %q", s.SrcDir)
	}
	sec := load(t, s, 1)
	if sec.Src != "imgb.tif" || sec.Mag != 1 || sec.Thickness != 0.05 {
		t.Fatalf("section 1 = %+v", sec)
	}

	reopened, err := Open(ctx, s.Store(), "demo", WithUser("bob"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	logs := reopened.LogSet.All()
	if len(logs) != 1 || logs[0].Event != "Create series" || logs[0].User != "alice" {
		t.Fatalf("log set = %+v", logs)
	}
	if logs[0].Date != "26-03-09" || logs[0].Time != "14:05" {
		t.Fatalf("log stamp = %s %s", logs[0].Date, logs[0].Time)
	}
	if len(reopened.PaletteTraces["palette1"]) != 20 {
		t.Fatalf("default palette has %d traces", len(reopened.PaletteTraces["palette1"]))
	}
	if _, err := reopened.LoadSection(ctx, 7); !errors.Is(err, ErrNoSection) {
		t.Fatalf("LoadSection 7: %v", err)
	}
}

func TestDocumentKeepsUnknownFields(t *testing.T) {
	s := newSeries(t, 1)
	s.Extra["plugin_state"] = map[string]any{"k": 1.0}
	s.ObjectGroups.Add("dendrites", "d01")
	s.CurrentSection = 1
	s.Ztraces["z"] = &trace.Ztrace{Name: "z", Color: colorutil.Blue, Points: []trace.ZPoint{{X: 1, Y: 2, Section: 0}}}
	doc := s.Document()
	back, err := FromDocument("demo", doc)
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if back.CurrentSection != 1 {
		t.Fatalf("current section = %d", back.CurrentSection)
	}
	if z := back.Ztraces["z"]; z == nil || len(z.Points) != 1 || z.Points[0] != (trace.ZPoint{X: 1, Y: 2, Section: 0}) || z.Color != colorutil.Blue {
		t.Fatalf("ztrace = %+v", back.Ztraces["z"])
	}
	if len(back.PaletteTraces["palette1"]) != len(s.PaletteTraces["palette1"]) {
		t.Fatalf("palette not kept: %v", back.PaletteNames())
	}
	if _, ok := back.Extra["plugin_state"]; !ok {
		t.Fatal("unknown field dropped")
	}
	if g := back.ObjectGroups.ObjectGroups("d01"); len(g) != 1 || g[0] != "dendrites" {
		t.Fatalf("groups = %v", g)
	}
}

func TestDeleteDuplicateTracesConverges(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	addTraces(t, s, 0,
		square("a", 0, 0, 1, "x"),
		square("a", 5, 5, 1),
		square("a", 0, 0, 1, "y"),
		square("a", 0, 0, 1, "z"),
	)
	addTraces(t, s, 1, square("b", 0, 0, 1))

	removed, err := s.DeleteDuplicateTraces(ctx)
	if err != nil {
		t.Fatalf("DeleteDuplicateTraces: %v", err)
	}
	if len(removed) != 1 || len(removed[0]) != 1 || removed[0][0] != "a" {
		t.Fatalf("removed = %v", removed)
	}
	c, _ := load(t, s, 0).Contour("a")
	if c.Len() != 2 {
		t.Fatalf("contour a has %d traces, want 2", c.Len())
	}
	kept := c.At(0)
	for _, tag := range []string{"x", "y", "z"} {
		if !kept.Tags.Has(tag) {
			t.Fatalf("kept trace lacks tag %q: %v", tag, kept.Tags.Sorted())
		}
	}

	again, err := s.DeleteDuplicateTraces(ctx)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("second pass removed %v", again)
	}
}

type cancelAfter struct {
	limit   int64
	updates atomic.Int64
}

func (c *cancelAfter) Update(string, float64) { c.updates.Add(1) }
func (c *cancelAfter) Cancelled() bool        { return c.updates.Load() >= c.limit }

func TestMapCancelledWritesNothing(t *testing.T) {
	ctx := context.Background()
	p := &cancelAfter{limit: 1}
	s := newSeries(t, 4, WithWorkers(1), WithProgress(p))
	err := s.SetMag(ctx, 2)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("SetMag = %v, want ErrCancelled", err)
	}
	for _, n := range s.SectionNumbers() {
		if m := load(t, s, n).Mag; m != 1 {
			t.Fatalf("section %d mag = %v after cancelled batch", n, m)
		}
	}
}

func TestMapContextCancelled(t *testing.T) {
	s := newSeries(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.HideAllTraces(ctx, true); !errors.Is(err, ErrCancelled) {
		t.Fatalf("HideAllTraces = %v", err)
	}
	if len(s.LogSet.All()) != 1 {
		t.Fatalf("cancelled batch logged: %v", events(s))
	}
}

func TestMapErrorAbortsBatch(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 3)
	boom := errors.New("boom")
	_, err := Map(ctx, s, "test", func(sec *section.Section) (struct{}, bool, error) {
		sec.Brightness = 42
		if sec.N == 2 {
			return struct{}{}, false, boom
		}
		return struct{}{}, true, nil
	})
	var se *SectionError
	if !errors.As(err, &se) || se.N != 2 || !errors.Is(err, boom) {
		t.Fatalf("Map error = %v", err)
	}
	for _, n := range s.SectionNumbers() {
		if b := load(t, s, n).Brightness; b == 42 {
			t.Fatalf("section %d written by failed batch", n)
		}
	}
}

func TestSetMagPreservesFieldGeometry(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 1)
	addTraces(t, s, 0, square("a", 1, 2, 3))
	sec := load(t, s, 0)
	sec.SetTform("default", geometry.Transform{A: 1, E: 1, C: 4, F: -2})
	if err := s.SaveSection(ctx, sec); err != nil {
		t.Fatal(err)
	}
	before := load(t, s, 0).TracesAsList()[0].FieldPoints(geometry.Transform{A: 1, E: 1, C: 4, F: -2})

	if err := s.SetMag(ctx, 0.5); err != nil {
		t.Fatalf("SetMag: %v", err)
	}
	after := load(t, s, 0)
	pts := after.TracesAsList()[0].FieldPoints(after.Tform("default"))
	for i := range pts {
		// field coordinates scale with the magnification
		want := before[i].Scale(0.5)
		if pts[i].Distance(want) > 1e-9 {
			t.Fatalf("point %d = %v, want %v", i, pts[i], want)
		}
	}
}

func TestModifyAlignments(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	shift := geometry.Transform{A: 1, E: 1, C: 3}
	for _, n := range s.SectionNumbers() {
		sec := load(t, s, n)
		sec.SetTform("default", shift)
		sec.SetTform("old", geometry.Identity())
		if err := s.SaveSection(ctx, sec); err != nil {
			t.Fatal(err)
		}
	}
	str := func(v string) *string { return &v }
	err := s.ModifyAlignments(ctx, map[string]*string{
		"renamed": str("default"),
		"old":     nil,
		"blank":   str(section.NoAlignment),
	})
	if err != nil {
		t.Fatalf("ModifyAlignments: %v", err)
	}
	if s.Alignment != "renamed" {
		t.Fatalf("current alignment = %q", s.Alignment)
	}
	sec := load(t, s, 1)
	if len(sec.Tforms) != 2 || sec.Tforms["renamed"] != shift || !sec.Tforms["blank"].IsIdentity() {
		t.Fatalf("tforms = %v", sec.Tforms)
	}
	got := strings.Join(events(s), "|")
	for _, want := range []string{"Delete alignment old", "Rename alignment default to renamed"} {
		if !strings.Contains(got, want) {
			t.Fatalf("log %q lacks %q", got, want)
		}
	}
}

func TestModifyAlignmentsFallsBackToNoAlignment(t *testing.T) {
	s := newSeries(t, 1)
	if err := s.ModifyAlignments(context.Background(), map[string]*string{"default": nil}); err != nil {
		t.Fatalf("ModifyAlignments: %v", err)
	}
	if s.Alignment != section.NoAlignment {
		t.Fatalf("alignment = %q", s.Alignment)
	}
}

func TestMergeObjects(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	first := square("a", 0, 0, 10)
	first.Fill = trace.FillMode{Style: "solid", Condition: "selected"}
	addTraces(t, s, 0, first, square("b", 5, 5, 10))
	addTraces(t, s, 1, square("other", 0, 0, 2))

	if err := s.MergeObjects(ctx, []string{"a", "b"}, "ab", MergeOptions{}); err != nil {
		t.Fatalf("MergeObjects: %v", err)
	}
	sec := load(t, s, 0)
	if _, ok := sec.Contour("a"); ok {
		t.Fatal("source object a still present")
	}
	c, ok := sec.Contour("ab")
	if !ok || c.Len() != 1 {
		t.Fatalf("merged contour = %v", c)
	}
	merged := c.At(0)
	if a := geometry.Area(merged.Points); math.Abs(a-175) > 1e-9 {
		t.Fatalf("merged area = %v", a)
	}
	if merged.Color != colorutil.Red || merged.Fill.Style != "solid" {
		t.Fatalf("merged attributes = %+v", merged)
	}
	if _, ok := load(t, s, 1).Contour("other"); !ok {
		t.Fatal("unrelated section changed")
	}
	logs := s.LogSet.All()
	last := logs[len(logs)-1]
	if last.Event != "Created by merging objects" || last.Obj != "ab" || len(last.Sections) != 1 {
		t.Fatalf("last log = %+v", last)
	}
}

func TestEditObjectAttributesRenameMovesAttrs(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	addTraces(t, s, 0, square("d01", 0, 0, 1, "spine"))
	addTraces(t, s, 1, square("d01", 0, 0, 1))
	s.ObjectGroups.Add("dendrites", "d01")
	s.SetObjAttr("d01", AttrComment, "check me")

	err := s.EditObjectAttributes(ctx, []string{"d01"}, section.AttrEdit{Name: "d02", Tags: trace.NewTagSet("new")}, nil)
	if err != nil {
		t.Fatalf("EditObjectAttributes: %v", err)
	}
	for _, n := range s.SectionNumbers() {
		c, ok := load(t, s, n).Contour("d02")
		if !ok || !c.At(0).Tags.Has("new") {
			t.Fatalf("section %d not renamed", n)
		}
	}
	if !load(t, s, 0).TracesAsList()[0].Tags.Has("spine") {
		t.Fatal("existing tags replaced instead of extended")
	}
	if s.GetObjAttr("d02", AttrComment) != "check me" {
		t.Fatal("attributes not moved")
	}
	if g := s.ObjectGroups.ObjectGroups("d02"); len(g) != 1 {
		t.Fatalf("groups = %v", g)
	}
	if g := s.ObjectGroups.ObjectGroups("d01"); len(g) != 0 {
		t.Fatalf("old groups = %v", g)
	}
}

func TestImportTracesMergesByOverlap(t *testing.T) {
	ctx := context.Background()
	dst := newSeries(t, 2)
	src := newSeries(t, 2)
	addTraces(t, dst, 0, square("a", 0, 0, 1, "mine"))
	addTraces(t, src, 0, square("a", 0, 0, 1, "theirs"), square("skip", 3, 3, 1))
	addTraces(t, src, 1, square("a", 9, 9, 1))
	src.ObjectGroups.Add("imported", "a")

	if err := dst.ImportTraces(ctx, src, nil, []string{"a"}); err != nil {
		t.Fatalf("ImportTraces: %v", err)
	}
	sec := load(t, dst, 0)
	c, _ := sec.Contour("a")
	if c.Len() != 1 {
		t.Fatalf("overlapping import added a trace: %d", c.Len())
	}
	if tags := c.At(0).Tags; !tags.Has("mine") || !tags.Has("theirs") {
		t.Fatalf("tags = %v", tags.Sorted())
	}
	if _, ok := sec.Contour("skip"); ok {
		t.Fatal("filtered object imported")
	}
	if _, ok := load(t, dst, 1).Contour("a"); !ok {
		t.Fatal("section 1 trace not imported")
	}
	if g := dst.ObjectGroups.ObjectGroups("a"); len(g) != 1 {
		t.Fatalf("groups not merged: %v", g)
	}
	ev := events(dst)
	if ev[len(ev)-1] != "Finish importing traces from another series" {
		t.Fatalf("events = %v", ev)
	}
}

func TestImportTracesBadFilter(t *testing.T) {
	dst := newSeries(t, 1)
	src := newSeries(t, 1)
	if err := dst.ImportTraces(context.Background(), src, nil, []string{"("}); err == nil {
		t.Fatal("expected filter error")
	}
}

func TestImportTransforms(t *testing.T) {
	ctx := context.Background()
	dst := newSeries(t, 2)
	src := newSeries(t, 2)
	shift := geometry.Transform{A: 1, E: 1, F: 7}
	for _, n := range src.SectionNumbers() {
		sec := load(t, src, n)
		sec.SetTform("swift", shift)
		if err := src.SaveSection(ctx, sec); err != nil {
			t.Fatal(err)
		}
	}
	if err := dst.ImportTransforms(ctx, src, []string{"swift"}, false); err != nil {
		t.Fatalf("ImportTransforms: %v", err)
	}
	if load(t, dst, 1).Tforms["swift"] != shift {
		t.Fatal("alignment not imported")
	}
	if err := dst.ImportTransforms(ctx, src, []string{"swift"}, false); !errors.Is(err, ErrAlignmentExists) {
		t.Fatalf("second import = %v", err)
	}
	if err := dst.ImportTransforms(ctx, src, []string{"missing"}, true); err == nil {
		t.Fatal("expected missing alignment error")
	}
	if _, ok := load(t, dst, 0).Tforms["missing"]; ok {
		t.Fatal("failed import wrote a section")
	}

	short := newSeries(t, 1)
	if err := dst.ImportTransforms(ctx, short, []string{"default"}, true); !errors.Is(err, ErrSectionMismatch) {
		t.Fatalf("mismatch = %v", err)
	}
}

func TestImportTransformFile(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	sec := load(t, s, 1)
	sec.SetMag(0.5)
	if err := s.SaveSection(ctx, sec); err != nil {
		t.Fatal(err)
	}
	in := "0 1 0 10 0 1 20\n1 1 0 10 0 1 20\n"
	name, err := s.ImportTransformFile(ctx, strings.NewReader(in), "/tmp/tforms.txt")
	if err != nil {
		t.Fatalf("ImportTransformFile: %v", err)
	}
	if name != "tforms-26-03-09" || s.Alignment != name {
		t.Fatalf("alignment = %q / %q", name, s.Alignment)
	}
	if got := load(t, s, 1).Tforms[name]; got.C != 5 || got.F != 10 {
		t.Fatalf("section 1 tform = %+v", got)
	}

	if _, err := s.ImportTransformFile(ctx, strings.NewReader("9 1 0 0 0 1 0\n"), "x.txt"); err == nil {
		t.Fatal("expected unknown section error")
	}

	again, err := s.ImportTransformFile(ctx, strings.NewReader("0 1 0 3 0 1 0\n1 1 0 3 0 1 0\n"), "/tmp/tforms.txt")
	if err != nil {
		t.Fatalf("second ImportTransformFile: %v", err)
	}
	if again != "tforms-26-03-09-1" || s.Alignment != again {
		t.Fatalf("second alignment = %q / %q", again, s.Alignment)
	}
	if got := load(t, s, 1).Tforms[name]; got.C != 5 || got.F != 10 {
		t.Fatalf("first import overwritten: %+v", got)
	}
}

func TestImportPalettesRenames(t *testing.T) {
	ctx := context.Background()
	dst := newSeries(t, 1)
	src := newSeries(t, 1)
	src.PaletteTraces["extra"] = []*trace.Trace{square("p", 0, 0, 1)}
	if err := dst.ImportPalettes(ctx, src); err != nil {
		t.Fatalf("ImportPalettes: %v", err)
	}
	for _, name := range []string{"palette1", "palette1-1", "extra"} {
		if _, ok := dst.PaletteTraces[name]; !ok {
			t.Fatalf("palette %q missing: %v", name, dst.PaletteNames())
		}
	}
}

func TestImportZtracesKeepsExisting(t *testing.T) {
	ctx := context.Background()
	dst := newSeries(t, 1)
	src := newSeries(t, 1)
	dst.Ztraces["z"] = &trace.Ztrace{Name: "z", Color: colorutil.Red}
	src.Ztraces["z"] = &trace.Ztrace{Name: "z", Color: colorutil.Blue}
	src.Ztraces["y"] = &trace.Ztrace{Name: "y", Color: colorutil.Blue}
	if err := dst.ImportZtraces(ctx, src, nil); err != nil {
		t.Fatalf("ImportZtraces: %v", err)
	}
	if dst.Ztraces["z"].Color != colorutil.Red {
		t.Fatal("existing ztrace replaced")
	}
	if _, ok := dst.Ztraces["y"]; !ok {
		t.Fatal("new ztrace not imported")
	}
}

func TestImportZtracesRejectsMissingSection(t *testing.T) {
	ctx := context.Background()
	dst := newSeries(t, 2)
	src := newSeries(t, 2)
	src.Ztraces["ok"] = &trace.Ztrace{Name: "ok", Color: colorutil.Blue, Points: []trace.ZPoint{{X: 1, Y: 1, Section: 1}}}
	src.Ztraces["z"] = &trace.Ztrace{Name: "z", Color: colorutil.Blue, Points: []trace.ZPoint{
		{X: 0, Y: 0, Section: 0},
		{X: 1, Y: 1, Section: 99},
	}}
	logs := dst.LogSet.Len()

	err := dst.ImportZtraces(ctx, src, nil)
	if !errors.Is(err, ErrNoSection) {
		t.Fatalf("err = %v, want ErrNoSection", err)
	}
	var se *SectionError
	if !errors.As(err, &se) || se.N != 99 {
		t.Fatalf("err = %v, want section 99", err)
	}
	if len(dst.Ztraces) != 0 {
		t.Fatalf("ztraces imported: %v", dst.Ztraces)
	}
	if dst.LogSet.Len() != logs {
		t.Fatal("failed import was logged")
	}
}

func TestImportHistory(t *testing.T) {
	ctx := context.Background()
	dst := newSeries(t, 1)
	src := newSeries(t, 1)
	src.AddLog("a", []int{0}, "Create trace(s)")
	src.AddLog("zz", nil, "Create ztrace")
	src.AddLog("", nil, "Calibrate series")

	if err := dst.ImportHistory(ctx, src, true, false); err != nil {
		t.Fatalf("ImportHistory: %v", err)
	}
	got := events(dst)
	if len(got) != 2 || got[1] != "Create trace(s)" {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateZtrace(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 3)
	addTraces(t, s, 0, square("a", 0, 0, 2))
	addTraces(t, s, 2, square("a", 4, 4, 2), square("a", 10, 10, 2))

	z, err := s.CreateZtrace(ctx, "a", true)
	if err != nil {
		t.Fatalf("CreateZtrace: %v", err)
	}
	if z.Name != "a_zlen" || z.Color != colorutil.Black || len(z.Points) != 2 {
		t.Fatalf("ztrace = %+v", z)
	}
	if p := z.Points[0]; p.X != 1 || p.Y != 1 || p.Section != 0 {
		t.Fatalf("first point = %+v", p)
	}
	z, err = s.CreateZtrace(ctx, "a", false)
	if err != nil || len(z.Points) != 3 {
		t.Fatalf("per-trace ztrace = %+v, %v", z, err)
	}
	if _, err := s.CreateZtrace(ctx, "nothing", true); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("missing object = %v", err)
	}
}

func TestZValues(t *testing.T) {
	s := newSeries(t, 3)
	z, err := s.ZValues(context.Background())
	if err != nil {
		t.Fatalf("ZValues: %v", err)
	}
	if math.Abs(z[2]-0.15) > 1e-12 || math.Abs(z[0]-0.05) > 1e-12 {
		t.Fatalf("z = %v", z)
	}
}

func TestCurationAndObjectsCSV(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	addTraces(t, s, 0, square("a", 0, 0, 2, "t1"))
	addTraces(t, s, 1, square("a", 0, 0, 2, "t2"))
	s.ObjectGroups.Add("g1", "a")
	s.SetCuration([]string{"a"}, CurationDone, "")

	c, ok := s.Curation("a")
	if !ok || !c.Curated || c.User != "alice" || c.Date != "26-03-09" {
		t.Fatalf("curation = %+v", c)
	}

	var buf bytes.Buffer
	if err := s.ExportObjectsCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportObjectsCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 || strings.Join(rows[0], ",") != strings.Join(ObjectsCSVHeader, ",") {
		t.Fatalf("rows = %v", rows)
	}
	want := []string{"a", "0", "1", "2", "8", "0.4", "g1", "t1:t2", "alice", "Curated", "alice", "26-03-09", "", ""}
	if strings.Join(rows[1], ",") != strings.Join(want, ",") {
		t.Fatalf("row = %v, want %v", rows[1], want)
	}

	s.SetCuration([]string{"a"}, CurationNone, "")
	if _, ok := s.Curation("a"); ok {
		t.Fatal("curation not cleared")
	}
	for _, ev := range events(s) {
		if ev == "Mark as curated" {
			t.Fatal("pending curation log kept")
		}
	}
}

func TestDeleteObjectsAndHide(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 2)
	addTraces(t, s, 0, square("a", 0, 0, 1), square("b", 0, 0, 1))
	addTraces(t, s, 1, square("a", 0, 0, 1))
	s.ObjectGroups.Add("g", "a")

	if err := s.HideObjects(ctx, []string{"b"}, true); err != nil {
		t.Fatalf("HideObjects: %v", err)
	}
	c, _ := load(t, s, 0).Contour("b")
	if !c.At(0).Hidden {
		t.Fatal("b not hidden")
	}
	if err := s.DeleteObjects(ctx, []string{"a"}); err != nil {
		t.Fatalf("DeleteObjects: %v", err)
	}
	for _, n := range s.SectionNumbers() {
		if _, ok := load(t, s, n).Contour("a"); ok {
			t.Fatalf("a still on section %d", n)
		}
	}
	if len(s.ObjectGroups.Groups()) != 0 {
		t.Fatal("group membership kept")
	}
	last := s.LogSet.All()[len(s.LogSet.All())-1]
	if last.Event != "Delete object" || len(last.Sections) != 2 {
		t.Fatalf("last log = %+v", last)
	}
}

func TestLogEventsFoldsSections(t *testing.T) {
	s := newSeries(t, 1)
	s.LogEvents([]section.LogEvent{
		{Object: "a", Section: 3, HasSection: true, Message: "Modify trace(s)"},
		{Object: "a", Section: 1, HasSection: true, Message: "Modify trace(s)"},
		{Object: "b", Section: 2, HasSection: true, Message: "Modify trace(s)"},
	})
	logs := s.LogSet.All()
	if len(logs) != 3 {
		t.Fatalf("logs = %+v", logs)
	}
	if got := logs[1].Sections; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("sections = %v", got)
	}
	if s.GetObjAttr("a", AttrLastUser) != "alice" {
		t.Fatal("last user not recorded")
	}
}

func TestSetAlignLocked(t *testing.T) {
	ctx := context.Background()
	s := newSeries(t, 3)
	if !load(t, s, 1).AlignLocked {
		t.Fatal("new section not locked")
	}
	if err := s.SetAlignLocked(ctx, []int{1, 2}, false); err != nil {
		t.Fatalf("SetAlignLocked: %v", err)
	}
	if !load(t, s, 0).AlignLocked || load(t, s, 1).AlignLocked || load(t, s, 2).AlignLocked {
		t.Fatal("unexpected lock states after unlocking 1-2")
	}
	logs := s.LogSet.All()
	last := logs[len(logs)-1]
	if last.Event != "Unlock section alignment" || len(last.Sections) != 2 {
		t.Fatalf("last log = %+v", last)
	}

	before := s.LogSet.Len()
	if err := s.SetAlignLocked(ctx, nil, true); err != nil {
		t.Fatalf("SetAlignLocked: %v", err)
	}
	if err := s.SetAlignLocked(ctx, nil, true); err != nil {
		t.Fatalf("SetAlignLocked: %v", err)
	}
	if got := s.LogSet.Len() - before; got != 1 {
		t.Fatalf("lock logged %d entries, want 1", got)
	}
	for _, n := range s.SectionNumbers() {
		if !load(t, s, n).AlignLocked {
			t.Fatalf("section %d not locked", n)
		}
	}
}
