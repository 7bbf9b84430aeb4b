// Package series holds the series document and the operations that touch
// every section: batch edits, imports, object attributes and the audit log.
//
// A Series is not safe for concurrent use. Batch operations fan work out to
// goroutines internally but mutate Series state on the calling goroutine.
package series

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"recon-tracer/internal/logging"
	"recon-tracer/internal/metrics"
	"recon-tracer/internal/schema"
	"recon-tracer/internal/section"
	"recon-tracer/internal/store"
	"recon-tracer/internal/trace"
)

// PaletteIndex selects the active palette trace.
type PaletteIndex struct {
	Group string
	Index int
}

// Series is the top-level container of a reconstruction.
type Series struct {
	Name string
	// Sections maps every section number to its file name. Its keys are the
	// authoritative set of section numbers.
	Sections       map[int]string
	CurrentSection int
	SrcDir         string
	Window         [4]float64
	PaletteTraces  map[string][]*trace.Trace
	PaletteIndex   PaletteIndex
	Ztraces        map[string]*trace.Ztrace
	Alignment      string
	ObjectGroups   *GroupDict
	ZtraceGroups   *GroupDict
	ObjAttrs       map[string]map[string]any
	Options        map[string]any
	LogSet         *LogSet

	// User is recorded on every log entry.
	User string
	// Modified is set by every change to the series document.
	Modified bool
	// Extra keeps document fields this package does not interpret.
	Extra map[string]any

	store    store.Store
	progress Progress
	metrics  metrics.Recorder
	workers  int
	objects  map[string]ObjectStats
}

// Option configures Open and Create.
type Option func(*Series)

// WithUser sets the user recorded in the log.
func WithUser(u string) Option { return func(s *Series) { s.User = u } }

// WithProgress sets the progress sink of batch operations.
func WithProgress(p Progress) Option {
	return func(s *Series) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithMetrics sets the recorder observing batch operations.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Series) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithWorkers bounds the batch worker pool; n <= 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Series) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		s.workers = n
	}
}

// WithClock replaces the clock used to stamp log entries.
func WithClock(now func() time.Time) Option {
	return func(s *Series) { s.LogSet.now = now }
}

func (s *Series) apply(opts []Option) {
	s.progress = nopProgress{}
	s.metrics = metrics.Nop{}
	s.workers = runtime.GOMAXPROCS(0)
	for _, o := range opts {
		o(s)
	}
}

// Open loads the series stored in st.
func Open(ctx context.Context, st store.Store, name string, opts ...Option) (*Series, error) {
	data, err := st.LoadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	doc, err := schema.Parse(data, schema.SeriesSteps)
	if err != nil {
		return nil, err
	}
	s, err := FromDocument(name, doc)
	if err != nil {
		return nil, err
	}
	nums, err := st.ListSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	for _, n := range nums {
		s.Sections[n] = sectionFile(name, n)
	}
	s.store = st
	s.apply(opts)
	logging.Logger().Debug("series opened", "name", name, "sections", len(nums), "driver", st.Driver())
	return s, nil
}

// Create writes a new series with one section per image and logs its
// creation.
func Create(ctx context.Context, st store.Store, name string, images []string, mag, thickness float64, opts ...Option) (*Series, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("series: create %q: no images", name)
	}
	s, err := FromDocument(name, schema.EmptySeries())
	if err != nil {
		return nil, err
	}
	s.store = st
	s.apply(opts)
	s.SrcDir = filepath.Dir(images[0])

	docs := make(map[int][]byte, len(images))
	for i, img := range images {
		sec := section.New(i)
		sec.Src = filepath.Base(img)
		sec.Mag = mag
		sec.Thickness = thickness
		data, err := sec.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode section %d: %w", i, err)
		}
		docs[i] = data
		s.Sections[i] = sectionFile(name, i)
	}
	if err := st.SaveSections(ctx, docs); err != nil {
		return nil, fmt.Errorf("save sections: %w", err)
	}
	if err := st.SaveExistingLog(ctx, schema.LogHeader); err != nil {
		return nil, fmt.Errorf("save log: %w", err)
	}
	s.AddLog("", nil, "Create series")
	if err := s.Save(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func sectionFile(name string, n int) string {
	return name + "." + strconv.Itoa(n)
}

// Store returns the backing document store.
func (s *Series) Store() store.Store { return s.store }

// SectionNumbers returns the section numbers in ascending order.
func (s *Series) SectionNumbers() []int {
	out := make([]int, 0, len(s.Sections))
	for n := range s.Sections {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// HasSection reports whether n is part of the series.
func (s *Series) HasSection(n int) bool {
	_, ok := s.Sections[n]
	return ok
}

// EditContext returns the context section edits run under.
func (s *Series) EditContext() section.EditContext {
	return section.EditContext{User: s.User, Alignment: s.Alignment}
}

// LoadSection reads section n from the store.
func (s *Series) LoadSection(ctx context.Context, n int) (*section.Section, error) {
	if !s.HasSection(n) {
		return nil, &SectionError{N: n, Err: ErrNoSection}
	}
	data, err := s.store.LoadSection(ctx, n)
	if err != nil {
		return nil, &SectionError{N: n, Err: err}
	}
	sec, err := section.Decode(n, data)
	if err != nil {
		return nil, &SectionError{N: n, Err: err}
	}
	return sec, nil
}

// SaveSection writes sec to the store and clears its change tracking.
func (s *Series) SaveSection(ctx context.Context, sec *section.Section) error {
	if !s.HasSection(sec.N) {
		return &SectionError{N: sec.N, Err: ErrNoSection}
	}
	data, err := sec.Encode()
	if err != nil {
		return &SectionError{N: sec.N, Err: err}
	}
	if err := s.store.SaveSection(ctx, sec.N, data); err != nil {
		return &SectionError{N: sec.N, Err: err}
	}
	sec.ClearTracking()
	return nil
}

// Save writes the series document.
func (s *Series) Save(ctx context.Context) error {
	data, err := json.Marshal(s.Document())
	if err != nil {
		return fmt.Errorf("encode series: %w", err)
	}
	if err := s.store.SaveSeries(ctx, data); err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	s.Modified = false
	return nil
}

// Ztrace returns the named ztrace.
func (s *Series) Ztrace(name string) (*trace.Ztrace, bool) {
	z, ok := s.Ztraces[name]
	return z, ok
}

// AddLog records an event and stamps obj with the current user.
func (s *Series) AddLog(obj string, sections []int, event string) {
	s.LogSet.Add(s.User, obj, sections, event)
	if obj != "" {
		s.SetObjAttr(obj, AttrLastUser, s.User)
	}
	s.Modified = true
}

// LogEvents records section edit events. Events with the same object and
// message are folded into one entry listing every section.
func (s *Series) LogEvents(events []section.LogEvent) {
	type key struct{ obj, msg string }
	var order []key
	secs := make(map[key][]int)
	for _, e := range events {
		k := key{e.Object, e.Message}
		if _, ok := secs[k]; !ok {
			order = append(order, k)
			secs[k] = nil
		}
		if e.HasSection {
			secs[k] = append(secs[k], e.Section)
		}
	}
	for _, k := range order {
		s.AddLog(k.obj, secs[k], k.msg)
	}
}

// FullHistory returns the persisted log followed by the pending entries.
func (s *Series) FullHistory(ctx context.Context) (*LogSet, error) {
	text, err := s.store.LoadExistingLog(ctx)
	if err != nil && !store.IsNotFound(err) {
		return nil, fmt.Errorf("load log: %w", err)
	}
	full, err := ParseLogCSV(text)
	if err != nil {
		return nil, err
	}
	for _, l := range s.LogSet.logs {
		full.AddExisting(l)
	}
	return full, nil
}

// Option returns a series option.
func (s *Series) Option(key string) (any, bool) {
	v, ok := s.Options[key]
	return v, ok
}

// SetOption sets a series option.
func (s *Series) SetOption(key string, v any) {
	s.Options[key] = v
	s.Modified = true
}

// StringOption returns a string option or def.
func (s *Series) StringOption(key, def string) string {
	if v, ok := s.Options[key].(string); ok {
		return v
	}
	return def
}

// BackupDir returns the backup_dir option.
func (s *Series) BackupDir() string { return s.StringOption("backup_dir", "") }

// ShowFlags returns the show_flags option.
func (s *Series) ShowFlags() string { return s.StringOption("show_flags", section.ShowFlagsUnresolved) }
