package series

import (
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"recon-tracer/internal/schema"
)

// Curation events, removed from the pending log when curation is cleared.
const (
	eventCurated       = "Mark as curated"
	eventNeedsCuration = "Mark as needs curation"
)

const (
	logFieldCount       = 6
	sectionRangeSep     = " "
	sectionRangeBetween = "-"
)

// Log is one audit entry. Sections is sorted and may be empty for
// series-wide events.
type Log struct {
	Date     string
	Time     string
	User     string
	Obj      string
	Sections []int
	Event    string
}

// Fields returns the CSV columns of the entry.
func (l Log) Fields() []string {
	return []string{l.Date, l.Time, l.User, l.Obj, formatSections(l.Sections), l.Event}
}

// String returns the entry as a single CSV line.
func (l Log) String() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(l.Fields())
	w.Flush()
	return strings.TrimRight(b.String(), "\r\n")
}

// Equal compares every field.
func (l Log) Equal(o Log) bool {
	return l.Date == o.Date && l.Time == o.Time && l.User == o.User &&
		l.Obj == o.Obj && l.Event == o.Event && slices.Equal(l.Sections, o.Sections)
}

func formatSections(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	var parts []string
	start, prev := nums[0], nums[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, strconv.Itoa(start)+sectionRangeBetween+strconv.Itoa(prev))
		}
	}
	for _, n := range nums[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(parts, sectionRangeSep)
}

// ParseSections parses a section list such as "1-3, 7" into sorted unique
// section numbers.
func ParseSections(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Fields(strings.ReplaceAll(s, ",", " ")) {
		lo, hi, isRange := strings.Cut(part, sectionRangeBetween)
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad section %q", part)
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(hi); err != nil || b < a {
				return nil, fmt.Errorf("bad section range %q", part)
			}
		}
		for n := a; n <= b; n++ {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ParseLog parses one CSV record. Extra columns are treated as commas inside
// an unquoted event.
func ParseLog(fields []string) (Log, error) {
	if len(fields) < logFieldCount {
		return Log{}, fmt.Errorf("series: log needs %d fields, got %d", logFieldCount, len(fields))
	}
	secs, err := ParseSections(fields[4])
	if err != nil {
		return Log{}, fmt.Errorf("series: log: %w", err)
	}
	return Log{
		Date:     fields[0],
		Time:     fields[1],
		User:     fields[2],
		Obj:      fields[3],
		Sections: secs,
		Event:    strings.Join(fields[5:], ", "),
	}, nil
}

// LogSet holds the audit entries recorded since the series was opened. It is
// not safe for concurrent use; batch operations log from the coordinating
// goroutine only.
type LogSet struct {
	logs []Log
	now  func() time.Time
}

// NewLogSet returns an empty log set using the wall clock.
func NewLogSet() *LogSet {
	return &LogSet{now: time.Now}
}

// dateTime formats t the way the log records it: two-digit year, 24h time.
func dateTime(t time.Time) (string, string) {
	return fmt.Sprintf("%d-%02d-%02d", t.Year()%1000, int(t.Month()), t.Day()),
		fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add appends a new entry stamped with the current time.
func (ls *LogSet) Add(user, obj string, sections []int, event string) Log {
	d, t := dateTime(ls.now())
	secs := slices.Clone(sections)
	slices.Sort(secs)
	l := Log{Date: d, Time: t, User: user, Obj: obj, Sections: slices.Compact(secs), Event: event}
	ls.logs = append(ls.logs, l)
	return l
}

// AddExisting appends an entry recorded elsewhere.
func (ls *LogSet) AddExisting(l Log) {
	l.Sections = slices.Clone(l.Sections)
	ls.logs = append(ls.logs, l)
}

// All returns a copy of the entries in order.
func (ls *LogSet) All() []Log {
	return slices.Clone(ls.logs)
}

// Len returns the number of entries.
func (ls *LogSet) Len() int { return len(ls.logs) }

// RemoveCuration drops the pending curation entries of obj.
func (ls *LogSet) RemoveCuration(obj string) {
	ls.logs = slices.DeleteFunc(ls.logs, func(l Log) bool {
		return l.Obj == obj && (l.Event == eventCurated || l.Event == eventNeedsCuration)
	})
}

// String returns the entries as CSV lines without a header.
func (ls *LogSet) String() string {
	lines := make([]string, len(ls.logs))
	for i, l := range ls.logs {
		lines[i] = l.String()
	}
	return strings.Join(lines, "\n")
}

// List returns the persisted form: one CSV line per entry.
func (ls *LogSet) List() []any {
	out := make([]any, len(ls.logs))
	for i, l := range ls.logs {
		out[i] = l.String()
	}
	return out
}

// LogSetFromList parses the persisted form.
func LogSetFromList(list []any) (*LogSet, error) {
	lines := make([]string, 0, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, &schema.FormatError{Path: fmt.Sprintf("log_set[%d]", i), Msg: "must be a string"}
		}
		lines = append(lines, s)
	}
	return parseLines(strings.Join(lines, "\n"))
}

// ParseLogCSV parses a log file. A leading header line is skipped.
func ParseLogCSV(text string) (*LogSet, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if first, rest, _ := strings.Cut(text, "\n"); strings.TrimSpace(first) == schema.LogHeader {
		text = rest
	}
	return parseLines(text)
}

func parseLines(text string) (*LogSet, error) {
	ls := NewLogSet()
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("series: read log: %w", err)
	}
	for i, rec := range records {
		l, err := ParseLog(rec)
		if err != nil {
			return nil, fmt.Errorf("series: log line %d: %w", i+1, err)
		}
		ls.logs = append(ls.logs, l)
	}
	return ls, nil
}
