package section

import (
	"sort"

	"recon-tracer/internal/trace"
)

// NoAlignment is the alignment name under which every transform is identity.
const NoAlignment = "no-alignment"

// EditContext carries the caller state that edits depend on.
type EditContext struct {
	User      string
	Alignment string
}

// LogEvent is an audit entry produced by an edit. The series turns these
// into log records; the section never writes logs itself.
type LogEvent struct {
	Object     string
	Section    int
	HasSection bool
	Message    string
}

// Change describes what an edit did.
type Change struct {
	Added           []trace.ID
	Removed         []string
	Modified        []string
	FlagsChanged    bool
	ZtracesModified []string
	Events          []LogEvent
}

// Empty reports whether the edit changed nothing.
func (c *Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0 &&
		!c.FlagsChanged && len(c.ZtracesModified) == 0
}

// Merge appends o to c.
func (c *Change) Merge(o Change) {
	c.Added = append(c.Added, o.Added...)
	c.Removed = append(c.Removed, o.Removed...)
	c.Modified = append(c.Modified, o.Modified...)
	c.FlagsChanged = c.FlagsChanged || o.FlagsChanged
	c.ZtracesModified = append(c.ZtracesModified, o.ZtracesModified...)
	c.Events = append(c.Events, o.Events...)
}

// Names returns the sorted set of object names touched by the edit.
func (c *Change) Names() []string {
	set := make(map[string]struct{})
	for _, n := range c.Removed {
		set[n] = struct{}{}
	}
	for _, n := range c.Modified {
		set[n] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (c *Change) log(obj string, n int, msg string) {
	c.Events = append(c.Events, LogEvent{Object: obj, Section: n, HasSection: true, Message: msg})
}
