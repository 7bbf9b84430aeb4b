package series

import (
	"fmt"
	"sort"

	"recon-tracer/internal/schema"
)

// GroupDict maps group names to the objects (or ztraces) they contain.
type GroupDict struct {
	groups map[string]map[string]struct{}
}

// NewGroupDict returns an empty dictionary.
func NewGroupDict() *GroupDict {
	return &GroupDict{groups: make(map[string]map[string]struct{})}
}

// GroupDictFrom parses the persisted {group: [names]} form.
func GroupDictFrom(path string, raw any) (*GroupDict, error) {
	g := NewGroupDict()
	if raw == nil {
		return g, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &schema.FormatError{Path: path, Msg: "must be an object"}
	}
	for group, v := range m {
		list, ok := v.([]any)
		if !ok {
			return nil, &schema.FormatError{Path: path + "." + group, Msg: "must be a list"}
		}
		for i, e := range list {
			name, ok := e.(string)
			if !ok {
				return nil, &schema.FormatError{Path: fmt.Sprintf("%s.%s[%d]", path, group, i), Msg: "must be a string"}
			}
			g.Add(group, name)
		}
	}
	return g, nil
}

// Add puts name in group.
func (g *GroupDict) Add(group, name string) {
	set, ok := g.groups[group]
	if !ok {
		set = make(map[string]struct{})
		g.groups[group] = set
	}
	set[name] = struct{}{}
}

// Remove takes name out of group; empty groups are dropped.
func (g *GroupDict) Remove(group, name string) {
	set, ok := g.groups[group]
	if !ok {
		return
	}
	delete(set, name)
	if len(set) == 0 {
		delete(g.groups, group)
	}
}

// RemoveObject takes name out of every group.
func (g *GroupDict) RemoveObject(name string) {
	for group := range g.groups {
		g.Remove(group, name)
	}
}

// RemoveGroup deletes a group.
func (g *GroupDict) RemoveGroup(group string) {
	delete(g.groups, group)
}

// Groups returns the sorted group names.
func (g *GroupDict) Groups() []string {
	out := make([]string, 0, len(g.groups))
	for name := range g.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Members returns the sorted names in group.
func (g *GroupDict) Members(group string) []string {
	return sortedKeys(g.groups[group])
}

// ObjectGroups returns the sorted groups holding name.
func (g *GroupDict) ObjectGroups(name string) []string {
	var out []string
	for group, set := range g.groups {
		if _, ok := set[name]; ok {
			out = append(out, group)
		}
	}
	sort.Strings(out)
	return out
}

// Merge adds every membership of other.
func (g *GroupDict) Merge(other *GroupDict) {
	for group, set := range other.groups {
		for name := range set {
			g.Add(group, name)
		}
	}
}

// Dict returns the persisted form.
func (g *GroupDict) Dict() map[string]any {
	out := make(map[string]any, len(g.groups))
	for group, set := range g.groups {
		names := sortedKeys(set)
		list := make([]any, len(names))
		for i, n := range names {
			list[i] = n
		}
		out[group] = list
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
