package trace

import (
	"encoding/json"
	"sort"
)

// TagSet is an unordered set of tag strings. It encodes to JSON as a sorted list.
type TagSet map[string]struct{}

// NewTagSet returns a set holding tags.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, tag := range tags {
		s[tag] = struct{}{}
	}
	return s
}

// Add inserts tag.
func (s TagSet) Add(tag string) { s[tag] = struct{}{} }

// Has reports whether tag is present.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Union adds every tag of other.
func (s TagSet) Union(other TagSet) {
	for tag := range other {
		s[tag] = struct{}{}
	}
}

// Copy returns an independent copy. A nil set copies to an empty set.
func (s TagSet) Copy() TagSet {
	c := make(TagSet, len(s))
	c.Union(s)
	return c
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for tag := range s {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted list.
func (s TagSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a list of tags.
func (s *TagSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewTagSet(tags...)
	return nil
}
