package section

import (
	"encoding/json"
	"fmt"
	"sort"

	"recon-tracer/internal/schema"
	"recon-tracer/internal/trace"
	"recon-tracer/pkg/geometry"
)

// Decode parses and upgrades a section document.
func Decode(n int, data []byte) (*Section, error) {
	doc, err := schema.Parse(data, schema.SectionSteps)
	if err != nil {
		return nil, fmt.Errorf("section %d: %w", n, err)
	}
	return FromDocument(n, doc)
}

// Encode returns the JSON document for s.
func (s *Section) Encode() ([]byte, error) {
	return json.Marshal(s.Document())
}

// FromDocument builds a section from an upgraded document.
func FromDocument(n int, doc map[string]any) (*Section, error) {
	s := New(n)
	bad := func(key, msg string) error {
		return &schema.FormatError{Path: fmt.Sprintf("section %d: %s", n, key), Msg: msg}
	}
	for k, v := range doc {
		switch k {
		case "src":
			src, ok := v.(string)
			if !ok {
				return nil, bad(k, "must be a string")
			}
			s.Src = src
		case "brightness", "contrast":
			f, ok := v.(float64)
			if !ok {
				return nil, bad(k, "must be a number")
			}
			if k == "brightness" {
				s.Brightness = int(f)
			} else {
				s.Contrast = int(f)
			}
		case "mag", "thickness":
			f, ok := v.(float64)
			if !ok || f <= 0 {
				return nil, bad(k, "must be a positive number")
			}
			if k == "mag" {
				s.Mag = f
			} else {
				s.Thickness = f
			}
		case "align_locked", "calgrid":
			b, ok := v.(bool)
			if !ok {
				return nil, bad(k, "must be a boolean")
			}
			if k == "align_locked" {
				s.AlignLocked = b
			} else {
				s.Calgrid = b
			}
		case "tforms":
			m, ok := v.(map[string]any)
			if !ok {
				return nil, bad(k, "must be an object")
			}
			s.Tforms = make(map[string]geometry.Transform, len(m))
			for name, raw := range m {
				coef, err := trace.Floats(raw)
				if err != nil {
					return nil, bad("tforms."+name, err.Error())
				}
				t, err := geometry.FromList(coef)
				if err != nil {
					return nil, bad("tforms."+name, err.Error())
				}
				s.Tforms[name] = t
			}
		case "contours":
			m, ok := v.(map[string]any)
			if !ok {
				return nil, bad(k, "must be an object")
			}
			if err := s.loadContours(m); err != nil {
				return nil, bad("contours", err.Error())
			}
		case "flags":
			list, ok := v.([]any)
			if !ok {
				return nil, bad(k, "must be a list")
			}
			for i, raw := range list {
				l, ok := raw.([]any)
				if !ok {
					return nil, bad(fmt.Sprintf("flags[%d]", i), "must be a list")
				}
				f, err := FlagFromListForm(l)
				if err != nil {
					return nil, bad(fmt.Sprintf("flags[%d]", i), err.Error())
				}
				s.Flags = append(s.Flags, f)
			}
		default:
			s.Extra[k] = v
		}
	}
	return s, nil
}

// loadContours attaches the traces of a contours object in name order, so
// IDs are stable across loads.
func (s *Section) loadContours(m map[string]any) error {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		list, ok := m[name].([]any)
		if !ok {
			return fmt.Errorf("%s: must be a list", name)
		}
		for i, tr := range list {
			l, ok := tr.([]any)
			if !ok {
				return fmt.Errorf("%s[%d]: must be a list", name, i)
			}
			t, err := trace.FromListForm(l, name)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", name, i, err)
			}
			if !t.Normalize() {
				continue
			}
			s.attach(t)
		}
	}
	return nil
}

// Document returns the persisted form of s. Empty contours are omitted.
func (s *Section) Document() map[string]any {
	doc := make(map[string]any, len(s.Extra)+10)
	for k, v := range s.Extra {
		doc[k] = v
	}
	doc["src"] = s.Src
	doc["brightness"] = s.Brightness
	doc["contrast"] = s.Contrast
	doc["mag"] = s.Mag
	doc["align_locked"] = s.AlignLocked
	doc["thickness"] = s.Thickness
	doc["calgrid"] = s.Calgrid
	doc["tforms"] = s.tformsDoc()
	doc["contours"] = s.contoursDoc()
	doc["flags"] = s.flagsDoc()
	return doc
}

func (s *Section) tformsDoc() map[string]any {
	out := make(map[string]any, len(s.Tforms))
	for name, t := range s.Tforms {
		if name == NoAlignment {
			continue
		}
		out[name] = t.List()
	}
	return out
}

func (s *Section) contoursDoc() map[string]any {
	out := make(map[string]any, len(s.Contours))
	for name, c := range s.Contours {
		if c.IsEmpty() {
			continue
		}
		list := make([]any, 0, c.Len())
		for _, t := range c.Traces() {
			list = append(list, t.ListForm(false))
		}
		out[name] = list
	}
	return out
}

func (s *Section) flagsDoc() []any {
	out := make([]any, 0, len(s.Flags))
	for _, f := range s.Flags {
		out = append(out, f.ListForm())
	}
	return out
}

// StateDoc returns the part of the section that undo and redo restore.
func (s *Section) StateDoc() map[string]any {
	return map[string]any{
		"contours": s.contoursDoc(),
		"tforms":   s.tformsDoc(),
		"flags":    s.flagsDoc(),
	}
}

// RestoreStateDoc replaces contours, transforms and flags with the content
// of a StateDoc. Contours whose content differs are marked modified and the
// selection is cleared.
func (s *Section) RestoreStateDoc(doc map[string]any) error {
	contours, ok := doc["contours"].(map[string]any)
	if !ok {
		return &schema.FormatError{Path: "state.contours", Msg: "must be an object"}
	}
	tforms, ok := doc["tforms"].(map[string]any)
	if !ok {
		return &schema.FormatError{Path: "state.tforms", Msg: "must be an object"}
	}
	flags, _ := doc["flags"].([]any)

	parsed, err := FromDocument(s.N, map[string]any{"contours": contours, "tforms": tforms, "flags": flags})
	if err != nil {
		return err
	}

	before := s.contoursDoc()
	after := parsed.contoursDoc()
	for name, old := range before {
		if !sameJSON(old, after[name]) {
			s.markModified(name)
		}
	}
	for name := range after {
		if _, ok := before[name]; !ok {
			s.markModified(name)
		}
	}

	s.Contours = make(map[string]*trace.Contour)
	s.byID = make(map[trace.ID]*trace.Trace)
	for _, t := range parsed.TracesAsList() {
		t.ID = 0
		s.attach(t)
	}
	s.Tforms = parsed.Tforms
	s.Flags = parsed.Flags
	s.DeselectAll()
	return nil
}

func sameJSON(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	x, err1 := json.Marshal(a)
	y, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && string(x) == string(y)
}
