package series

import (
	"fmt"
	"sort"

	"recon-tracer/internal/schema"
	"recon-tracer/internal/trace"
)

var knownKeys = map[string]bool{
	"current_section": true, "src_dir": true, "window": true, "palette_traces": true,
	"palette_index": true, "ztraces": true, "alignment": true, "object_groups": true,
	"ztrace_groups": true, "obj_attrs": true, "options": true, "log_set": true,
}

// FromDocument builds a series from an upgraded series document. The
// section set is filled in by the caller.
func FromDocument(name string, doc map[string]any) (*Series, error) {
	s := &Series{
		Name:          name,
		Sections:      make(map[int]string),
		PaletteTraces: make(map[string][]*trace.Trace),
		Ztraces:       make(map[string]*trace.Ztrace),
		ObjAttrs:      make(map[string]map[string]any),
		Options:       schema.DefaultOptions(),
		LogSet:        NewLogSet(),
		Extra:         make(map[string]any),
	}
	bad := func(key, msg string) error {
		return &schema.FormatError{Path: key, Msg: msg}
	}

	cur, ok := trace.Number(doc["current_section"])
	if !ok {
		return nil, bad("current_section", "must be a number")
	}
	s.CurrentSection = int(cur)
	if s.SrcDir, ok = doc["src_dir"].(string); !ok {
		return nil, bad("src_dir", "must be a string")
	}
	if s.Alignment, ok = doc["alignment"].(string); !ok {
		return nil, bad("alignment", "must be a string")
	}
	w, err := trace.Floats(doc["window"])
	if err != nil || len(w) != 4 {
		return nil, bad("window", "must be 4 numbers")
	}
	copy(s.Window[:], w)

	if err := s.loadPalettes(doc["palette_traces"]); err != nil {
		return nil, err
	}
	idx, ok := doc["palette_index"].([]any)
	if !ok || len(idx) != 2 {
		return nil, bad("palette_index", "must be [group, index]")
	}
	group, ok1 := idx[0].(string)
	i, ok2 := trace.Number(idx[1])
	if !ok1 || !ok2 {
		return nil, bad("palette_index", "must be [group, index]")
	}
	s.PaletteIndex = PaletteIndex{Group: group, Index: int(i)}

	zs, ok := doc["ztraces"].(map[string]any)
	if !ok {
		return nil, bad("ztraces", "must be an object")
	}
	for zname, raw := range zs {
		d, ok := raw.(map[string]any)
		if !ok {
			return nil, bad("ztraces."+zname, "must be an object")
		}
		z, err := trace.ZtraceFromDict(zname, d)
		if err != nil {
			return nil, bad("ztraces."+zname, err.Error())
		}
		s.Ztraces[zname] = z
	}

	if s.ObjectGroups, err = GroupDictFrom("object_groups", doc["object_groups"]); err != nil {
		return nil, err
	}
	if s.ZtraceGroups, err = GroupDictFrom("ztrace_groups", doc["ztrace_groups"]); err != nil {
		return nil, err
	}

	if raw, ok := doc["obj_attrs"]; ok && raw != nil {
		attrs, ok := raw.(map[string]any)
		if !ok {
			return nil, bad("obj_attrs", "must be an object")
		}
		for obj, v := range attrs {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, bad("obj_attrs."+obj, "must be an object")
			}
			s.ObjAttrs[obj] = m
		}
	}

	if opts, ok := doc["options"].(map[string]any); ok {
		for k, v := range opts {
			s.Options[k] = v
		}
	} else if doc["options"] != nil {
		return nil, bad("options", "must be an object")
	}

	if raw, ok := doc["log_set"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, bad("log_set", "must be a list")
		}
		if s.LogSet, err = LogSetFromList(list); err != nil {
			return nil, err
		}
	}

	for k, v := range doc {
		if !knownKeys[k] {
			s.Extra[k] = v
		}
	}
	return s, nil
}

func (s *Series) loadPalettes(raw any) error {
	groups, ok := raw.(map[string]any)
	if !ok {
		return &schema.FormatError{Path: "palette_traces", Msg: "must be an object"}
	}
	for name, v := range groups {
		list, ok := v.([]any)
		if !ok {
			return &schema.FormatError{Path: "palette_traces." + name, Msg: "must be a list"}
		}
		traces := make([]*trace.Trace, 0, len(list))
		for i, e := range list {
			l, ok := e.([]any)
			if !ok {
				return &schema.FormatError{Path: fmt.Sprintf("palette_traces.%s[%d]", name, i), Msg: "must be a list"}
			}
			t, err := trace.FromListForm(l, "")
			if err != nil {
				return &schema.FormatError{Path: fmt.Sprintf("palette_traces.%s[%d]", name, i), Msg: err.Error()}
			}
			traces = append(traces, t)
		}
		s.PaletteTraces[name] = traces
	}
	return nil
}

// Document returns the persisted form of the series.
func (s *Series) Document() map[string]any {
	doc := make(map[string]any, len(knownKeys)+len(s.Extra))
	for k, v := range s.Extra {
		doc[k] = v
	}
	palettes := make(map[string]any, len(s.PaletteTraces))
	for name, traces := range s.PaletteTraces {
		list := make([]any, len(traces))
		for i, t := range traces {
			list[i] = t.ListForm(true)
		}
		palettes[name] = list
	}
	zs := make(map[string]any, len(s.Ztraces))
	for name, z := range s.Ztraces {
		zs[name] = z.Dict()
	}
	attrs := make(map[string]any, len(s.ObjAttrs))
	for obj, m := range s.ObjAttrs {
		attrs[obj] = m
	}

	doc["current_section"] = s.CurrentSection
	doc["src_dir"] = s.SrcDir
	doc["window"] = s.Window[:]
	doc["palette_traces"] = palettes
	doc["palette_index"] = []any{s.PaletteIndex.Group, s.PaletteIndex.Index}
	doc["ztraces"] = zs
	doc["alignment"] = s.Alignment
	doc["object_groups"] = s.ObjectGroups.Dict()
	doc["ztrace_groups"] = s.ZtraceGroups.Dict()
	doc["obj_attrs"] = attrs
	doc["options"] = s.Options
	doc["log_set"] = s.LogSet.List()
	return doc
}

// PaletteNames returns the sorted palette group names.
func (s *Series) PaletteNames() []string {
	out := make([]string, 0, len(s.PaletteTraces))
	for name := range s.PaletteTraces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
