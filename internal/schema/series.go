package schema

// EmptySeries returns the default series document.
func EmptySeries() map[string]any {
	return map[string]any{
		"current_section": 0.0,
		"src_dir":         "",
		"window":          []any{0.0, 0.0, 1.0, 1.0},
		"palette_traces":  map[string]any{"palette1": DefaultPaletteTraces()},
		"palette_index":   []any{"palette1", 0.0},
		"ztraces":         map[string]any{},
		"alignment":       "default",
		"object_groups":   map[string]any{},
		"ztrace_groups":   map[string]any{},
		"obj_attrs":       map[string]any{},
		"options":         DefaultOptions(),
	}
}

// DefaultOptions returns the default series options.
func DefaultOptions() map[string]any {
	return map[string]any{
		"autosave":            false,
		"3D_smoothing":        "humphrey",
		"small_dist":          0.01,
		"med_dist":            0.1,
		"big_dist":            1.0,
		"show_ztraces":        false,
		"backup_dir":          "",
		"fill_opacity":        0.2,
		"grid":                []any{1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
		"pointer":             []any{"lasso", "exc"},
		"find_zoom":           95.0,
		"autoseg":             map[string]any{},
		"show_flags":          "unresolved",
		"flag_name":           "",
		"flag_color":          []any{255.0, 0.0, 0.0},
		"flag_size":           14.0,
		"knife_del_threshold": 1.0,
		"auto_merge":          false,
	}
}

// SeriesSteps upgrade a series document.
var SeriesSteps = []Step{
	{Name: "defaults", Apply: seriesDefaults},
	{Name: "backup-dir", Apply: func(doc map[string]any) error {
		v, ok := doc["backup_dir"]
		if !ok {
			return nil
		}
		opts, err := mapAt(doc, "options")
		if err != nil {
			return err
		}
		opts["backup_dir"] = v
		delete(doc, "backup_dir")
		return nil
	}},
	{Name: "ztrace-dict", Apply: seriesZtraces},
	{Name: "palette-lists", Apply: seriesPaletteLists},
	{Name: "palette-groups", Apply: func(doc map[string]any) error {
		if _, ok := doc["current_trace"]; !ok {
			return nil
		}
		delete(doc, "current_trace")
		doc["palette_traces"] = map[string]any{"palette1": doc["palette_traces"]}
		doc["palette_index"] = []any{"palette1", 0.0}
		return nil
	}},
	{Name: "window", Apply: func(doc map[string]any) error {
		w, err := listAt(doc, "window")
		if err != nil {
			return err
		}
		if len(w) != 4 {
			return &FormatError{Path: "window", Msg: "must have 4 elements"}
		}
		for i := 2; i < 4; i++ {
			if v, _ := w[i].(float64); v == 0 {
				w[i] = 1.0
			}
		}
		return nil
	}},
	{Name: "obj-attrs", Apply: seriesObjAttrs},
	{Name: "show-flags", Apply: func(doc map[string]any) error {
		opts, err := mapAt(doc, "options")
		if err != nil {
			return err
		}
		if b, ok := opts["show_flags"].(bool); ok {
			if b {
				opts["show_flags"] = "unresolved"
			} else {
				opts["show_flags"] = "none"
			}
		}
		return nil
	}},
}

func seriesDefaults(doc map[string]any) error {
	empty := EmptySeries()
	// obj_attrs is filled by the consolidation step
	delete(empty, "obj_attrs")
	fillDefaults(doc, empty)
	opts, err := mapAt(doc, "options")
	if err != nil {
		return err
	}
	fillDefaults(opts, DefaultOptions())
	return nil
}

// seriesZtraces converts the legacy ztrace list to a name-keyed object.
func seriesZtraces(doc map[string]any) error {
	list, ok := doc["ztraces"].([]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(list))
	for _, raw := range list {
		z, ok := raw.(map[string]any)
		if !ok {
			return &FormatError{Path: "ztraces", Msg: "malformed ztrace"}
		}
		name, ok := z["name"].(string)
		if !ok {
			return &FormatError{Path: "ztraces", Msg: "ztrace without a name"}
		}
		if _, ok := z["color"]; !ok {
			z["color"] = []any{255.0, 255.0, 0.0}
		}
		delete(z, "name")
		out[name] = z
	}
	doc["ztraces"] = out
	return nil
}

func seriesPaletteLists(doc map[string]any) error {
	convert := func(path string, list []any) error {
		for i, raw := range list {
			l, ok := normalizeTraceList(raw, true)
			if !ok {
				return &FormatError{Path: path, Msg: "malformed palette trace"}
			}
			list[i] = l
		}
		return nil
	}
	switch p := doc["palette_traces"].(type) {
	case []any:
		return convert("palette_traces", p)
	case map[string]any:
		for name, raw := range p {
			list, ok := raw.([]any)
			if !ok {
				return &FormatError{Path: "palette_traces." + name, Msg: "must be a list"}
			}
			if err := convert("palette_traces."+name, list); err != nil {
				return err
			}
		}
		return nil
	default:
		return &FormatError{Path: "palette_traces", Msg: "must be a list or an object"}
	}
}

// seriesObjAttrs consolidates the legacy per-attribute maps into obj_attrs.
func seriesObjAttrs(doc map[string]any) error {
	if _, ok := doc["obj_attrs"]; ok {
		return nil
	}
	attrs := map[string]any{}
	merge := func(legacy, attr string) {
		m, ok := doc[legacy].(map[string]any)
		if !ok {
			return
		}
		for obj, v := range m {
			a, ok := attrs[obj].(map[string]any)
			if !ok {
				a = map[string]any{}
				attrs[obj] = a
			}
			a[attr] = v
		}
	}
	merge("object_3D_modes", "3D_modes")
	merge("last_user", "last_user")
	merge("curation", "curation")
	doc["obj_attrs"] = attrs
	return nil
}
