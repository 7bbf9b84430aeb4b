package schema

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// EmptySection returns the default section document.
func EmptySection() map[string]any {
	return map[string]any{
		"src":          "",
		"brightness":   0.0,
		"contrast":     0.0,
		"mag":          0.00254,
		"align_locked": true,
		"thickness":    0.05,
		"tforms":       map[string]any{"default": []any{1.0, 0.0, 0.0, 0.0, 1.0, 0.0}},
		"contours":     map[string]any{},
		"flags":        []any{},
		"calgrid":      false,
	}
}

// SectionSteps upgrade a section document.
var SectionSteps = []Step{
	{Name: "defaults", Apply: func(doc map[string]any) error {
		fillDefaults(doc, EmptySection())
		return nil
	}},
	{Name: "brightness-contrast", Apply: sectionBrightnessContrast},
	{Name: "trace-lists", Apply: sectionTraceLists},
	{Name: "contour-names", Apply: sectionContourNames},
	{Name: "drop-no-alignment", Apply: func(doc map[string]any) error {
		tforms, err := mapAt(doc, "tforms")
		if err != nil {
			return err
		}
		delete(tforms, "no-alignment")
		return nil
	}},
	{Name: "flags", Apply: sectionFlags},
}

func sectionBrightnessContrast(doc map[string]any) error {
	b, ok := doc["brightness"].(float64)
	if !ok {
		return &FormatError{Path: "brightness", Msg: "must be a number"}
	}
	if math.Abs(b) > 100 {
		doc["brightness"] = 0.0
	}
	c, ok := doc["contrast"].(float64)
	if !ok {
		return &FormatError{Path: "contrast", Msg: "must be a number"}
	}
	doc["contrast"] = math.Trunc(c)
	return nil
}

// sectionTraceLists converts traces to list form and drops traces with
// fewer than two points and the contours they leave empty.
func sectionTraceLists(doc map[string]any) error {
	contours, err := mapAt(doc, "contours")
	if err != nil {
		return err
	}
	for name, raw := range contours {
		traces, ok := raw.([]any)
		if !ok {
			return &FormatError{Path: "contours." + name, Msg: "must be a list"}
		}
		kept := make([]any, 0, len(traces))
		for _, t := range traces {
			l, ok := normalizeTraceList(t, false)
			if !ok {
				return &FormatError{Path: "contours." + name, Msg: "malformed trace"}
			}
			if xs, _ := l[0].([]any); len(xs) < 2 {
				continue
			}
			kept = append(kept, l)
		}
		if len(kept) == 0 {
			delete(contours, name)
			continue
		}
		contours[name] = kept
	}
	return nil
}

func sectionContourNames(doc map[string]any) error {
	contours, err := mapAt(doc, "contours")
	if err != nil {
		return err
	}
	for name, raw := range contours {
		s := stripName(name)
		if s == "" {
			return &FormatError{Path: "contours", Msg: fmt.Sprintf("blank contour name %q", name)}
		}
		if s == name {
			continue
		}
		existing, _ := contours[s].([]any)
		moved, _ := raw.([]any)
		contours[s] = append(existing, moved...)
		delete(contours, name)
	}
	return nil
}

// sectionFlags adds the resolved state and an ID to legacy flags.
func sectionFlags(doc map[string]any) error {
	flags, err := listAt(doc, "flags")
	if err != nil {
		return err
	}
	for i, raw := range flags {
		f, ok := raw.([]any)
		if !ok || len(f) < 5 {
			return &FormatError{Path: "flags", Msg: "malformed flag"}
		}
		if len(f) == 5 {
			f = append(f, false)
		}
		if len(f) == 6 {
			f = append(f, uuid.NewString())
		}
		flags[i] = f
	}
	return nil
}
