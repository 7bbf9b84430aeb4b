// Package schema upgrades raw section, series and archive documents to the
// current layout. Documents are decoded JSON (map[string]any); every step is
// idempotent and leaves fields it does not know about untouched.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Step is one named migration.
type Step struct {
	Name  string
	Apply func(doc map[string]any) error
}

// FormatError reports a document that cannot be upgraded.
type FormatError struct {
	Path string
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return "schema: " + e.Msg
	}
	return fmt.Sprintf("schema: %s: %s", e.Path, e.Msg)
}

// Upgrade applies steps in order. The first failing step aborts the upgrade.
func Upgrade(doc map[string]any, steps []Step) error {
	if doc == nil {
		return &FormatError{Msg: "document is null"}
	}
	for _, s := range steps {
		if err := s.Apply(doc); err != nil {
			return fmt.Errorf("schema: step %s: %w", s.Name, err)
		}
	}
	return nil
}

// Parse decodes JSON data into a document and upgrades it.
func Parse(data []byte, steps []Step) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Msg: err.Error()}
	}
	if err := Upgrade(doc, steps); err != nil {
		return nil, err
	}
	return doc, nil
}

// fillDefaults copies every missing key of defaults into doc.
func fillDefaults(doc, defaults map[string]any) {
	for k, v := range defaults {
		if _, ok := doc[k]; !ok {
			doc[k] = v
		}
	}
}

func mapAt(doc map[string]any, key string) (map[string]any, error) {
	v, ok := doc[key]
	if !ok {
		return nil, &FormatError{Path: key, Msg: "missing"}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &FormatError{Path: key, Msg: "must be an object"}
	}
	return m, nil
}

func listAt(doc map[string]any, key string) ([]any, error) {
	v, ok := doc[key]
	if !ok {
		return nil, &FormatError{Path: key, Msg: "missing"}
	}
	l, ok := v.([]any)
	if !ok {
		return nil, &FormatError{Path: key, Msg: "must be a list"}
	}
	return l, nil
}

// traceDictToList converts the legacy object form of a trace to the list
// form. A non-empty name is put first (palette layout).
func traceDictToList(d map[string]any, withName bool) []any {
	var out []any
	if withName {
		out = append(out, d["name"])
	}
	return append(out, d["x"], d["y"], d["color"], d["closed"], d["negative"], d["hidden"], d["mode"], d["tags"])
}

func normalizeTraceList(raw any, withName bool) ([]any, bool) {
	var l []any
	switch v := raw.(type) {
	case map[string]any:
		l = traceDictToList(v, withName)
	case []any:
		l = v
	default:
		return nil, false
	}
	full := 8
	if withName {
		full = 9
	}
	// drop the legacy history element
	if len(l) == full+1 {
		l = l[:full]
	}
	if len(l) != full {
		return nil, false
	}
	if _, ok := l[full-2].([]any); !ok {
		l[full-2] = []any{"none", "none"}
	}
	return l, true
}

func stripName(s string) string { return strings.TrimSpace(s) }
