package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return doc
}

func TestSectionUpgradeLegacy(t *testing.T) {
	doc := decode(t, `{
		"brightness": 250,
		"contrast": 3.7,
		"tforms": {"default": [1,0,0,0,1,0], "no-alignment": [1,0,0,0,1,0]},
		"contours": {
			" dend ": [{"x":[0,1,1],"y":[0,0,1],"color":[1,2,3],"closed":true,"negative":false,"hidden":false,"mode":0,"tags":[]}],
			"dend": [[[0,1],[0,1],[1,2,3],true,false,false,["none","none"],[],"history"]],
			"junk": [[[0],[0],[1,2,3],true,false,false,["none","none"],[]]]
		},
		"flags": [["f", 1, 2, [255,0,0], "c"]],
		"custom": {"keep": true}
	}`)
	if err := Upgrade(doc, SectionSteps); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	if doc["brightness"] != 0.0 || doc["contrast"] != 3.0 {
		t.Errorf("brightness/contrast = %v/%v", doc["brightness"], doc["contrast"])
	}
	if _, ok := doc["tforms"].(map[string]any)["no-alignment"]; ok {
		t.Error("no-alignment transform should be dropped")
	}
	contours := doc["contours"].(map[string]any)
	if len(contours) != 1 {
		t.Fatalf("contours = %v", contours)
	}
	dend := contours["dend"].([]any)
	if len(dend) != 2 {
		t.Fatalf("dend has %d traces", len(dend))
	}
	for _, raw := range dend {
		l := raw.([]any)
		if len(l) != 8 {
			t.Errorf("trace has %d elements", len(l))
		}
		if !reflect.DeepEqual(l[6], []any{"none", "none"}) {
			t.Errorf("fill mode = %v", l[6])
		}
	}
	flag := doc["flags"].([]any)[0].([]any)
	if len(flag) != 7 || flag[5] != false || flag[6] == "" {
		t.Errorf("flag = %v", flag)
	}
	if _, ok := doc["custom"]; !ok {
		t.Error("unknown field dropped")
	}
	if doc["mag"] != 0.00254 || doc["calgrid"] != false {
		t.Error("defaults not filled")
	}
}

func TestUpgradeIdempotent(t *testing.T) {
	doc := decode(t, `{"contours":{"a":[[[0,1,1],[0,0,1],[1,2,3],true,false,false,["none","none"],["t"]]]},"flags":[["f",1,2,[1,1,1],"c",true,"id-1"]]}`)
	if err := Upgrade(doc, SectionSteps); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	first, _ := json.Marshal(doc)
	if err := Upgrade(doc, SectionSteps); err != nil {
		t.Fatalf("second Upgrade: %v", err)
	}
	second, _ := json.Marshal(doc)
	if string(first) != string(second) {
		t.Fatalf("upgrade not idempotent:\n%s\n%s", first, second)
	}
}

func TestSectionUpgradeMalformed(t *testing.T) {
	doc := decode(t, `{"contours": {"a": 5}}`)
	err := Upgrade(doc, SectionSteps)
	var fe *FormatError
	if !errors.As(err, &fe) || fe.Path != "contours.a" {
		t.Fatalf("expected FormatError at contours.a, got %v", err)
	}
}

func TestSectionUpgradeBlankContourName(t *testing.T) {
	for _, name := range []string{"", "   "} {
		doc := map[string]any{"contours": map[string]any{
			name: []any{[]any{[]any{0.0, 1.0}, []any{0.0, 1.0}, []any{255.0, 0.0, 0.0}, false, false, false, []any{"none", "none"}, []any{}}},
		}}
		err := Upgrade(doc, SectionSteps)
		var fe *FormatError
		if !errors.As(err, &fe) || fe.Path != "contours" {
			t.Fatalf("name %q: expected FormatError at contours, got %v", name, err)
		}
	}
}

func TestSeriesUpgradeLegacy(t *testing.T) {
	doc := decode(t, `{
		"backup_dir": "/tmp/b",
		"window": [0, 0, 0, 0],
		"ztraces": [{"name": "z1", "points": [[0,0,1]]}],
		"palette_traces": [{"name":"p","x":[0,1],"y":[0,1],"color":[1,1,1],"closed":false,"negative":false,"hidden":false,"mode":[],"tags":[]}],
		"current_trace": {},
		"last_user": {"obj": "alice"},
		"object_3D_modes": {"obj": ["surface", 1]},
		"options": {"show_flags": false}
	}`)
	if err := Upgrade(doc, SeriesSteps); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	opts := doc["options"].(map[string]any)
	if opts["backup_dir"] != "/tmp/b" || opts["show_flags"] != "none" {
		t.Errorf("options = %v", opts)
	}
	if _, ok := doc["backup_dir"]; ok {
		t.Error("top-level backup_dir kept")
	}
	if w := doc["window"].([]any); w[2] != 1.0 || w[3] != 1.0 {
		t.Errorf("window = %v", w)
	}
	z := doc["ztraces"].(map[string]any)["z1"].(map[string]any)
	if !reflect.DeepEqual(z["color"], []any{255.0, 255.0, 0.0}) {
		t.Errorf("ztrace color = %v", z["color"])
	}
	pal := doc["palette_traces"].(map[string]any)["palette1"].([]any)
	if len(pal) != 1 || len(pal[0].([]any)) != 9 {
		t.Errorf("palette = %v", pal)
	}
	if !reflect.DeepEqual(doc["palette_index"], []any{"palette1", 0.0}) {
		t.Errorf("palette_index = %v", doc["palette_index"])
	}
	attrs := doc["obj_attrs"].(map[string]any)["obj"].(map[string]any)
	if attrs["last_user"] != "alice" || attrs["3D_modes"] == nil {
		t.Errorf("obj_attrs = %v", attrs)
	}
}

func TestArchiveKeyPerFile(t *testing.T) {
	doc := decode(t, `{"s.ser": {"alignment": "default"}, "s.0": {"src": "a"}, "2": {"src": "c"}}`)
	if err := Upgrade(doc, ArchiveSteps); err != nil {
		t.Fatalf("Upgrade: %v", err)
	}
	secs := doc["sections"].([]any)
	if len(secs) != 3 || secs[1] != nil {
		t.Fatalf("sections = %v", secs)
	}
	if doc["log"] != LogHeader {
		t.Errorf("log = %v", doc["log"])
	}
	if len(doc) != 3 {
		t.Errorf("stray keys: %v", doc)
	}
}

func TestDefaultPalette(t *testing.T) {
	p := DefaultPaletteTraces()
	if len(p) != 20 {
		t.Fatalf("palette has %d traces", len(p))
	}
	if p[0].([]any)[0] != "circle" || p[10].([]any)[0] != "circle" || p[9].([]any)[0] != "arrow2" {
		t.Fatal("unexpected palette order")
	}
	p[0].([]any)[0] = "changed"
	if DefaultPaletteTraces()[0].([]any)[0] != "circle" {
		t.Fatal("palette copies share state")
	}
}
