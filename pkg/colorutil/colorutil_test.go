package colorutil

import (
	"encoding/json"
	"testing"
)

func TestFromIntsClamps(t *testing.T) {
	if got := FromInts(-5, 128, 300); got != (Color{0, 128, 255}) {
		t.Fatalf("FromInts = %+v", got)
	}
}

func TestHex(t *testing.T) {
	if got := Orange.Hex(); got != "#ff8000" {
		t.Fatalf("Hex = %q", got)
	}
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#ff8000", Orange, false},
		{"00ffff", Cyan, false},
		{"  #FFFFFF ", White, false},
		{"#fff", Color{}, true},
		{"#gg0000", Color{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestJSON(t *testing.T) {
	data, err := json.Marshal(Purple)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[128,0,255]" {
		t.Fatalf("Marshal = %s", data)
	}

	var c Color
	if err := json.Unmarshal([]byte("[300, -1, 12.7]"), &c); err != nil {
		t.Fatal(err)
	}
	if c != (Color{255, 0, 12}) {
		t.Fatalf("Unmarshal clamps to %+v", c)
	}
	if err := json.Unmarshal([]byte("[1, 2]"), &c); err == nil {
		t.Fatal("two channels accepted")
	}
}
