// Package colorutil provides the RGB color type shared by traces, flags and ztraces.
package colorutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Color is an 8-bit RGB triple. It encodes to JSON as [r, g, b].
type Color struct {
	R, G, B uint8
}

// Common colors used by default palettes and flags.
var (
	Black   = Color{0, 0, 0}
	White   = Color{255, 255, 255}
	Red     = Color{255, 0, 0}
	Green   = Color{0, 255, 0}
	Blue    = Color{0, 0, 255}
	Cyan    = Color{0, 255, 255}
	Magenta = Color{255, 0, 255}
	Yellow  = Color{255, 255, 0}
	Orange  = Color{255, 128, 0}
	Purple  = Color{128, 0, 255}
)

// FromInts builds a color from integer channels, clamping each to 0-255.
func FromInts(r, g, b int) Color {
	return Color{clamp(r), clamp(g), clamp(b)}
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rrggbb (the leading # is optional).
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	if len(s) != 6 {
		return Color{}, fmt.Errorf("colorutil: invalid hex color %q", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return Color{}, fmt.Errorf("colorutil: invalid hex color %q: %w", s, err)
	}
	return Color{r, g, b}, nil
}

// Ints returns the channels as ints.
func (c Color) Ints() [3]int {
	return [3]int{int(c.R), int(c.G), int(c.B)}
}

// MarshalJSON encodes the color as [r, g, b].
func (c Color) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Ints())
}

// UnmarshalJSON decodes [r, g, b]. Channels outside 0-255 are clamped.
func (c *Color) UnmarshalJSON(data []byte) error {
	var ch []float64
	if err := json.Unmarshal(data, &ch); err != nil {
		return err
	}
	if len(ch) != 3 {
		return fmt.Errorf("colorutil: color needs 3 channels, got %d", len(ch))
	}
	*c = FromInts(int(ch[0]), int(ch[1]), int(ch[2]))
	return nil
}
