package section

import (
	"encoding/json"
	"fmt"

	"recon-tracer/internal/trace"
	"recon-tracer/pkg/colorutil"

	"github.com/google/uuid"
)

// Flag is a point annotation on a section, in section-local coordinates.
type Flag struct {
	ID       string
	Title    string
	X, Y     float64
	Color    colorutil.Color
	Comment  string
	Resolved bool
}

// NewFlag creates an unresolved flag with a fresh ID.
func NewFlag(title string, x, y float64, color colorutil.Color, comment string) *Flag {
	return &Flag{
		ID:      uuid.NewString(),
		Title:   title,
		X:       x,
		Y:       y,
		Color:   color,
		Comment: comment,
	}
}

// Copy returns an independent copy with the same ID.
func (f *Flag) Copy() *Flag {
	c := *f
	return &c
}

// ListForm returns [title, x, y, [r,g,b], comment, resolved, id].
func (f *Flag) ListForm() []any {
	return []any{f.Title, f.X, f.Y, f.Color.Ints(), f.Comment, f.Resolved, f.ID}
}

// FlagFromListForm parses the persisted list. Legacy lists without the
// resolved state or the ID get an unresolved state and a fresh ID.
func FlagFromListForm(raw []any) (*Flag, error) {
	if len(raw) < 5 {
		return nil, fmt.Errorf("section: flag needs at least 5 elements, got %d", len(raw))
	}
	f := &Flag{}
	var ok bool
	if f.Title, ok = raw[0].(string); !ok {
		return nil, fmt.Errorf("section: flag title must be a string")
	}
	if f.X, ok = raw[1].(float64); !ok {
		return nil, fmt.Errorf("section: flag %q: x must be a number", f.Title)
	}
	if f.Y, ok = raw[2].(float64); !ok {
		return nil, fmt.Errorf("section: flag %q: y must be a number", f.Title)
	}
	col, err := trace.ColorOf(raw[3])
	if err != nil {
		return nil, fmt.Errorf("section: flag %q: color: %w", f.Title, err)
	}
	f.Color = col
	switch c := raw[4].(type) {
	case string:
		f.Comment = c
	case nil:
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("section: flag %q: comment: %w", f.Title, err)
		}
		f.Comment = string(data)
	}
	if len(raw) > 5 {
		f.Resolved, _ = raw[5].(bool)
	}
	if len(raw) > 6 {
		f.ID, _ = raw[6].(string)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return f, nil
}
