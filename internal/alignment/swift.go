package alignment

import (
	"encoding/json"
	"fmt"
	"io"

	"recon-tracer/pkg/geometry"
)

// swiftProject is the part of an AlignEM-SWiFT project file that carries
// per-section affine results.
type swiftProject struct {
	Stack []struct {
		Levels map[string]swiftLevel `json:"levels"`
	} `json:"stack"`
}

type swiftLevel struct {
	CAFM     [][]float64 `json:"cafm"`
	Settings *struct {
		ImgSize []float64 `json:"img_size"`
	} `json:"saved_swim_settings"`
}

// imgHeight returns the image height recorded for the level; img_size is
// stored as [height, width].
func (l swiftLevel) imgHeight() (float64, bool) {
	if l.Settings == nil || len(l.Settings.ImgSize) < 2 || l.Settings.ImgSize[0] <= 0 {
		return 0, false
	}
	return l.Settings.ImgSize[0], true
}

// ParseSwiftProject reads a SWiFT project and returns one transform per
// stack entry, with translations in full resolution pixels and the y axis
// flipped to a bottom-left origin. With calGrid set an identity transform
// is prepended for a calibration grid section 0.
func ParseSwiftProject(r io.Reader, scale int, calGrid bool) ([]geometry.Transform, error) {
	var proj swiftProject
	if err := json.NewDecoder(r).Decode(&proj); err != nil {
		return nil, &FormatError{Msg: fmt.Sprintf("decode project: %v", err)}
	}
	if len(proj.Stack) == 0 {
		return nil, &FormatError{Msg: "project has no stack entries"}
	}

	key := fmt.Sprintf("s%d", scale)
	var out []geometry.Transform
	if calGrid {
		out = append(out, geometry.Identity())
	}
	for i, entry := range proj.Stack {
		req, ok := entry.Levels[key]
		if !ok {
			return nil, &FormatError{Msg: fmt.Sprintf("stack entry %d has no scale %s", i, key)}
		}
		full, ok := entry.Levels["s1"]
		if !ok {
			return nil, &FormatError{Msg: fmt.Sprintf("stack entry %d has no scale s1", i)}
		}
		h1, ok1 := full.imgHeight()
		h, ok2 := req.imgHeight()
		if !ok1 || !ok2 {
			return nil, &FormatError{Msg: fmt.Sprintf("stack entry %d has no image size", i)}
		}
		tf, err := cafmTransform(req.CAFM)
		if err != nil {
			return nil, &FormatError{Msg: fmt.Sprintf("stack entry %d: %v", i, err)}
		}
		field, err := swiftToField(tf, h, h1/h)
		if err != nil {
			return nil, &FormatError{Msg: fmt.Sprintf("stack entry %d: %v", i, err)}
		}
		out = append(out, field)
	}
	return out, nil
}

func cafmTransform(rows [][]float64) (geometry.Transform, error) {
	if len(rows) < 2 || len(rows[0]) != 3 || len(rows[1]) != 3 {
		return geometry.Transform{}, fmt.Errorf("cafm must be a 2x3 matrix")
	}
	return geometry.Transform{
		A: rows[0][0], B: rows[0][1], C: rows[0][2],
		D: rows[1][0], E: rows[1][1], F: rows[1][2],
	}, nil
}

// swiftToField converts a SWiFT cafm (image to template, top-left origin)
// into a field transform with a bottom-left origin. dim is the image height
// at the requested scale and ratio rescales translations to scale 1.
func swiftToField(cafm geometry.Transform, dim, ratio float64) (geometry.Transform, error) {
	t, err := cafm.Inverse()
	if err != nil {
		return geometry.Transform{}, err
	}

	// translation of the bottom-left corner
	corner := geometry.Point2D{X: 0, Y: dim}
	moved := t.Map(corner)
	t.C = moved.X - corner.X
	t.F = moved.Y - corner.Y

	t.B = -t.B
	t.D = -t.D
	t.F = -t.F

	t.C *= ratio
	t.F *= ratio
	return t, nil
}
