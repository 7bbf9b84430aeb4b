// Package imagesrc looks up section image sizes without decoding pixel data.
package imagesrc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ErrNoResolution is returned by Mag when a TIFF carries no usable
// resolution tags.
var ErrNoResolution = errors.New("no resolution tags")

// Size is an image size in pixels.
type Size struct {
	Width, Height int
}

// Dimensions returns the pixel size of the image at path.
func Dimensions(path string) (Size, error) {
	f, err := os.Open(path)
	if err != nil {
		return Size{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, nil
}

// Source resolves section image names against a directory and caches the
// sizes it has seen.
type Source struct {
	dir   string
	mu    sync.Mutex
	cache map[string]Size
}

// New returns a Source for images below dir.
func New(dir string) *Source {
	return &Source{dir: dir, cache: make(map[string]Size)}
}

// Path returns the file for a section's src.
func (s *Source) Path(src string) string {
	if filepath.IsAbs(src) {
		return src
	}
	return filepath.Join(s.dir, src)
}

// Dimensions returns the size of the image named src.
func (s *Source) Dimensions(src string) (Size, error) {
	path := s.Path(src)
	s.mu.Lock()
	sz, ok := s.cache[path]
	s.mu.Unlock()
	if ok {
		return sz, nil
	}
	sz, err := Dimensions(path)
	if err != nil {
		return Size{}, err
	}
	s.mu.Lock()
	s.cache[path] = sz
	s.mu.Unlock()
	return sz, nil
}

// SupportedFormats returns the image extensions Dimensions can read.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".bmp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	return slices.Contains(SupportedFormats(), strings.ToLower(filepath.Ext(path)))
}

// TIFF tag numbers and field types read by Mag.
const (
	tagXResolution    = 282
	tagYResolution    = 283
	tagResolutionUnit = 296
	typeShort         = 3
	typeRational      = 5
	unitInch          = 2
	unitCentimeter    = 3
)

// Mag returns the pixel size in microns recorded in a TIFF's resolution
// tags.
func Mag(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return tiffMag(f)
}

func tiffMag(r io.ReaderAt) (float64, error) {
	header := make([]byte, 8)
	if _, err := r.ReadAt(header, 0); err != nil {
		return 0, fmt.Errorf("read tiff header: %w", err)
	}
	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, errors.New("not a TIFF file")
	}

	ifd := int64(order.Uint32(header[4:8]))
	count := make([]byte, 2)
	if _, err := r.ReadAt(count, ifd); err != nil {
		return 0, fmt.Errorf("read ifd: %w", err)
	}
	var xRes, yRes float64
	unit := uint16(unitInch)
	entry := make([]byte, 12)
	for i := range int64(order.Uint16(count)) {
		if _, err := r.ReadAt(entry, ifd+2+12*i); err != nil {
			return 0, fmt.Errorf("read ifd entry: %w", err)
		}
		tag, typ := order.Uint16(entry[0:2]), order.Uint16(entry[2:4])
		switch {
		case tag == tagXResolution && typ == typeRational:
			xRes = rational(r, int64(order.Uint32(entry[8:12])), order)
		case tag == tagYResolution && typ == typeRational:
			yRes = rational(r, int64(order.Uint32(entry[8:12])), order)
		case tag == tagResolutionUnit && typ == typeShort:
			unit = order.Uint16(entry[8:10])
		}
	}

	res := xRes
	if res == 0 {
		res = yRes
	}
	if res == 0 {
		return 0, ErrNoResolution
	}
	switch unit {
	case unitInch:
		return 25400 / res, nil
	case unitCentimeter:
		return 10000 / res, nil
	default:
		return 0, ErrNoResolution
	}
}

func rational(r io.ReaderAt, off int64, order binary.ByteOrder) float64 {
	b := make([]byte, 8)
	if _, err := r.ReadAt(b, off); err != nil {
		return 0
	}
	num, den := order.Uint32(b[0:4]), order.Uint32(b[4:8])
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
