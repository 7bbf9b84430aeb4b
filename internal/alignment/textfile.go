package alignment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recon-tracer/pkg/geometry"
)

// FormatError reports a malformed line in an imported transform source.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("alignment: line %d: %s", e.Line, e.Msg)
	}
	return "alignment: " + e.Msg
}

// SectionNumberError reports a transform for a section the series lacks,
// or a transform count that does not match the series.
type SectionNumberError struct {
	Section int
	Msg     string
}

func (e *SectionNumberError) Error() string {
	if e.Msg != "" {
		return "alignment: " + e.Msg
	}
	return fmt.Sprintf("alignment: section %d is not in the series", e.Section)
}

// ErrEmptyTransformFile is returned when a transform source has no entries.
var ErrEmptyTransformFile = errors.New("alignment: no transforms found")

// ParseTransformFile reads whitespace separated "n a b c d e f" lines.
// Translations stay in pixels; callers multiply c and f by the section
// magnification. Every line is validated before anything is returned, so a
// bad line never yields a partial result. Blank lines are ignored.
func ParseTransformFile(r io.Reader, hasSection func(int) bool) (map[int]geometry.Transform, error) {
	out := make(map[int]geometry.Transform)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 7 {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("expected 7 fields, got %d", len(fields))}
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("bad section number %q", fields[0])}
		}
		if hasSection != nil && !hasSection(n) {
			return nil, &SectionNumberError{Section: n}
		}
		coef := make([]float64, 6)
		for i, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &FormatError{Line: line, Msg: fmt.Sprintf("bad coefficient %q", f)}
			}
			coef[i] = v
		}
		tf, _ := geometry.FromList(coef)
		out[n] = tf
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("alignment: read transforms: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyTransformFile
	}
	return out, nil
}

// FormatTransformFile writes transforms in the format ParseTransformFile reads,
// in ascending section order.
func FormatTransformFile(w io.Writer, order []int, tforms map[int]geometry.Transform) error {
	for _, n := range order {
		tf, ok := tforms[n]
		if !ok {
			continue
		}
		parts := make([]string, 0, 7)
		parts = append(parts, strconv.Itoa(n))
		for _, c := range tf.List() {
			parts = append(parts, strconv.FormatFloat(c, 'g', -1, 64))
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	return nil
}

// ImportedAlignmentName names an imported alignment after the source file
// stem and the import date, e.g. "tforms-24-03-09".
func ImportedAlignmentName(path string, now time.Time) string {
	base := filepath.Base(path)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return fmt.Sprintf("%s-%d-%02d-%02d", base, now.Year()%1000, int(now.Month()), now.Day())
}
