// Command aligntest estimates the linear transform between two point sets
// and prints the result with per-point residuals.
//
// The input holds one correspondence per line: "ax ay bx by". Blank lines
// and lines starting with # are skipped.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"recon-tracer/internal/alignment"
	"recon-tracer/pkg/geometry"
)

func main() {
	input := flag.String("f", "", "Correspondence file (default stdin)")
	section := flag.Int("n", 0, "Section number for the transform line")
	flag.Parse()

	r := io.Reader(os.Stdin)
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	a, b, err := readPairs(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read points: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("=== %d correspondences ===\n", len(a))

	if err := alignment.CheckNonCollinear(a); err != nil {
		fmt.Fprintf(os.Stderr, "Source points unusable: %v\n", err)
		os.Exit(1)
	}
	if err := alignment.CheckNonCollinear(b); err != nil {
		fmt.Fprintf(os.Stderr, "Target points unusable: %v\n", err)
		os.Exit(1)
	}
	t, err := alignment.EstimateLinearTform(a, b)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Estimation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n=== Transform ===\n")
	if err := alignment.FormatTransformFile(os.Stdout, []int{*section}, map[int]geometry.Transform{*section: t}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write transform: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("det=%.6f\n", t.Det())

	fmt.Printf("\n=== Residuals ===\n")
	sq := make([]float64, len(a))
	worst := 0.0
	for i := range a {
		m := t.Map(a[i])
		d := math.Hypot(m.X-b[i].X, m.Y-b[i].Y)
		sq[i] = d * d
		worst = max(worst, d)
		fmt.Printf("%3d: (%.3f, %.3f) -> (%.3f, %.3f) err=%.4f\n", i, a[i].X, a[i].Y, m.X, m.Y, d)
	}
	fmt.Printf("\nrms=%.4f max=%.4f\n", math.Sqrt(stat.Mean(sq, nil)), worst)
}

func readPairs(r io.Reader) (a, b []geometry.Point2D, err error) {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, nil, fmt.Errorf("line %d: want 4 numbers, got %d", line, len(fields))
		}
		var v [4]float64
		for i, f := range fields {
			if v[i], err = strconv.ParseFloat(f, 64); err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		a = append(a, geometry.Point2D{X: v[0], Y: v[1]})
		b = append(b, geometry.Point2D{X: v[2], Y: v[3]})
	}
	return a, b, sc.Err()
}
