package section

import (
	"math"
	"sort"

	"recon-tracer/internal/trace"
	"recon-tracer/pkg/geometry"
)

// Flag visibility modes used by FindOptions.ShowFlags.
const (
	ShowFlagsNone       = "none"
	ShowFlagsUnresolved = "unresolved"
	ShowFlagsAll        = "all"
)

// HitKind identifies what FindClosest found.
type HitKind int

const (
	HitNone HitKind = iota
	HitTrace
	HitZtracePoint
	HitFlag
)

// Hit is the result of FindClosest.
type Hit struct {
	Kind   HitKind
	Trace  *trace.Trace
	Ztrace ZtraceRef
	Flag   *Flag
}

// FindOptions controls FindClosest. All distances are field units.
type FindOptions struct {
	Radius float64
	// InView restricts the search to these traces when non-empty.
	InView        []trace.ID
	IncludeHidden bool
	ShowZtraces   bool
	Ztraces       map[string]*trace.Ztrace
	ShowFlags     string
}

// FindClosest returns the trace, ztrace point or flag nearest to the field
// point (x, y) under the context's alignment. Trace distance is signed and
// positive inside closed traces. When nothing lies within Radius, a filled
// trace containing the point is returned instead, choosing the one whose
// boundary is nearest.
func (s *Section) FindClosest(ec EditContext, x, y float64, opts FindOptions) Hit {
	p := geometry.Point2D{X: x, Y: y}
	tform := s.Tform(ec.Alignment)

	var (
		best     Hit
		minDist  = math.Inf(1)
		interior *trace.Trace
		minInner = math.Inf(1)
	)

	traces := s.TracesAsList()
	if len(opts.InView) > 0 {
		traces = s.resolve(opts.InView)
	}
	for _, t := range traces {
		if t.Hidden && !opts.IncludeHidden {
			continue
		}
		d := geometry.SignedDistance(p, t.FieldPoints(tform), t.Closed)
		if math.Abs(d) < minDist {
			minDist = math.Abs(d)
			best = Hit{Kind: HitTrace, Trace: t}
		}
		if t.Fill.Style != "none" && d > 0 && d < minInner {
			minInner = d
			interior = t
		}
	}

	if opts.ShowZtraces {
		names := make([]string, 0, len(opts.Ztraces))
		for name := range opts.Ztraces {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			z := opts.Ztraces[name]
			for _, i := range z.PointsOn(s.N) {
				if d := tform.Map(z.Point2D(i)).Distance(p); d < minDist {
					minDist = d
					best = Hit{Kind: HitZtracePoint, Ztrace: ZtraceRef{Name: name, Index: i}}
				}
			}
		}
	}

	if opts.ShowFlags != "" && opts.ShowFlags != ShowFlagsNone {
		for _, f := range s.Flags {
			if opts.ShowFlags == ShowFlagsUnresolved && f.Resolved {
				continue
			}
			if d := tform.Map(geometry.Point2D{X: f.X, Y: f.Y}).Distance(p); d < minDist {
				minDist = d
				best = Hit{Kind: HitFlag, Flag: f}
			}
		}
	}

	if minDist > opts.Radius {
		if interior != nil {
			return Hit{Kind: HitTrace, Trace: interior}
		}
		return Hit{}
	}
	return best
}
