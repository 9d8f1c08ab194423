package marks

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"trimborder/engine/content"
	"trimborder/engine/geometry"
	"trimborder/types"
)

var ErrUnreadableContent = errors.New("unreadable content")

// DetectError wraps a content stream failure. errors.Is matches
// ErrUnreadableContent and the underlying cause.
type DetectError struct {
	Err error
}

func (e *DetectError) Error() string {
	return fmt.Sprintf("detect: %s: %v", ErrUnreadableContent, e.Err)
}

func (e *DetectError) Unwrap() []error { return []error{ErrUnreadableContent, e.Err} }

// Segment is a straight stroked line in page space. Prim and Sub locate it
// in the content: the primitive id and the index of its MoveTo in the path.
type Segment struct {
	Prim  int
	Sub   int
	A, B  geometry.Point
	Width float64
}

func (s Segment) Length() float64 { return math.Hypot(s.B.X-s.A.X, s.B.Y-s.A.Y) }

func (s Segment) Bounds() geometry.Rect { return geometry.RectFromPoints(s.A, s.B) }

// Angle is the direction in degrees, folded into [0, 180).
func (s Segment) Angle() float64 {
	a := math.Atan2(s.B.Y-s.A.Y, s.B.X-s.A.X) * 180 / math.Pi
	for a < 0 {
		a += 180
	}
	for a >= 180 {
		a -= 180
	}
	return a
}

func (s Segment) Translate(d geometry.Point) Segment {
	s.A = s.A.Add(d)
	s.B = s.B.Add(d)
	return s
}

// Group is the mark pair at one trim corner. Horizontal lies on the
// extension of the corner's horizontal trim edge, Vertical on the vertical
// one. OffsetX and OffsetY are the gaps between the trim corner and the near
// end of each segment. Companions are further strokes lying on the same
// lines, such as a white underlay drawn beneath the visible mark.
type Group struct {
	Corner     geometry.Corner
	Found      bool
	Horizontal Segment
	Vertical   Segment
	Companions []Segment
	OffsetX    float64
	OffsetY    float64
	Confident  bool
}

// Segments returns the pair followed by its companions.
func (g Group) Segments() []Segment {
	return append([]Segment{g.Horizontal, g.Vertical}, g.Companions...)
}

// Offset is the mean of both axis offsets.
func (g Group) Offset() float64 { return (g.OffsetX + g.OffsetY) / 2 }

// Set holds one group per corner, indexed by geometry.Corner.
type Set struct {
	Groups    [4]Group
	Confident bool
	Spread    float64
}

func (s Set) Count() int {
	n := 0
	for _, g := range s.Groups {
		if g.Found {
			n++
		}
	}
	return n
}

func (s Set) Empty() bool { return s.Count() == 0 }

// Translate moves every found group by the delta of its corner.
func (s Set) Translate(d [4]geometry.Point) Set {
	for i, g := range s.Groups {
		if !g.Found {
			continue
		}
		g.Horizontal = g.Horizontal.Translate(d[i])
		g.Vertical = g.Vertical.Translate(d[i])
		var moved []Segment
		for _, c := range g.Companions {
			moved = append(moved, c.Translate(d[i]))
		}
		g.Companions = moved
		s.Groups[i] = g
	}
	return s
}

// Measure recomputes the offsets of every found group against trim.
func (s Set) Measure(trim geometry.Rect) Set {
	for i, g := range s.Groups {
		if !g.Found {
			continue
		}
		g.OffsetX, g.OffsetY = offsets(g.Corner, g.Horizontal, g.Vertical, trim)
		s.Groups[i] = g
	}
	return s
}

func offsets(c geometry.Corner, h, v Segment, trim geometry.Rect) (float64, float64) {
	p := trim.CornerPoint(c)
	o := c.Outward()
	ox := math.Min((h.A.X-p.X)*o.X, (h.B.X-p.X)*o.X)
	oy := math.Min((v.A.Y-p.Y)*o.Y, (v.B.Y-p.Y)*o.Y)
	return ox, oy
}

// Segments extracts the straight m/l runs of a stroked path in page space.
func Segments(p *content.Primitive) []Segment {
	var out []Segment
	path := p.PagePath()
	for i := 0; i+1 < len(path); i++ {
		if path[i].Op != content.MoveTo || path[i+1].Op != content.LineTo {
			continue
		}
		if i+2 < len(path) && (path[i+2].Op == content.LineTo || path[i+2].Op == content.CurveTo) {
			continue
		}
		out = append(out, Segment{
			Prim:  p.ID,
			Sub:   i,
			A:     path[i].Pts[0],
			B:     path[i+1].Pts[0],
			Width: p.LineWidth,
		})
	}
	return out
}

// DetectPage parses a content stream and detects its marks. Parse and
// interpretation failures are reported as *DetectError.
func DetectPage(data []byte, images map[string]content.ImageInfo, trim geometry.Rect, cfg types.DetectConfig) (Set, []content.Primitive, error) {
	ops, err := content.Parse(data)
	if err != nil {
		return Set{}, nil, &DetectError{Err: err}
	}
	prims, err := content.Interpret(ops, images)
	if err != nil {
		return Set{}, nil, &DetectError{Err: err}
	}
	return Detect(prims, trim, cfg), prims, nil
}

type candidate struct {
	seg    Segment
	offset float64
}

// Detect classifies thin strokes around each trim corner into mark groups.
// A corner without a valid pair yields an empty group.
func Detect(prims []content.Primitive, trim geometry.Rect, cfg types.DetectConfig) Set {
	var segs []Segment
	for i := range prims {
		if !prims[i].Thin(cfg.MaxStrokeWidth) {
			continue
		}
		segs = append(segs, Segments(&prims[i])...)
	}

	var set Set
	for _, c := range geometry.Corners() {
		set.Groups[c] = detectCorner(c, segs, trim, cfg)
	}
	set.rate(cfg.OffsetTolerance)
	return set
}

func detectCorner(c geometry.Corner, segs []Segment, trim geometry.Rect, cfg types.DetectConfig) Group {
	p := trim.CornerPoint(c)
	o := c.Outward()
	w := cfg.SearchBand
	search := geometry.NewRect(p.X-w, p.Y-w, p.X+w, p.Y+w)
	const eps = 0.01

	var hs, vs []candidate
	for _, s := range segs {
		b := s.Bounds()
		if !geometry.Contains(search, b, eps) || s.Length() <= eps {
			continue
		}
		if _, inside := geometry.Intersect(trim, b); inside {
			continue
		}
		a := s.Angle()
		switch {
		case math.Min(a, 180-a) <= cfg.AngleTolerance:
			// Horizontal: outside across the vertical trim edge, on the line
			// of the horizontal one.
			gap := math.Min((s.A.X-p.X)*o.X, (s.B.X-p.X)*o.X)
			if gap < -eps || math.Abs((s.A.Y+s.B.Y)/2-p.Y) > cfg.AlignTolerance {
				continue
			}
			hs = append(hs, candidate{seg: s, offset: gap})
		case math.Abs(a-90) <= cfg.AngleTolerance:
			gap := math.Min((s.A.Y-p.Y)*o.Y, (s.B.Y-p.Y)*o.Y)
			if gap < -eps || math.Abs((s.A.X+s.B.X)/2-p.X) > cfg.AlignTolerance {
				continue
			}
			vs = append(vs, candidate{seg: s, offset: gap})
		}
	}

	g := Group{Corner: c}
	best := math.Inf(1)
	for _, h := range hs {
		for _, v := range vs {
			if math.Abs(math.Abs(h.seg.Angle()-v.seg.Angle())-90) > cfg.AngleTolerance {
				continue
			}
			lh, lv := h.seg.Length(), v.seg.Length()
			diff := math.Abs(lh-lv) / math.Max(lh, lv)
			if diff > cfg.LengthTolerance {
				continue
			}
			score := diff + math.Abs(h.offset-v.offset)/w
			if score < best {
				best = score
				g = Group{
					Corner:     c,
					Found:      true,
					Horizontal: h.seg,
					Vertical:   v.seg,
					OffsetX:    h.offset,
					OffsetY:    v.offset,
				}
			}
		}
	}
	if g.Found {
		g.Companions = companions(g.Horizontal, hs, true)
		g.Companions = append(g.Companions, companions(g.Vertical, vs, false)...)
	}
	return g
}

// companionTolerance is how far, in points, a stroke may sit off the line
// of a mark and still count as drawn on it.
const companionTolerance = 0.5

// companions returns the candidates other than seg that lie on its line
// and overlap its extent.
func companions(seg Segment, cands []candidate, horizontal bool) []Segment {
	axis := func(s Segment) (float64, float64, float64) {
		if horizontal {
			return (s.A.Y + s.B.Y) / 2, math.Min(s.A.X, s.B.X), math.Max(s.A.X, s.B.X)
		}
		return (s.A.X + s.B.X) / 2, math.Min(s.A.Y, s.B.Y), math.Max(s.A.Y, s.B.Y)
	}
	line, lo, hi := axis(seg)
	var out []Segment
	for _, c := range cands {
		if c.seg.Prim == seg.Prim && c.seg.Sub == seg.Sub {
			continue
		}
		l, a, b := axis(c.seg)
		if math.Abs(l-line) > companionTolerance || b < lo || a > hi {
			continue
		}
		out = append(out, c.seg)
	}
	return out
}

// rate flags groups whose offset strays from the median of all groups.
func (s *Set) rate(tol float64) {
	var offs []float64
	for _, g := range s.Groups {
		if g.Found {
			offs = append(offs, g.Offset())
		}
	}
	s.Confident = true
	s.Spread = 0
	if len(offs) == 0 {
		return
	}
	sort.Float64s(offs)
	median := offs[len(offs)/2]
	if len(offs)%2 == 0 {
		median = (offs[len(offs)/2-1] + offs[len(offs)/2]) / 2
	}
	s.Spread = offs[len(offs)-1] - offs[0]
	for i, g := range s.Groups {
		if !g.Found {
			continue
		}
		g.Confident = math.Abs(g.Offset()-median) <= tol
		if !g.Confident || s.Spread > tol {
			s.Confident = false
		}
		s.Groups[i] = g
	}
}
