package stretch

import (
	"fmt"
	"math"

	"trimborder/engine/content"
	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/types"
)

// FillKind says how a border region is painted.
type FillKind int

const (
	// FillSolid paints the region with Color.
	FillSolid FillKind = iota
	// FillStretch redraws Source through Map, which scales an inner strip
	// of the trim area onto the region.
	FillStretch
	// FillReflect redraws Source through Map, a reflection across the old
	// trim edge.
	FillReflect
	// FillCovered marks a region already painted by extended or bleeding
	// vector content.
	FillCovered
)

var fillNames = [...]string{"solid", "stretch", "reflect", "covered"}

func (k FillKind) String() string {
	if k < FillSolid || k > FillCovered {
		return "fill?"
	}
	return fillNames[k]
}

// Fill is one drawing step clipped to a band or patch. Map is applied in
// page space on top of the source primitive's CTM.
type Fill struct {
	Kind   FillKind
	Color  content.Color
	Source int
	Map    geometry.Matrix
}

type Band struct {
	Edge     geometry.Edge
	Region   geometry.Rect
	Fills    []Fill
	Sample   content.Color
	Degraded bool
}

type Patch struct {
	Corner geometry.Corner
	Region geometry.Rect
	Fills  []Fill
}

// Extension replaces the path of a primitive whose boundary points were
// moved onto the new trim. Path is in the primitive's user space.
type Extension struct {
	Prim    int
	Path    []content.Segment
	Corners [4]bool
}

const WarnNoBoundaryContent = "NoBoundaryContent"

// Warning is a non-fatal condition found while planning the border.
type Warning struct {
	Code string
	Edge geometry.Edge
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s edge has no boundary content, filled solid", w.Code, w.Edge)
}

type Plan struct {
	Mode       types.StretchMode
	Old, New   geometry.Rect
	Bands      [4]Band
	Patches    [4]Patch
	Extensions map[int]Extension
	Warnings   []Warning
}

type stretcher struct {
	prims  []content.Primitive
	inner  geometry.Rect
	outer  geometry.Rect
	width  geometry.Insets
	spec   types.BorderSpec
	border content.Color
	marks  map[int]bool
	ext    map[int]*extension
	plan   *Plan
}

type extension struct {
	delta []geometry.Point // per point, flattened over segments
	moved []uint8          // edge bits per point
}

// Stretch plans the fill of the ring between oldTrim and newTrim.
func Stretch(prims []content.Primitive, oldTrim, newTrim geometry.Rect, set marks.Set, spec types.BorderSpec) (*Plan, error) {
	if err := oldTrim.Validate(); err != nil {
		return nil, err
	}
	if !geometry.Contains(newTrim, oldTrim, 0) {
		return nil, &geometry.Error{Box: "TrimBox", Rect: newTrim, Msg: "does not contain the original trim"}
	}
	border, err := content.ParseHex(spec.BorderColor)
	if err != nil {
		return nil, fmt.Errorf("stretch: border color: %w", err)
	}

	s := &stretcher{
		prims:  prims,
		inner:  oldTrim,
		outer:  newTrim,
		width:  geometry.Margins(newTrim, oldTrim),
		spec:   spec,
		border: border,
		marks:  map[int]bool{},
		ext:    map[int]*extension{},
		plan: &Plan{
			Mode:       spec.StretchMode,
			Old:        oldTrim,
			New:        newTrim,
			Extensions: map[int]Extension{},
		},
	}
	for _, g := range set.Groups {
		if !g.Found {
			continue
		}
		for _, seg := range g.Segments() {
			s.marks[seg.Prim] = true
		}
	}

	for _, e := range geometry.Edges() {
		s.band(e)
	}
	s.finishExtensions()
	for _, c := range geometry.Corners() {
		s.patch(c)
	}
	return s.plan, nil
}

// visible returns the painted page area of a primitive.
func (s *stretcher) visible(p *content.Primitive) (geometry.Rect, bool) {
	if p.Kind == content.KindClip || p.Kind == content.KindText || s.marks[p.ID] {
		return geometry.Rect{}, false
	}
	b := p.Bounds
	if p.Kind == content.KindShading && b == (geometry.Rect{}) {
		b = s.outer
	}
	if p.Stroke {
		h := p.LineWidth / 2
		b = geometry.NewRect(b.LLX-h, b.LLY-h, b.URX+h, b.URY+h)
	}
	if p.Clipped {
		var ok bool
		if b, ok = geometry.Intersect(b, p.ClipBox); !ok {
			return geometry.Rect{}, false
		}
	}
	return b, true
}

// inside reports whether b has area strictly within the old trim.
func (s *stretcher) inside(b geometry.Rect) bool {
	_, ok := geometry.Intersect(b, s.inner)
	return ok
}

// touching returns the visible primitives reaching into region, in stream order.
func (s *stretcher) touching(region geometry.Rect) []int {
	var ids []int
	for i := range s.prims {
		b, ok := s.visible(&s.prims[i])
		if !ok || !s.inside(b) || !geometry.Overlaps(b, region) {
			continue
		}
		ids = append(ids, i)
	}
	return ids
}

func (s *stretcher) band(e geometry.Edge) {
	b := &s.plan.Bands[e]
	b.Edge = e
	b.Region = geometry.BandRect(s.inner, s.outer, e)
	if s.width.Side(e) <= 0 {
		return
	}

	near := s.touching(geometry.InnerStrip(s.inner, e, s.spec.SampleDepth))
	sample, known := s.sample(near, e)
	b.Sample = sample

	var ids []int
	switch s.spec.StretchMode {
	case types.StretchMirror:
		ids = s.touching(geometry.InnerStrip(s.inner, e, s.width.Side(e)))
	default:
		ids = near
	}
	if len(ids) == 0 {
		s.degrade(b)
		return
	}
	if s.spec.StretchMode != types.StretchSolidFill {
		s.extendClips(e)
	}

	switch s.spec.StretchMode {
	case types.StretchSolidFill:
		c := s.border
		if known {
			c = sample
		}
		b.Fills = append(b.Fills, Fill{Kind: FillSolid, Color: c})
	case types.StretchMirror:
		m := geometry.Reflect(s.inner, e)
		for _, id := range ids {
			b.Fills = append(b.Fills, Fill{Kind: FillReflect, Source: id, Map: m})
		}
	default:
		s.clampBand(b, ids)
	}
	if !known {
		b.Sample = s.border
	}
}

func (s *stretcher) degrade(b *Band) {
	b.Degraded = true
	b.Sample = s.border
	b.Fills = []Fill{{Kind: FillSolid, Color: s.border}}
	s.plan.Warnings = append(s.plan.Warnings, Warning{Code: WarnNoBoundaryContent, Edge: b.Edge})
}

// extendClips pushes clip paths on the old trim edge out to the new one,
// otherwise copies painted into the band inherit a clip that hides them.
func (s *stretcher) extendClips(e geometry.Edge) {
	for i := range s.prims {
		if p := &s.prims[i]; p.Kind == content.KindClip {
			s.extend(p, e)
		}
	}
}

func (s *stretcher) clampBand(b *Band, ids []int) {
	e := b.Edge
	covered := false
	for _, id := range ids {
		p := &s.prims[id]
		if p.Kind == content.KindPath {
			if s.extend(p, e) {
				covered = true
				continue
			}
			if vis, _ := s.visible(p); s.reaches(vis, e) {
				covered = true
				continue
			}
		}
		b.Fills = append(b.Fills, s.stripFill(p, e, b.Region))
	}
	if covered && len(b.Fills) == 0 {
		b.Fills = []Fill{{Kind: FillCovered}}
	}
}

// reaches reports whether vis already extends over the new band on side e.
func (s *stretcher) reaches(vis geometry.Rect, e geometry.Edge) bool {
	o := e.Outward()
	return (vis.EdgeCoord(e)-s.outer.EdgeCoord(e))*(o.X+o.Y) >= 0
}

func (s *stretcher) onEdge(pt geometry.Point, e geometry.Edge) bool {
	eps := s.spec.EdgeEpsilon
	c := s.inner.EdgeCoord(e)
	if e.Horizontal() {
		return math.Abs(pt.Y-c) <= eps && pt.X >= s.inner.LLX-eps && pt.X <= s.inner.URX+eps
	}
	return math.Abs(pt.X-c) <= eps && pt.Y >= s.inner.LLY-eps && pt.Y <= s.inner.URY+eps
}

// extend moves the points of p lying on the old trim edge e outward by the
// border width. It reports whether any point moved.
func (s *stretcher) extend(p *content.Primitive, e geometry.Edge) bool {
	if _, err := p.CTM.Inverse(); err != nil {
		return false
	}
	page := p.PagePath()
	x := s.ext[p.ID]
	n := 0
	for _, seg := range page {
		n += len(seg.Pts)
	}
	o := e.Outward()
	w := s.width.Side(e)
	moved := false
	k := 0
	for _, seg := range page {
		for _, pt := range seg.Pts {
			if s.onEdge(pt, e) {
				if x == nil {
					x = &extension{delta: make([]geometry.Point, n), moved: make([]uint8, n)}
					s.ext[p.ID] = x
				}
				x.delta[k] = x.delta[k].Add(geometry.Point{X: o.X * w, Y: o.Y * w})
				x.moved[k] |= 1 << uint(e)
				moved = true
			}
			k++
		}
	}
	return moved
}

func (s *stretcher) finishExtensions() {
	for id, x := range s.ext {
		p := &s.prims[id]
		inv, _ := p.CTM.Inverse()
		out := Extension{Prim: id, Path: make([]content.Segment, len(p.Path))}
		k := 0
		for i, seg := range p.Path {
			pts := make([]geometry.Point, len(seg.Pts))
			for j, pt := range seg.Pts {
				pts[j] = pt.Add(inv.ApplyVector(x.delta[k]))
				k++
			}
			out.Path[i] = content.Segment{Op: seg.Op, Pts: pts}
		}
		for _, c := range geometry.Corners() {
			v, h := c.Edges()
			want := uint8(1<<uint(v) | 1<<uint(h))
			for _, m := range x.moved {
				if m&want == want {
					out.Corners[c] = true
					break
				}
			}
		}
		s.plan.Extensions[id] = out
	}
}

// pixel returns the page-space size of one image sample across edge e.
func pixel(p *content.Primitive, horizontal bool) (float64, bool) {
	if p.Kind != content.KindImage || p.Image == nil || p.Image.Width <= 0 || p.Image.Height <= 0 {
		return 0, false
	}
	ux := p.CTM.ApplyVector(geometry.Point{X: 1})
	uy := p.CTM.ApplyVector(geometry.Point{Y: 1})
	ax, ay := math.Abs(ux.X), math.Abs(uy.X)
	if horizontal {
		ax, ay = math.Abs(ux.Y), math.Abs(uy.Y)
	}
	if ax >= ay {
		return ax / float64(p.Image.Width), ax > 0
	}
	return ay / float64(p.Image.Height), ay > 0
}

func (s *stretcher) stripDepth(p *content.Primitive, horizontal bool) float64 {
	if d, ok := pixel(p, horizontal); ok {
		return math.Min(d, s.spec.SourceStrip)
	}
	return s.spec.SourceStrip
}

func (s *stretcher) stripFill(p *content.Primitive, e geometry.Edge, region geometry.Rect) Fill {
	strip := geometry.InnerStrip(s.inner, e, s.stripDepth(p, e.Horizontal()))
	return Fill{Kind: FillStretch, Source: p.ID, Map: geometry.MapRect(strip, region)}
}

// sample averages the colours found along edge e.
func (s *stretcher) sample(ids []int, e geometry.Edge) (content.Color, bool) {
	var cs []content.Color
	for _, id := range ids {
		p := &s.prims[id]
		switch p.Kind {
		case content.KindPath:
			if p.Fill {
				cs = append(cs, p.FillColor)
			}
			if p.Stroke {
				cs = append(cs, p.StrokeColor)
			}
		case content.KindImage:
			if p.Image != nil && p.Image.Sampler != nil {
				if c, ok := p.Image.Sampler.EdgeColor(imageEdge(p, e)); ok {
					cs = append(cs, c)
				}
			}
		}
	}
	return content.Average(cs...)
}

var unitEdges = map[geometry.Edge]geometry.Point{
	geometry.Left:   {X: 0, Y: 0.5},
	geometry.Bottom: {X: 0.5, Y: 0},
	geometry.Right:  {X: 1, Y: 0.5},
	geometry.Top:    {X: 0.5, Y: 1},
}

// imageEdge finds the side of the image unit square that faces page edge e.
func imageEdge(p *content.Primitive, e geometry.Edge) geometry.Edge {
	o := e.Outward()
	best, bestDot := e, math.Inf(-1)
	for _, u := range geometry.Edges() {
		q := p.CTM.Apply(unitEdges[u])
		if d := q.X*o.X + q.Y*o.Y; d > bestDot {
			best, bestDot = u, d
		}
	}
	return best
}

func imageCorner(p *content.Primitive, c geometry.Corner) geometry.Corner {
	o := c.Outward()
	best, bestDot := c, math.Inf(-1)
	for _, u := range geometry.Corners() {
		q := p.CTM.Apply(geometry.NewRect(0, 0, 1, 1).CornerPoint(u))
		if d := q.X*o.X + q.Y*o.Y; d > bestDot {
			best, bestDot = u, d
		}
	}
	return best
}

func (s *stretcher) patch(c geometry.Corner) {
	pt := &s.plan.Patches[c]
	pt.Corner = c
	pt.Region = geometry.PatchRect(s.inner, s.outer, c)
	if pt.Region.Empty() {
		return
	}
	v, h := c.Edges()

	if s.spec.CornerFill == types.CornerAverage {
		col, ok := content.Average(s.plan.Bands[v].Sample, s.plan.Bands[h].Sample)
		if !ok {
			col = s.border
		}
		pt.Fills = []Fill{{Kind: FillSolid, Color: col}}
		return
	}

	ids := s.touching(geometry.InnerSquare(s.inner, c, s.spec.SampleDepth))
	if len(ids) == 0 {
		pt.Fills = []Fill{{Kind: FillSolid, Color: s.border}}
		return
	}
	p := &s.prims[ids[len(ids)-1]]
	if x, ok := s.plan.Extensions[p.ID]; ok && x.Corners[c] {
		pt.Fills = []Fill{{Kind: FillCovered}}
		return
	}
	if vis, _ := s.visible(p); p.Kind == content.KindPath && s.reaches(vis, v) && s.reaches(vis, h) {
		pt.Fills = []Fill{{Kind: FillCovered}}
		return
	}

	col, known := s.cornerColor(p, c)
	if s.spec.StretchMode == types.StretchSolidFill || (p.Kind == content.KindPath && known) {
		if !known {
			col = s.border
		}
		pt.Fills = []Fill{{Kind: FillSolid, Color: col}}
		return
	}
	d := math.Min(s.stripDepth(p, false), s.stripDepth(p, true))
	square := geometry.InnerSquare(s.inner, c, d)
	pt.Fills = []Fill{{Kind: FillStretch, Source: p.ID, Map: geometry.MapRect(square, pt.Region)}}
}

func (s *stretcher) cornerColor(p *content.Primitive, c geometry.Corner) (content.Color, bool) {
	switch p.Kind {
	case content.KindPath:
		if p.Fill && p.FillColor.Known() {
			return p.FillColor, true
		}
		if p.Stroke && p.StrokeColor.Known() {
			return p.StrokeColor, true
		}
	case content.KindImage:
		if p.Image != nil && p.Image.Sampler != nil {
			return p.Image.Sampler.CornerColor(imageCorner(p, c))
		}
	}
	return content.Color{}, false
}
