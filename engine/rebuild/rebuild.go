package rebuild

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"trimborder/engine/content"
	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/engine/planner"
	"trimborder/engine/stretch"
)

var ErrOverlap = errors.New("rebuild: overlapping content edits")

// Input is everything needed to rebuild one page. The source slices are
// read only.
type Input struct {
	Content   []byte
	Prims     []content.Primitive
	Marks     marks.Set
	Plan      *planner.ExpansionPlan
	Stretch   *stretch.Plan
	Precision int
}

// Result is the replacement page state.
type Result struct {
	Content  []byte
	Boxes    geometry.Boxes
	Edits    int
	Warnings []stretch.Warning
}

type edit struct {
	span content.Span
	data []byte
}

// Rebuild produces new content and boxes for a page. Solid fills are drawn
// first as background; strip and reflection copies are inserted right after
// the primitive they copy so stacking order is kept; extended paths and
// shifted marks are rewritten in place.
func Rebuild(in Input) (*Result, error) {
	if in.Plan == nil || in.Stretch == nil {
		return nil, errors.New("rebuild: missing plan")
	}
	var edits []edit

	for id, ext := range in.Stretch.Extensions {
		p, err := prim(in.Prims, id)
		if err != nil {
			return nil, err
		}
		w := content.NewWriter(in.Precision)
		w.Path(ext.Path)
		edits = append(edits, edit{span: p.Construction, data: w.Bytes()})
	}

	shifted, err := markEdits(in)
	if err != nil {
		return nil, err
	}
	edits = append(edits, shifted...)

	bg := content.NewWriter(in.Precision)
	regions := make([]region, 0, 8)
	for _, b := range in.Stretch.Bands {
		regions = append(regions, region{rect: b.Region, fills: b.Fills})
	}
	for _, p := range in.Stretch.Patches {
		regions = append(regions, region{rect: p.Region, fills: p.Fills})
	}
	for _, r := range regions {
		if r.rect.Empty() {
			continue
		}
		for _, f := range r.fills {
			switch f.Kind {
			case stretch.FillSolid:
				bg.Save()
				bg.FillRect(r.rect, f.Color)
				bg.Restore()
			case stretch.FillStretch, stretch.FillReflect:
				p, err := prim(in.Prims, f.Source)
				if err != nil {
					return nil, err
				}
				data, err := copyOf(p, f.Map, r.rect, in.Precision)
				if err != nil {
					return nil, err
				}
				edits = append(edits, edit{span: content.Span{Start: p.Paint.End, End: p.Paint.End}, data: data})
			}
		}
	}

	body, err := apply(in.Content, edits)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Write(bg.Bytes())
	out.Write(body)

	if _, err := content.Parse(out.Bytes()); err != nil {
		return nil, fmt.Errorf("rebuild: generated content does not parse: %w", err)
	}
	return &Result{
		Content:  out.Bytes(),
		Boxes:    in.Plan.New,
		Edits:    len(edits),
		Warnings: in.Stretch.Warnings,
	}, nil
}

type region struct {
	rect  geometry.Rect
	fills []stretch.Fill
}

func prim(prims []content.Primitive, id int) (*content.Primitive, error) {
	if id < 0 || id >= len(prims) || prims[id].ID != id {
		return nil, fmt.Errorf("rebuild: unknown primitive %d", id)
	}
	return &prims[id], nil
}

// copyOf draws p again, clipped to the page-space rect r and moved by the
// page-space matrix m. It runs at the point in the stream right after p was
// painted, where the current transformation is still p.CTM.
func copyOf(p *content.Primitive, m geometry.Matrix, r geometry.Rect, prec int) ([]byte, error) {
	inv, err := p.CTM.Inverse()
	if err != nil {
		return nil, fmt.Errorf("rebuild: primitive %d: %w", p.ID, err)
	}
	w := content.NewWriter(prec)
	w.Save()
	w.Concat(inv)
	w.ClipRect(r)
	w.Concat(m)
	w.Concat(p.CTM)
	w.Raw(p.State)
	switch p.Kind {
	case content.KindPath:
		w.Path(p.Path)
		w.Op(p.PaintOp)
	default:
		w.Raw(p.Invocation)
	}
	w.Restore()
	return append([]byte{'\n'}, w.Bytes()...), nil
}

// markEdits rewrites the construction of every mark primitive with its
// subpaths translated by the corner shift.
func markEdits(in Input) ([]edit, error) {
	deltas := in.Plan.Deltas()
	moves := map[int]map[int]geometry.Point{}
	for _, g := range in.Marks.Groups {
		if !g.Found {
			continue
		}
		d := deltas[g.Corner]
		if d == (geometry.Point{}) {
			continue
		}
		for _, s := range g.Segments() {
			if moves[s.Prim] == nil {
				moves[s.Prim] = map[int]geometry.Point{}
			}
			moves[s.Prim][s.Sub] = d
		}
	}

	var edits []edit
	for id, subs := range moves {
		p, err := prim(in.Prims, id)
		if err != nil {
			return nil, err
		}
		if _, ok := in.Stretch.Extensions[id]; ok {
			return nil, fmt.Errorf("rebuild: primitive %d is both a mark and extended content", id)
		}
		inv, err := p.CTM.Inverse()
		if err != nil {
			return nil, fmt.Errorf("rebuild: mark primitive %d: %w", id, err)
		}
		path := make([]content.Segment, len(p.Path))
		var d geometry.Point
		for i, seg := range p.Path {
			if seg.Op == content.MoveTo {
				d = geometry.Point{}
				if v, ok := subs[i]; ok {
					d = inv.ApplyVector(v)
				}
			}
			pts := make([]geometry.Point, len(seg.Pts))
			for j, pt := range seg.Pts {
				pts[j] = pt.Add(d)
			}
			path[i] = content.Segment{Op: seg.Op, Pts: pts}
		}
		w := content.NewWriter(in.Precision)
		w.Path(path)
		edits = append(edits, edit{span: p.Construction, data: w.Bytes()})
	}
	return edits, nil
}

// apply splices edits into src. Zero-length edits are insertions.
func apply(src []byte, edits []edit) ([]byte, error) {
	sort.SliceStable(edits, func(i, j int) bool {
		return edits[i].span.Start < edits[j].span.Start
	})
	var out bytes.Buffer
	pos := 0
	for _, e := range edits {
		if e.span.Start < pos || e.span.End < e.span.Start || e.span.End > len(src) {
			return nil, fmt.Errorf("%w at byte %d", ErrOverlap, e.span.Start)
		}
		out.Write(src[pos:e.span.Start])
		out.Write(bytes.TrimRight(e.data, "\n"))
		if e.span.End == e.span.Start {
			out.WriteByte('\n')
		}
		pos = e.span.End
	}
	out.Write(src[pos:])
	return out.Bytes(), nil
}
