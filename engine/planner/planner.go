package planner

import (
	"errors"
	"fmt"
	"math"

	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/types"
)

var ErrInsufficientMedia = errors.New("insufficient media")

// PlanError reports a MediaBox that would have to grow beyond the cap.
type PlanError struct {
	Edge   geometry.Edge
	Growth float64
	Cap    float64
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan: %s: MediaBox %s side needs %.3fpt of growth, policy allows %.3fpt",
		ErrInsufficientMedia, e.Edge, e.Growth, e.Cap)
}

func (e *PlanError) Unwrap() error { return ErrInsufficientMedia }

// MarkPolicy records how mark shifts were derived.
type MarkPolicy string

const (
	MarksNone     MarkPolicy = "none"
	MarksMeasured MarkPolicy = "measured"
	MarksUniform  MarkPolicy = "uniform"
)

// MarkShift moves the mark group at Corner. Both components have the
// magnitude of the border width and point away from the trim.
type MarkShift struct {
	Corner geometry.Corner
	DX, DY float64
}

func (s MarkShift) Vector() geometry.Point { return geometry.Point{X: s.DX, Y: s.DY} }

// Magnitude is the per-axis shift length.
func (s MarkShift) Magnitude() float64 { return math.Max(math.Abs(s.DX), math.Abs(s.DY)) }

type ExpansionPlan struct {
	Width       float64
	Old         geometry.Boxes
	New         geometry.Boxes
	Shifts      []MarkShift
	MarkPolicy  MarkPolicy
	MediaGrowth geometry.Insets
}

// Deltas returns the shift per corner, zero where no group was found.
func (p *ExpansionPlan) Deltas() [4]geometry.Point {
	var d [4]geometry.Point
	for _, s := range p.Shifts {
		d[s.Corner] = s.Vector()
	}
	return d
}

// Plan computes the expanded box set and mark shifts for one page.
func Plan(boxes geometry.Boxes, set marks.Set, spec types.BorderSpec) (*ExpansionPlan, error) {
	old := boxes.Normalize()
	for _, nb := range []struct {
		name string
		r    geometry.Rect
	}{{"MediaBox", old.Media}, {"BleedBox", old.Bleed}, {"TrimBox", old.Trim}, {"CropBox", old.Crop}} {
		if err := nb.r.Validate(); err != nil {
			var ge *geometry.Error
			if errors.As(err, &ge) {
				ge.Box = nb.name
			}
			return nil, err
		}
	}

	w := spec.Width
	tol := spec.TightTolerance
	newTrim, err := geometry.ExpandAll(old.Trim, w)
	if err != nil {
		return nil, err
	}

	nb := old
	nb.Trim = newTrim
	nb.HasTrim = true
	nb.Bleed = follow(old.Bleed, old.Trim, newTrim, w, tol)
	nb.Media = geometry.Union(follow(old.Media, old.Trim, newTrim, w, tol), nb.Bleed)
	nb.Crop = follow(old.Crop, old.Trim, newTrim, w, tol)
	for _, e := range geometry.Edges() {
		if math.Abs(old.Crop.EdgeCoord(e)-old.Media.EdgeCoord(e)) <= tol {
			nb.Crop = setEdge(nb.Crop, e, nb.Media.EdgeCoord(e))
		}
	}

	growth := geometry.Margins(nb.Media, old.Media)
	if spec.MediaPolicy == types.MediaCapAndError {
		for _, e := range geometry.Edges() {
			if g := growth.Side(e); g > spec.MediaGrowthCap+1e-9 {
				return nil, &PlanError{Edge: e, Growth: g, Cap: spec.MediaGrowthCap}
			}
		}
	}
	if err := nb.Check(1e-9); err != nil {
		return nil, err
	}

	plan := &ExpansionPlan{
		Width:       w,
		Old:         old,
		New:         nb,
		MediaGrowth: growth,
		MarkPolicy:  MarksNone,
	}
	plan.Shifts, plan.MarkPolicy = shifts(set, old.Trim, newTrim, w)
	return plan, nil
}

// follow moves each side of box: sides tight against the old trim grow with
// it, sides still outside the new trim stay, others are pulled out to it.
func follow(box, oldTrim, newTrim geometry.Rect, w, tol float64) geometry.Rect {
	margins := geometry.Margins(box, oldTrim)
	out := box
	for _, e := range geometry.Edges() {
		o := e.Outward()
		switch {
		case math.Abs(margins.Side(e)) <= tol:
			out = setEdge(out, e, box.EdgeCoord(e)+(o.X+o.Y)*w)
		case (box.EdgeCoord(e)-newTrim.EdgeCoord(e))*(o.X+o.Y) >= 0:
			// already clear of the new trim
		default:
			out = setEdge(out, e, newTrim.EdgeCoord(e))
		}
	}
	return out
}

func setEdge(r geometry.Rect, e geometry.Edge, v float64) geometry.Rect {
	switch e {
	case geometry.Left:
		r.LLX = v
	case geometry.Bottom:
		r.LLY = v
	case geometry.Right:
		r.URX = v
	default:
		r.URY = v
	}
	return r
}

// shifts derives one MarkShift per found group. A confident set keeps each
// group's measured offset from the new trim corner; a low confidence set
// ignores the measurements and shifts every group uniformly outward.
func shifts(set marks.Set, oldTrim, newTrim geometry.Rect, w float64) ([]MarkShift, MarkPolicy) {
	if set.Empty() {
		return nil, MarksNone
	}
	policy := MarksMeasured
	if !set.Confident {
		policy = MarksUniform
	}
	var out []MarkShift
	for _, g := range set.Groups {
		if !g.Found {
			continue
		}
		o := g.Corner.Outward()
		s := MarkShift{Corner: g.Corner, DX: o.X * w, DY: o.Y * w}
		if policy == MarksMeasured {
			p, q := oldTrim.CornerPoint(g.Corner), newTrim.CornerPoint(g.Corner)
			s.DX = (q.X + o.X*g.OffsetX) - (p.X + o.X*g.OffsetX)
			s.DY = (q.Y + o.Y*g.OffsetY) - (p.Y + o.Y*g.OffsetY)
		}
		out = append(out, s)
	}
	return out, policy
}
