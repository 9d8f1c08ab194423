package geometry

import (
	"errors"
	"fmt"
	"math"
)

// PointsPerMM is the number of PDF points in one millimetre.
const PointsPerMM = 72.0 / 25.4

// MM converts millimetres to points.
func MM(v float64) float64 { return v * PointsPerMM }

// ToMM converts points to millimetres.
func ToMM(v float64) float64 { return v / PointsPerMM }

var ErrDegenerate = errors.New("degenerate rectangle")

// Error reports an invalid box. It always wraps ErrDegenerate.
type Error struct {
	Box  string
	Rect Rect
	Msg  string
}

func (e *Error) Error() string {
	if e.Box == "" {
		return fmt.Sprintf("geometry: %s %v: %s", ErrDegenerate, e.Rect, e.Msg)
	}
	return fmt.Sprintf("geometry: %s %s %v: %s", e.Box, ErrDegenerate, e.Rect, e.Msg)
}

func (e *Error) Unwrap() error { return ErrDegenerate }

type Point struct {
	X, Y float64
}

func (p Point) Add(o Point) Point { return Point{p.X + o.X, p.Y + o.Y} }

// Rect is an axis aligned rectangle in document units.
type Rect struct {
	LLX, LLY, URX, URY float64
}

func NewRect(llx, lly, urx, ury float64) Rect {
	return Rect{LLX: llx, LLY: lly, URX: urx, URY: ury}
}

// RectFromPoints returns the bounding rectangle of pts.
func RectFromPoints(pts ...Point) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	r := Rect{pts[0].X, pts[0].Y, pts[0].X, pts[0].Y}
	for _, p := range pts[1:] {
		r.LLX = math.Min(r.LLX, p.X)
		r.LLY = math.Min(r.LLY, p.Y)
		r.URX = math.Max(r.URX, p.X)
		r.URY = math.Max(r.URY, p.Y)
	}
	return r
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

func (r Rect) String() string {
	return fmt.Sprintf("[%.3f %.3f %.3f %.3f]", r.LLX, r.LLY, r.URX, r.URY)
}

// Validate fails for inverted or empty rectangles and non-finite coordinates.
func (r Rect) Validate() error {
	for _, v := range []float64{r.LLX, r.LLY, r.URX, r.URY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &Error{Rect: r, Msg: "non-finite coordinate"}
		}
	}
	if r.URX <= r.LLX || r.URY <= r.LLY {
		return &Error{Rect: r, Msg: "inverted or empty"}
	}
	return nil
}

func (r Rect) Empty() bool { return r.URX <= r.LLX || r.URY <= r.LLY }

// Insets holds a signed delta per side. Positive values grow the rectangle.
type Insets struct {
	Left, Bottom, Right, Top float64
}

// Uniform returns the same delta on all four sides.
func Uniform(d float64) Insets { return Insets{d, d, d, d} }

func (in Insets) Side(e Edge) float64 {
	switch e {
	case Left:
		return in.Left
	case Bottom:
		return in.Bottom
	case Right:
		return in.Right
	default:
		return in.Top
	}
}

// Expand moves every side of r outward by its delta.
func Expand(r Rect, d Insets) (Rect, error) {
	if err := r.Validate(); err != nil {
		return Rect{}, err
	}
	out := Rect{
		LLX: r.LLX - d.Left,
		LLY: r.LLY - d.Bottom,
		URX: r.URX + d.Right,
		URY: r.URY + d.Top,
	}
	if err := out.Validate(); err != nil {
		return Rect{}, err
	}
	return out, nil
}

// ExpandAll is Expand with a uniform delta.
func ExpandAll(r Rect, d float64) (Rect, error) { return Expand(r, Uniform(d)) }

// Contains reports whether inner lies within outer, allowing tol on every side.
func Contains(outer, inner Rect, tol float64) bool {
	return inner.LLX >= outer.LLX-tol &&
		inner.LLY >= outer.LLY-tol &&
		inner.URX <= outer.URX+tol &&
		inner.URY <= outer.URY+tol
}

func (r Rect) ContainsPoint(p Point, tol float64) bool {
	return p.X >= r.LLX-tol && p.X <= r.URX+tol && p.Y >= r.LLY-tol && p.Y <= r.URY+tol
}

func Union(a, b Rect) Rect {
	return Rect{
		LLX: math.Min(a.LLX, b.LLX),
		LLY: math.Min(a.LLY, b.LLY),
		URX: math.Max(a.URX, b.URX),
		URY: math.Max(a.URY, b.URY),
	}
}

// Intersect returns the overlap of a and b and whether it is non-empty.
func Intersect(a, b Rect) (Rect, bool) {
	r := Rect{
		LLX: math.Max(a.LLX, b.LLX),
		LLY: math.Max(a.LLY, b.LLY),
		URX: math.Min(a.URX, b.URX),
		URY: math.Min(a.URY, b.URY),
	}
	return r, !r.Empty()
}

// Overlaps is like Intersect but treats touching rectangles and zero-width
// rectangles (hairlines) as overlapping.
func Overlaps(a, b Rect) bool {
	return a.LLX <= b.URX && b.LLX <= a.URX && a.LLY <= b.URY && b.LLY <= a.URY
}

// EdgeCoord returns the coordinate of side e.
func (r Rect) EdgeCoord(e Edge) float64 {
	switch e {
	case Left:
		return r.LLX
	case Bottom:
		return r.LLY
	case Right:
		return r.URX
	default:
		return r.URY
	}
}

// CornerPoint returns the point of corner c.
func (r Rect) CornerPoint(c Corner) Point {
	switch c {
	case LowerLeft:
		return Point{r.LLX, r.LLY}
	case LowerRight:
		return Point{r.URX, r.LLY}
	case UpperRight:
		return Point{r.URX, r.URY}
	default:
		return Point{r.LLX, r.URY}
	}
}

// Margins returns, per side, how far outer extends beyond inner.
func Margins(outer, inner Rect) Insets {
	return Insets{
		Left:   inner.LLX - outer.LLX,
		Bottom: inner.LLY - outer.LLY,
		Right:  outer.URX - inner.URX,
		Top:    outer.URY - inner.URY,
	}
}

func nearly(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// Equal compares two rectangles within tol.
func Equal(a, b Rect, tol float64) bool {
	return nearly(a.LLX, b.LLX, tol) && nearly(a.LLY, b.LLY, tol) &&
		nearly(a.URX, b.URX, tol) && nearly(a.URY, b.URY, tol)
}
