package geometry

// Edge names one side of a box.
type Edge int

const (
	Left Edge = iota
	Bottom
	Right
	Top
)

var edgeNames = [...]string{"left", "bottom", "right", "top"}

func (e Edge) String() string {
	if e < Left || e > Top {
		return "edge?"
	}
	return edgeNames[e]
}

// Edges lists every edge in a fixed order.
func Edges() [4]Edge { return [4]Edge{Left, Bottom, Right, Top} }

// Horizontal reports whether the edge runs along the x axis.
func (e Edge) Horizontal() bool { return e == Bottom || e == Top }

// Outward is the unit vector pointing away from the box across e.
func (e Edge) Outward() Point {
	switch e {
	case Left:
		return Point{-1, 0}
	case Bottom:
		return Point{0, -1}
	case Right:
		return Point{1, 0}
	default:
		return Point{0, 1}
	}
}

// Corner names one corner of a box.
type Corner int

const (
	LowerLeft Corner = iota
	LowerRight
	UpperRight
	UpperLeft
)

var cornerNames = [...]string{"lower-left", "lower-right", "upper-right", "upper-left"}

func (c Corner) String() string {
	if c < LowerLeft || c > UpperLeft {
		return "corner?"
	}
	return cornerNames[c]
}

// Corners lists every corner in a fixed order.
func Corners() [4]Corner { return [4]Corner{LowerLeft, LowerRight, UpperRight, UpperLeft} }

// Edges returns the vertical and horizontal edge that meet at c.
func (c Corner) Edges() (vertical, horizontal Edge) {
	switch c {
	case LowerLeft:
		return Left, Bottom
	case LowerRight:
		return Right, Bottom
	case UpperRight:
		return Right, Top
	default:
		return Left, Top
	}
}

// Outward is the diagonal direction (components ±1) pointing away from the box at c.
func (c Corner) Outward() Point {
	v, h := c.Edges()
	return Point{v.Outward().X, h.Outward().Y}
}

// CornerOf returns the corner whose quadrant contains p relative to the centre of r.
func CornerOf(r Rect, p Point) Corner {
	cx := (r.LLX + r.URX) / 2
	cy := (r.LLY + r.URY) / 2
	switch {
	case p.X < cx && p.Y < cy:
		return LowerLeft
	case p.X >= cx && p.Y < cy:
		return LowerRight
	case p.X >= cx && p.Y >= cy:
		return UpperRight
	default:
		return UpperLeft
	}
}

// BandRect is the strip added on side e when inner is grown to outer.
// Corner squares are excluded.
func BandRect(inner, outer Rect, e Edge) Rect {
	switch e {
	case Left:
		return Rect{outer.LLX, inner.LLY, inner.LLX, inner.URY}
	case Bottom:
		return Rect{inner.LLX, outer.LLY, inner.URX, inner.LLY}
	case Right:
		return Rect{inner.URX, inner.LLY, outer.URX, inner.URY}
	default:
		return Rect{inner.LLX, inner.URY, inner.URX, outer.URY}
	}
}

// PatchRect is the corner square added at c when inner is grown to outer.
func PatchRect(inner, outer Rect, c Corner) Rect {
	switch c {
	case LowerLeft:
		return Rect{outer.LLX, outer.LLY, inner.LLX, inner.LLY}
	case LowerRight:
		return Rect{inner.URX, outer.LLY, outer.URX, inner.LLY}
	case UpperRight:
		return Rect{inner.URX, inner.URY, outer.URX, outer.URY}
	default:
		return Rect{outer.LLX, inner.URY, inner.LLX, outer.URY}
	}
}

// InnerStrip is the strip of the given depth just inside side e of r.
func InnerStrip(r Rect, e Edge, depth float64) Rect {
	switch e {
	case Left:
		return Rect{r.LLX, r.LLY, r.LLX + depth, r.URY}
	case Bottom:
		return Rect{r.LLX, r.LLY, r.URX, r.LLY + depth}
	case Right:
		return Rect{r.URX - depth, r.LLY, r.URX, r.URY}
	default:
		return Rect{r.LLX, r.URY - depth, r.URX, r.URY}
	}
}

// InnerSquare is the square of the given size just inside corner c of r.
func InnerSquare(r Rect, c Corner, size float64) Rect {
	p := r.CornerPoint(c)
	o := c.Outward()
	return RectFromPoints(p, Point{p.X - o.X*size, p.Y - o.Y*size})
}
