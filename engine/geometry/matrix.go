package geometry

import (
	"errors"
	"math"
)

// Matrix is an affine transform [a b c d e f] in PDF operand order.
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply returns m followed by o, matching how the cm operator composes
// a new matrix onto the current transformation matrix.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

func (m Matrix) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// ApplyVector transforms a direction, ignoring translation.
func (m Matrix) ApplyVector(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y, Y: m[1]*p.X + m[3]*p.Y}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-12 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// ScaleFactor is the mean linear scale, used to convert line widths to page space.
func (m Matrix) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

// TransformRect returns the bounding box of r after m.
func (m Matrix) TransformRect(r Rect) Rect {
	return RectFromPoints(
		m.Apply(Point{r.LLX, r.LLY}),
		m.Apply(Point{r.URX, r.LLY}),
		m.Apply(Point{r.URX, r.URY}),
		m.Apply(Point{r.LLX, r.URY}),
	)
}

// MapRect returns the axis aligned transform taking src onto dst.
func MapRect(src, dst Rect) Matrix {
	sx := dst.Width() / src.Width()
	sy := dst.Height() / src.Height()
	return Matrix{sx, 0, 0, sy, dst.LLX - src.LLX*sx, dst.LLY - src.LLY*sy}
}

// Reflect mirrors across the line through side e of r.
func Reflect(r Rect, e Edge) Matrix {
	c := r.EdgeCoord(e)
	if e.Horizontal() {
		return Matrix{1, 0, 0, -1, 0, 2 * c}
	}
	return Matrix{-1, 0, 0, 1, 2 * c, 0}
}
