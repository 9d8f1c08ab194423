package content

import (
	"bytes"
	"strconv"
	"strings"

	"trimborder/engine/geometry"
)

// FormatNumber renders v with at most prec decimals and no trailing zeros.
func FormatNumber(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.IndexByte(s, '.') >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// Writer serializes content stream operators. Coordinates are rounded only here.
type Writer struct {
	buf  bytes.Buffer
	prec int
}

func NewWriter(prec int) *Writer { return &Writer{prec: prec} }

func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) Len() int { return w.buf.Len() }

func (w *Writer) num(v float64) {
	w.buf.WriteString(FormatNumber(v, w.prec))
	w.buf.WriteByte(' ')
}

// Op writes the numeric operands followed by the operator.
func (w *Writer) Op(op string, nums ...float64) {
	for _, v := range nums {
		w.num(v)
	}
	w.buf.WriteString(op)
	w.buf.WriteByte('\n')
}

// Raw copies source bytes verbatim on their own line.
func (w *Writer) Raw(b []byte) {
	if len(b) == 0 {
		return
	}
	w.buf.Write(b)
	if b[len(b)-1] != '\n' {
		w.buf.WriteByte('\n')
	}
}

func (w *Writer) Save()    { w.Op("q") }
func (w *Writer) Restore() { w.Op("Q") }

// MatrixPrecision is the minimum number of decimals written for cm
// operands. Inverse transforms carry small coefficients that the
// coordinate precision would destroy.
const MatrixPrecision = 9

func (w *Writer) Concat(m geometry.Matrix) {
	p := max(w.prec, MatrixPrecision)
	for _, v := range m {
		w.buf.WriteString(FormatNumber(v, p))
		w.buf.WriteByte(' ')
	}
	w.buf.WriteString("cm\n")
}

func (w *Writer) Rect(r geometry.Rect) {
	w.Op("re", r.LLX, r.LLY, r.Width(), r.Height())
}

// ClipRect intersects the clipping path with r and starts a fresh path.
func (w *Writer) ClipRect(r geometry.Rect) {
	w.Rect(r)
	w.Op("W")
	w.Op("n")
}

func (w *Writer) Path(segs []Segment) {
	for _, s := range segs {
		switch s.Op {
		case MoveTo:
			w.Op("m", s.Pts[0].X, s.Pts[0].Y)
		case LineTo:
			w.Op("l", s.Pts[0].X, s.Pts[0].Y)
		case CurveTo:
			w.Op("c", s.Pts[0].X, s.Pts[0].Y, s.Pts[1].X, s.Pts[1].Y, s.Pts[2].X, s.Pts[2].Y)
		case ClosePath:
			w.Op("h")
		}
	}
}

// FillColor selects c as the non-stroking colour in its device space.
func (w *Writer) FillColor(c Color) {
	switch c.Space {
	case SpaceGray:
		w.Op("g", c.V[0])
	case SpaceCMYK:
		w.Op("k", c.V[0], c.V[1], c.V[2], c.V[3])
	default:
		c = c.ToRGB()
		w.Op("rg", c.V[0], c.V[1], c.V[2])
	}
}

// FillRect paints r with c.
func (w *Writer) FillRect(r geometry.Rect, c Color) {
	w.FillColor(c)
	w.Rect(r)
	w.Op("f")
}
