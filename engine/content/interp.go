package content

import (
	"fmt"

	"trimborder/engine/geometry"
)

type Kind int

const (
	KindPath Kind = iota
	KindClip
	KindImage
	KindForm
	KindShading
	KindText
)

var kindNames = [...]string{"path", "clip", "image", "form", "shading", "text"}

func (k Kind) String() string {
	if k < KindPath || k > KindText {
		return "kind?"
	}
	return kindNames[k]
}

type SegmentOp int

const (
	MoveTo SegmentOp = iota
	LineTo
	CurveTo
	ClosePath
)

// Segment is one path construction step. CurveTo carries three points,
// MoveTo and LineTo one, ClosePath none.
type Segment struct {
	Op  SegmentOp
	Pts []geometry.Point
}

// Sampler reads colours from the border pixels of an image. Edges and
// corners are in image unit space: Left is the first column, Top the
// first row.
type Sampler interface {
	EdgeColor(e geometry.Edge) (Color, bool)
	CornerColor(c geometry.Corner) (Color, bool)
}

// ImageInfo describes an XObject resource of a page.
type ImageInfo struct {
	Name    string
	Form    bool
	Width   int
	Height  int
	BBox    geometry.Rect
	Matrix  geometry.Matrix
	Sampler Sampler
}

// Primitive is one painted element, normalized away from operator encoding.
type Primitive struct {
	ID   int
	Kind Kind

	// Path is in user space; CTM maps it onto the page.
	Path []Segment
	CTM  geometry.Matrix

	Bounds    geometry.Rect
	LineWidth float64 // page space
	Stroke    bool
	Fill      bool
	EvenOdd   bool
	Clip      bool

	FillColor   Color
	StrokeColor Color

	// ClipBox bounds the clipping region in effect when painting, if any.
	ClipBox geometry.Rect
	Clipped bool

	// State re-establishes line and colour state for a copy of this primitive.
	State []byte

	Construction Span
	Paint        Span
	PaintOp      string

	Name       string
	Image      *ImageInfo
	Inline     bool
	Invocation []byte
}

// PagePath returns Path mapped through CTM.
func (p *Primitive) PagePath() []Segment {
	out := make([]Segment, len(p.Path))
	for i, s := range p.Path {
		pts := make([]geometry.Point, len(s.Pts))
		for j, pt := range s.Pts {
			pts[j] = p.CTM.Apply(pt)
		}
		out[i] = Segment{Op: s.Op, Pts: pts}
	}
	return out
}

// Thin reports whether the primitive is a stroke no wider than limit.
func (p *Primitive) Thin(limit float64) bool {
	return p.Kind == KindPath && p.Stroke && !p.Fill && p.LineWidth <= limit
}

type gstate struct {
	ctm       geometry.Matrix
	lineWidth float64

	fill, stroke           Color
	fillSpace, strokeSpace Space

	fillCS, fillSC     []byte
	strokeCS, strokeSC []byte
	line               map[string][]byte
	ext                [][]byte

	clip    geometry.Rect
	clipped bool
}

func (g *gstate) clone() gstate {
	c := *g
	c.line = make(map[string][]byte, len(g.line))
	for k, v := range g.line {
		c.line[k] = v
	}
	c.ext = g.ext[:len(g.ext):len(g.ext)]
	return c
}

func (g *gstate) stateBytes() []byte {
	var out []byte
	add := func(b []byte) {
		if len(b) > 0 {
			out = append(out, b...)
			out = append(out, '\n')
		}
	}
	for _, b := range g.ext {
		add(b)
	}
	for _, k := range []string{"w", "J", "j", "d", "M"} {
		add(g.line[k])
	}
	add(g.fillCS)
	add(g.fillSC)
	add(g.strokeCS)
	add(g.strokeSC)
	return out
}

type textState struct {
	tm, tlm  geometry.Matrix
	size     float64
	leading  float64
	inObject bool
}

type interpreter struct {
	images map[string]ImageInfo
	gs     gstate
	stack  []gstate
	text   textState

	path      []Segment
	start     geometry.Point
	current   geometry.Point
	pathSpan  Span
	clipOp    string
	clipStart int

	prims []Primitive
}

// Interpret runs the graphics state machine over ops and returns the painted
// primitives in stream order. Unknown operators are ignored; operand errors
// on known operators fail.
func Interpret(ops []Operation, images map[string]ImageInfo) ([]Primitive, error) {
	in := &interpreter{images: images}
	in.gs = gstate{
		ctm:         geometry.Identity(),
		lineWidth:   1,
		fill:        Gray(0),
		stroke:      Gray(0),
		fillSpace:   SpaceGray,
		strokeSpace: SpaceGray,
		line:        map[string][]byte{},
	}
	in.resetPath()
	for i := range ops {
		if err := in.exec(&ops[i]); err != nil {
			return nil, fmt.Errorf("operator %q at byte %d: %w", ops[i].Operator, ops[i].Span.Start, err)
		}
	}
	return in.prims, nil
}

func (in *interpreter) resetPath() {
	in.path = nil
	in.pathSpan = Span{Start: -1, End: -1}
	in.clipOp = ""
	in.clipStart = -1
}

func nums(op *Operation, n int) ([]float64, error) {
	if len(op.Operands) < n {
		return nil, fmt.Errorf("want %d operands, got %d", n, len(op.Operands))
	}
	args := op.Operands[len(op.Operands)-n:]
	out := make([]float64, n)
	for i, a := range args {
		if a.Kind != Number {
			return nil, fmt.Errorf("operand %d is not a number", i)
		}
		out[i] = a.Num
	}
	return out, nil
}

func numbers(op *Operation) []float64 {
	out := make([]float64, 0, len(op.Operands))
	for _, a := range op.Operands {
		if a.Kind == Number {
			out = append(out, a.Num)
		}
	}
	return out
}

func lastName(op *Operation) (string, error) {
	if len(op.Operands) == 0 || op.Operands[len(op.Operands)-1].Kind != Name {
		return "", fmt.Errorf("want a name operand")
	}
	return op.Operands[len(op.Operands)-1].Str, nil
}

func spaceOf(name string) Space {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return SpaceGray
	case "DeviceRGB", "RGB", "CalRGB":
		return SpaceRGB
	case "DeviceCMYK", "CMYK":
		return SpaceCMYK
	}
	return SpaceUnknown
}

func colorFrom(space Space, v []float64) Color {
	if space == SpaceUnknown || len(v) != space.components() {
		return Color{}
	}
	c := Color{Space: space}
	copy(c.V[:], v)
	return c
}

func (in *interpreter) exec(op *Operation) error {
	switch op.Operator {
	case "q":
		in.stack = append(in.stack, in.gs.clone())
	case "Q":
		if len(in.stack) > 0 {
			in.gs = in.stack[len(in.stack)-1]
			in.stack = in.stack[:len(in.stack)-1]
		}
	case "cm":
		v, err := nums(op, 6)
		if err != nil {
			return err
		}
		m := geometry.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
		in.gs.ctm = m.Multiply(in.gs.ctm)
	case "w":
		v, err := nums(op, 1)
		if err != nil {
			return err
		}
		in.gs.lineWidth = v[0]
		in.gs.line["w"] = op.Raw
	case "J", "j", "d", "M":
		in.gs.line[op.Operator] = op.Raw
	case "gs":
		if _, err := lastName(op); err != nil {
			return err
		}
		in.gs.ext = append(in.gs.ext, op.Raw)
	case "g", "rg", "k", "G", "RG", "K":
		return in.deviceColor(op)
	case "cs", "CS":
		name, err := lastName(op)
		if err != nil {
			return err
		}
		sp := spaceOf(name)
		if op.Operator == "cs" {
			in.gs.fillSpace, in.gs.fillCS, in.gs.fillSC = sp, op.Raw, nil
			in.gs.fill = colorFrom(sp, make([]float64, sp.components()))
		} else {
			in.gs.strokeSpace, in.gs.strokeCS, in.gs.strokeSC = sp, op.Raw, nil
			in.gs.stroke = colorFrom(sp, make([]float64, sp.components()))
		}
	case "sc", "scn":
		v := numbers(op)
		in.gs.fill = colorFrom(in.gs.fillSpace, v)
		in.gs.fillSC = op.Raw
	case "SC", "SCN":
		v := numbers(op)
		in.gs.stroke = colorFrom(in.gs.strokeSpace, v)
		in.gs.strokeSC = op.Raw

	case "m", "l", "c", "v", "y", "h", "re":
		return in.construct(op)
	case "W", "W*":
		in.clipOp = op.Operator
		in.clipStart = op.Span.Start
	case "S", "s", "f", "F", "f*", "B", "B*", "b", "b*", "n":
		in.paint(op)

	case "Do":
		name, err := lastName(op)
		if err != nil {
			return err
		}
		in.xobject(name, op)
	case "BI":
		in.inlineImage(op)
	case "sh":
		p := in.newPrimitive(KindShading)
		p.Bounds = in.gs.clip
		if !in.gs.clipped {
			p.Bounds = geometry.Rect{}
		}
		p.Invocation = op.Raw
		p.Paint = op.Span
		in.prims = append(in.prims, p)

	case "BT":
		in.text = textState{tm: geometry.Identity(), tlm: geometry.Identity(), size: in.text.size, leading: in.text.leading, inObject: true}
	case "ET":
		in.text.inObject = false
	case "Tf":
		v, err := nums(op, 1)
		if err != nil {
			return err
		}
		in.text.size = v[0]
	case "TL":
		v, err := nums(op, 1)
		if err != nil {
			return err
		}
		in.text.leading = v[0]
	case "Td", "TD":
		v, err := nums(op, 2)
		if err != nil {
			return err
		}
		if op.Operator == "TD" {
			in.text.leading = -v[1]
		}
		in.text.tlm = geometry.Translate(v[0], v[1]).Multiply(in.text.tlm)
		in.text.tm = in.text.tlm
	case "Tm":
		v, err := nums(op, 6)
		if err != nil {
			return err
		}
		in.text.tlm = geometry.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}
		in.text.tm = in.text.tlm
	case "T*":
		in.nextLine()
	case "Tj", "TJ", "'", "\"":
		if op.Operator == "'" || op.Operator == "\"" {
			in.nextLine()
		}
		in.textRun(op)
	}
	return nil
}

func (in *interpreter) deviceColor(op *Operation) error {
	var sp Space
	switch op.Operator {
	case "g", "G":
		sp = SpaceGray
	case "rg", "RG":
		sp = SpaceRGB
	default:
		sp = SpaceCMYK
	}
	v, err := nums(op, sp.components())
	if err != nil {
		return err
	}
	c := colorFrom(sp, v)
	if op.Operator == "g" || op.Operator == "rg" || op.Operator == "k" {
		in.gs.fill, in.gs.fillSpace, in.gs.fillCS, in.gs.fillSC = c, sp, nil, op.Raw
	} else {
		in.gs.stroke, in.gs.strokeSpace, in.gs.strokeCS, in.gs.strokeSC = c, sp, nil, op.Raw
	}
	return nil
}

func (in *interpreter) construct(op *Operation) error {
	if in.pathSpan.Start < 0 {
		in.pathSpan.Start = op.Span.Start
	}
	in.pathSpan.End = op.Span.End
	pt := func(x, y float64) geometry.Point { return geometry.Point{X: x, Y: y} }

	switch op.Operator {
	case "m":
		v, err := nums(op, 2)
		if err != nil {
			return err
		}
		in.current = pt(v[0], v[1])
		in.start = in.current
		in.path = append(in.path, Segment{Op: MoveTo, Pts: []geometry.Point{in.current}})
	case "l":
		v, err := nums(op, 2)
		if err != nil {
			return err
		}
		in.current = pt(v[0], v[1])
		in.path = append(in.path, Segment{Op: LineTo, Pts: []geometry.Point{in.current}})
	case "c":
		v, err := nums(op, 6)
		if err != nil {
			return err
		}
		pts := []geometry.Point{pt(v[0], v[1]), pt(v[2], v[3]), pt(v[4], v[5])}
		in.current = pts[2]
		in.path = append(in.path, Segment{Op: CurveTo, Pts: pts})
	case "v":
		v, err := nums(op, 4)
		if err != nil {
			return err
		}
		pts := []geometry.Point{in.current, pt(v[0], v[1]), pt(v[2], v[3])}
		in.current = pts[2]
		in.path = append(in.path, Segment{Op: CurveTo, Pts: pts})
	case "y":
		v, err := nums(op, 4)
		if err != nil {
			return err
		}
		end := pt(v[2], v[3])
		pts := []geometry.Point{pt(v[0], v[1]), end, end}
		in.current = end
		in.path = append(in.path, Segment{Op: CurveTo, Pts: pts})
	case "h":
		in.path = append(in.path, Segment{Op: ClosePath})
		in.current = in.start
	case "re":
		v, err := nums(op, 4)
		if err != nil {
			return err
		}
		x, y, w, h := v[0], v[1], v[2], v[3]
		in.path = append(in.path,
			Segment{Op: MoveTo, Pts: []geometry.Point{pt(x, y)}},
			Segment{Op: LineTo, Pts: []geometry.Point{pt(x+w, y)}},
			Segment{Op: LineTo, Pts: []geometry.Point{pt(x+w, y+h)}},
			Segment{Op: LineTo, Pts: []geometry.Point{pt(x, y+h)}},
			Segment{Op: ClosePath},
		)
		in.current = pt(x, y)
		in.start = in.current
	}
	return nil
}

func (in *interpreter) newPrimitive(k Kind) Primitive {
	return Primitive{
		ID:          len(in.prims),
		Kind:        k,
		CTM:         in.gs.ctm,
		FillColor:   in.gs.fill,
		StrokeColor: in.gs.stroke,
		ClipBox:     in.gs.clip,
		Clipped:     in.gs.clipped,
		State:       in.gs.stateBytes(),
		LineWidth:   in.gs.lineWidth * in.gs.ctm.ScaleFactor(),
	}
}

func (in *interpreter) paint(op *Operation) {
	defer in.resetPath()
	if len(in.path) == 0 {
		return
	}
	kind := KindPath
	if op.Operator == "n" {
		if in.clipOp == "" {
			return
		}
		kind = KindClip
	}
	p := in.newPrimitive(kind)
	p.Path = in.path
	p.Construction = in.pathSpan
	p.PaintOp = op.Operator
	p.Paint = op.Span
	if in.clipStart >= 0 {
		p.Paint.Start = in.clipStart
	}
	p.Clip = in.clipOp != ""
	switch op.Operator {
	case "S", "s":
		p.Stroke = true
	case "f", "F", "f*":
		p.Fill = true
	case "B", "B*", "b", "b*":
		p.Stroke, p.Fill = true, true
	}
	p.EvenOdd = op.Operator == "f*" || op.Operator == "B*" || op.Operator == "b*" || in.clipOp == "W*"

	var pts []geometry.Point
	for _, s := range p.PagePath() {
		pts = append(pts, s.Pts...)
	}
	p.Bounds = geometry.RectFromPoints(pts...)
	in.prims = append(in.prims, p)

	if p.Clip {
		in.intersectClip(p.Bounds)
	}
}

func (in *interpreter) intersectClip(r geometry.Rect) {
	if !in.gs.clipped {
		in.gs.clip, in.gs.clipped = r, true
		return
	}
	in.gs.clip, _ = geometry.Intersect(in.gs.clip, r)
}

func (in *interpreter) xobject(name string, op *Operation) {
	info, ok := in.images[name]
	if !ok {
		info = ImageInfo{Name: name}
	}
	kind := KindImage
	if info.Form {
		kind = KindForm
	}
	p := in.newPrimitive(kind)
	p.Name = name
	p.Image = &info
	p.Invocation = op.Raw
	p.Paint = op.Span
	if info.Form {
		p.Bounds = info.Matrix.Multiply(in.gs.ctm).TransformRect(info.BBox)
	} else {
		p.Bounds = in.gs.ctm.TransformRect(geometry.NewRect(0, 0, 1, 1))
	}
	in.prims = append(in.prims, p)
}

func (in *interpreter) inlineImage(op *Operation) {
	info := ImageInfo{}
	if len(op.Operands) == 1 {
		d := op.Operands[0]
		if v, ok := d.DictValue("W", "Width"); ok && v.Kind == Number {
			info.Width = int(v.Num)
		}
		if v, ok := d.DictValue("H", "Height"); ok && v.Kind == Number {
			info.Height = int(v.Num)
		}
	}
	p := in.newPrimitive(KindImage)
	p.Image = &info
	p.Inline = true
	p.Invocation = op.Raw
	p.Paint = op.Span
	p.Bounds = in.gs.ctm.TransformRect(geometry.NewRect(0, 0, 1, 1))
	in.prims = append(in.prims, p)
}

func (in *interpreter) nextLine() {
	in.text.tlm = geometry.Translate(0, -in.text.leading).Multiply(in.text.tlm)
	in.text.tm = in.text.tlm
}

// textRun records an approximate extent for a shown string. Glyph widths
// are not resolved; half an em per byte is assumed.
func (in *interpreter) textRun(op *Operation) {
	n := 0
	for _, a := range op.Operands {
		switch a.Kind {
		case String:
			n += len(a.Str)
		case Array:
			for _, it := range a.Items {
				if it.Kind == String {
					n += len(it.Str)
				}
			}
		}
	}
	width := float64(n) * in.text.size * 0.5
	m := in.text.tm.Multiply(in.gs.ctm)
	p := in.newPrimitive(KindText)
	p.Paint = op.Span
	p.Invocation = op.Raw
	p.Bounds = m.TransformRect(geometry.NewRect(0, 0, width, in.text.size))
	in.prims = append(in.prims, p)
	in.text.tm = geometry.Translate(width, 0).Multiply(in.text.tm)
}
