package content

import (
	"fmt"
	"strconv"
	"strings"
)

// Space is a device colour space. Colours in any other space are Unknown.
type Space int

const (
	SpaceUnknown Space = iota
	SpaceGray
	SpaceRGB
	SpaceCMYK
)

func (s Space) components() int {
	switch s {
	case SpaceGray:
		return 1
	case SpaceRGB:
		return 3
	case SpaceCMYK:
		return 4
	}
	return 0
}

type Color struct {
	Space Space
	V     [4]float64
}

func Gray(v float64) Color         { return Color{Space: SpaceGray, V: [4]float64{v}} }
func RGB(r, g, b float64) Color    { return Color{Space: SpaceRGB, V: [4]float64{r, g, b}} }
func CMYK(c, m, y, k float64) Color { return Color{Space: SpaceCMYK, V: [4]float64{c, m, y, k}} }

func (c Color) Known() bool { return c.Space != SpaceUnknown }

// ToRGB is a naive device conversion, good enough for blending fills.
func (c Color) ToRGB() Color {
	switch c.Space {
	case SpaceGray:
		return RGB(c.V[0], c.V[0], c.V[0])
	case SpaceCMYK:
		k := c.V[3]
		return RGB((1-c.V[0])*(1-k), (1-c.V[1])*(1-k), (1-c.V[2])*(1-k))
	}
	return c
}

func (c Color) String() string {
	switch c.Space {
	case SpaceGray:
		return fmt.Sprintf("gray(%.3f)", c.V[0])
	case SpaceRGB:
		return fmt.Sprintf("rgb(%.3f,%.3f,%.3f)", c.V[0], c.V[1], c.V[2])
	case SpaceCMYK:
		return fmt.Sprintf("cmyk(%.3f,%.3f,%.3f,%.3f)", c.V[0], c.V[1], c.V[2], c.V[3])
	}
	return "unknown"
}

// Average blends the known colours in cs. Colours sharing one space are
// averaged in that space, mixed spaces are averaged in RGB.
func Average(cs ...Color) (Color, bool) {
	var known []Color
	for _, c := range cs {
		if c.Known() {
			known = append(known, c)
		}
	}
	if len(known) == 0 {
		return Color{}, false
	}
	space := known[0].Space
	for _, c := range known[1:] {
		if c.Space != space {
			space = SpaceRGB
			break
		}
	}
	out := Color{Space: space}
	for _, c := range known {
		if c.Space != space {
			c = c.ToRGB()
		}
		for i := 0; i < space.components(); i++ {
			out.V[i] += c.V[i]
		}
	}
	for i := 0; i < space.components(); i++ {
		out.V[i] /= float64(len(known))
	}
	return out, true
}

// ParseHex parses #RGB or #RRGGBB into an RGB colour.
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return RGB(float64(v>>16&0xFF)/255, float64(v>>8&0xFF)/255, float64(v&0xFF)/255), nil
}
