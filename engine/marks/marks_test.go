package marks

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/engine/geometry"
	"trimborder/types"
)

var a4 = geometry.NewRect(0, 0, geometry.MM(210), geometry.MM(297))

// markStream draws an L pair of cut marks at corner c, off points away from
// the trim corner and length points long, with the given stroke width.
func markStream(trim geometry.Rect, c geometry.Corner, off, length, width float64) string {
	p := trim.CornerPoint(c)
	o := c.Outward()
	return fmt.Sprintf("%g w %g %g m %g %g l S %g %g m %g %g l S\n",
		width,
		p.X+o.X*off, p.Y, p.X+o.X*(off+length), p.Y,
		p.X, p.Y+o.Y*off, p.X, p.Y+o.Y*(off+length),
	)
}

func allMarks(trim geometry.Rect, off float64) string {
	var b strings.Builder
	for _, c := range geometry.Corners() {
		b.WriteString(markStream(trim, c, off, geometry.MM(5), 0.25))
	}
	return b.String()
}

func detect(t *testing.T, stream string) Set {
	t.Helper()
	set, _, err := DetectPage([]byte(stream), nil, a4, types.DefaultDetectConfig())
	require.NoError(t, err)
	return set
}

func TestDetectFourCorners(t *testing.T) {
	set := detect(t, "0 0 1 rg 10 10 100 100 re f\n"+allMarks(a4, geometry.MM(3)))

	assert.Equal(t, 4, set.Count())
	assert.True(t, set.Confident)
	for _, g := range set.Groups {
		assert.True(t, g.Found, g.Corner.String())
		assert.True(t, g.Confident, g.Corner.String())
		assert.InDelta(t, geometry.MM(3), g.OffsetX, 1e-6)
		assert.InDelta(t, geometry.MM(3), g.OffsetY, 1e-6)
		assert.InDelta(t, geometry.MM(5), g.Horizontal.Length(), 1e-6)
	}
}

func TestDetectNoMarks(t *testing.T) {
	set := detect(t, "0.5 w 0 0 m 100 100 l S 0 0 595 842 re f")
	assert.True(t, set.Empty())
	assert.True(t, set.Confident)
}

func TestDetectIgnores(t *testing.T) {
	tests := []struct {
		name   string
		stream string
	}{
		{"thick strokes", markStream(a4, geometry.LowerLeft, geometry.MM(3), geometry.MM(5), 2)},
		{"unequal lengths", fmt.Sprintf("0.25 w %g 0 m %g 0 l S 0 %g m 0 %g l S",
			-geometry.MM(3), -geometry.MM(8), -geometry.MM(3), -geometry.MM(4))},
		{"outside search band", markStream(a4, geometry.LowerLeft, geometry.MM(12), geometry.MM(5), 0.25)},
		{"crossing the trim", "0.25 w -10 0 m 10 0 l S 0 -10 m 0 10 l S"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := detect(t, tt.stream)
			assert.False(t, set.Groups[geometry.LowerLeft].Found)
		})
	}
}

func TestDetectSingleCorner(t *testing.T) {
	set := detect(t, markStream(a4, geometry.UpperRight, geometry.MM(3), geometry.MM(5), 0.3))
	assert.Equal(t, 1, set.Count())
	g := set.Groups[geometry.UpperRight]
	require.True(t, g.Found)
	assert.InDelta(t, geometry.MM(3), g.Offset(), 1e-6)
	assert.True(t, set.Confident)
}

func TestDetectLowConfidence(t *testing.T) {
	var b strings.Builder
	for _, c := range geometry.Corners() {
		off := geometry.MM(3)
		if c == geometry.UpperRight {
			off = geometry.MM(5)
		}
		b.WriteString(markStream(a4, c, off, geometry.MM(5), 0.25))
	}
	set := detect(t, b.String())
	assert.Equal(t, 4, set.Count())
	assert.False(t, set.Confident)
	assert.False(t, set.Groups[geometry.UpperRight].Confident)
	assert.True(t, set.Groups[geometry.LowerLeft].Confident)
	assert.InDelta(t, geometry.MM(2), set.Spread, 1e-6)
}

func TestDetectUnreadable(t *testing.T) {
	_, _, err := DetectPage([]byte("0 0 m (broken"), nil, a4, types.DefaultDetectConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnreadableContent))
	var de *DetectError
	assert.True(t, errors.As(err, &de))
}

func TestTranslateAndMeasure(t *testing.T) {
	set := detect(t, allMarks(a4, geometry.MM(3)))
	w := geometry.MM(3)

	var d [4]geometry.Point
	for _, c := range geometry.Corners() {
		o := c.Outward()
		d[c] = geometry.Point{X: o.X * w, Y: o.Y * w}
	}
	newTrim, err := geometry.ExpandAll(a4, w)
	require.NoError(t, err)

	moved := set.Translate(d).Measure(newTrim)
	for _, g := range moved.Groups {
		assert.InDelta(t, geometry.MM(3), g.OffsetX, 1e-6)
		assert.InDelta(t, geometry.MM(3), g.OffsetY, 1e-6)
	}
}

func TestDetectCompanionStrokes(t *testing.T) {
	var b strings.Builder
	for _, c := range geometry.Corners() {
		b.WriteString("1 G " + markStream(a4, c, geometry.MM(3), geometry.MM(5), 0.5))
		b.WriteString("0 G " + markStream(a4, c, geometry.MM(3), geometry.MM(5), 0.25))
	}
	set := detect(t, b.String())
	require.Equal(t, 4, set.Count())
	for _, g := range set.Groups {
		segs := g.Segments()
		assert.Len(t, segs, 4, g.Corner.String())
		seen := map[[2]int]bool{}
		for _, s := range segs {
			seen[[2]int{s.Prim, s.Sub}] = true
		}
		assert.Len(t, seen, 4, "every stroke on the mark lines is part of the group")
	}

	w := geometry.MM(3)
	var d [4]geometry.Point
	for _, c := range geometry.Corners() {
		o := c.Outward()
		d[c] = geometry.Point{X: o.X * w, Y: o.Y * w}
	}
	moved := set.Translate(d)
	for i, g := range moved.Groups {
		for j, s := range g.Companions {
			assert.Equal(t, set.Groups[i].Companions[j].A.Add(d[i]), s.A)
		}
	}
}
