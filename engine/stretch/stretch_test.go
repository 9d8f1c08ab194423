package stretch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/engine/content"
	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/types"
)

var trim = geometry.NewRect(0, 0, 200, 300)

func primitives(t *testing.T, stream string, images map[string]content.ImageInfo) []content.Primitive {
	t.Helper()
	ops, err := content.Parse([]byte(stream))
	require.NoError(t, err)
	prims, err := content.Interpret(ops, images)
	require.NoError(t, err)
	return prims
}

func run(t *testing.T, prims []content.Primitive, spec types.BorderSpec) *Plan {
	t.Helper()
	outer, err := geometry.ExpandAll(trim, spec.Width)
	require.NoError(t, err)
	plan, err := Stretch(prims, trim, outer, marks.Set{}, spec)
	require.NoError(t, err)
	return plan
}

type fixedSampler struct {
	edge   map[geometry.Edge]content.Color
	corner content.Color
}

func (f fixedSampler) EdgeColor(e geometry.Edge) (content.Color, bool) {
	c, ok := f.edge[e]
	return c, ok
}

func (f fixedSampler) CornerColor(geometry.Corner) (content.Color, bool) { return f.corner, true }

func TestClampExtendsFullBleedRect(t *testing.T) {
	spec := types.DefaultBorderSpec()
	prims := primitives(t, "0.2 0.4 0.6 rg 0 0 200 300 re f", nil)
	plan := run(t, prims, spec)

	assert.Empty(t, plan.Warnings)
	require.Contains(t, plan.Extensions, 0)
	ext := plan.Extensions[0]
	var pts []geometry.Point
	for _, s := range ext.Path {
		pts = append(pts, s.Pts...)
	}
	assert.True(t, geometry.Equal(plan.New, geometry.RectFromPoints(pts...), 1e-9))
	for _, c := range geometry.Corners() {
		assert.True(t, ext.Corners[c], c.String())
		assert.Equal(t, []Fill{{Kind: FillCovered}}, plan.Patches[c].Fills)
	}
	for _, b := range plan.Bands {
		assert.Equal(t, FillCovered, b.Fills[0].Kind, b.Edge.String())
		assert.Equal(t, content.RGB(0.2, 0.4, 0.6), b.Sample)
	}
}

func TestClampExtendsClipAndUserSpace(t *testing.T) {
	spec := types.DefaultBorderSpec()
	prims := primitives(t, "q 2 0 0 2 0 0 cm 0 0 100 150 re W n 0 0 1 rg 0 0 100 20 re f Q", nil)
	plan := run(t, prims, spec)

	require.Contains(t, plan.Extensions, 0, "clip path")
	require.Contains(t, plan.Extensions, 1, "fill")
	first := plan.Extensions[1].Path[0].Pts[0]
	assert.InDelta(t, -spec.Width/2, first.X, 1e-9)
	assert.InDelta(t, -spec.Width/2, first.Y, 1e-9)

	assert.True(t, plan.Bands[geometry.Top].Degraded)
	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, WarnNoBoundaryContent, plan.Warnings[0].Code)
	assert.Equal(t, geometry.Top, plan.Warnings[0].Edge)
}

func TestScenarioTransparentLeftEdge(t *testing.T) {
	spec := types.DefaultBorderSpec()
	prims := primitives(t, "1 0 0 rg 50 0 150 300 re f", nil)
	plan := run(t, prims, spec)

	left := plan.Bands[geometry.Left]
	assert.True(t, left.Degraded)
	require.Len(t, left.Fills, 1)
	assert.Equal(t, FillSolid, left.Fills[0].Kind)
	assert.Equal(t, content.RGB(1, 1, 1), left.Fills[0].Color)

	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, geometry.Left, plan.Warnings[0].Edge)
	assert.Contains(t, plan.Warnings[0].String(), "left")

	assert.False(t, plan.Bands[geometry.Right].Degraded)
	assert.Contains(t, plan.Extensions, 0)
}

func TestClampStretchesImageStrip(t *testing.T) {
	spec := types.DefaultBorderSpec()
	images := map[string]content.ImageInfo{"Im0": {Name: "Im0", Width: 100, Height: 150}}
	prims := primitives(t, "q 200 0 0 300 0 0 cm /Im0 Do Q", images)
	plan := run(t, prims, spec)

	left := plan.Bands[geometry.Left]
	require.Len(t, left.Fills, 1)
	f := left.Fills[0]
	assert.Equal(t, FillStretch, f.Kind)
	assert.Equal(t, 0, f.Source)

	// One image column, 2pt wide, is stretched across the whole band.
	p := f.Map.Apply(geometry.Point{X: 2, Y: 10})
	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, 10, p.Y, 1e-9)
	p = f.Map.Apply(geometry.Point{X: 0, Y: 10})
	assert.InDelta(t, -spec.Width, p.X, 1e-9)

	top := plan.Bands[geometry.Top].Fills[0]
	q := top.Map.Apply(geometry.Point{X: 5, Y: 298})
	assert.InDelta(t, 300, q.Y, 1e-9)

	patch := plan.Patches[geometry.UpperRight].Fills
	require.Len(t, patch, 1)
	assert.Equal(t, FillStretch, patch[0].Kind)
	r := patch[0].Map.TransformRect(geometry.NewRect(198, 298, 200, 300))
	assert.True(t, geometry.Equal(plan.Patches[geometry.UpperRight].Region, r, 1e-9))
	assert.Empty(t, plan.Warnings)
}

func TestMirrorReflectsInnerStrip(t *testing.T) {
	spec := types.DefaultBorderSpec()
	spec.StretchMode = types.StretchMirror
	prims := primitives(t, "0 g 0 0 5 300 re f 1 0 0 rg 100 0 100 300 re f", nil)
	plan := run(t, prims, spec)

	left := plan.Bands[geometry.Left]
	require.Len(t, left.Fills, 1)
	assert.Equal(t, FillReflect, left.Fills[0].Kind)
	assert.Equal(t, 0, left.Fills[0].Source)
	p := left.Fills[0].Map.Apply(geometry.Point{X: 5, Y: 1})
	assert.InDelta(t, -5, p.X, 1e-9)

	right := plan.Bands[geometry.Right]
	require.Len(t, right.Fills, 1)
	assert.Equal(t, 1, right.Fills[0].Source)
	assert.Empty(t, plan.Extensions)
}

func TestMirrorExtendsClip(t *testing.T) {
	spec := types.DefaultBorderSpec()
	spec.StretchMode = types.StretchMirror
	prims := primitives(t, "q 0 0 200 300 re W n 0 g 0 0 200 300 re f Q", nil)
	plan := run(t, prims, spec)

	require.Contains(t, plan.Extensions, 0, "clip path")
	assert.NotContains(t, plan.Extensions, 1, "mirrored content is copied, not extended")
	assert.Equal(t, [4]bool{true, true, true, true}, plan.Extensions[0].Corners)
	for _, b := range plan.Bands {
		require.Len(t, b.Fills, 1, b.Edge.String())
		assert.Equal(t, FillReflect, b.Fills[0].Kind)
	}

	spec.StretchMode = types.StretchSolidFill
	assert.Empty(t, run(t, prims, spec).Extensions)
}

func TestSolidFillAverages(t *testing.T) {
	spec := types.DefaultBorderSpec()
	spec.StretchMode = types.StretchSolidFill
	prims := primitives(t, "0 g 0 0 100 300 re f 1 g 100 0 100 300 re f", nil)
	plan := run(t, prims, spec)

	bottom := plan.Bands[geometry.Bottom]
	require.Len(t, bottom.Fills, 1)
	assert.Equal(t, FillSolid, bottom.Fills[0].Kind)
	assert.Equal(t, content.Gray(0.5), bottom.Fills[0].Color)
	assert.Equal(t, content.Gray(0), plan.Bands[geometry.Left].Fills[0].Color)
	assert.Equal(t, content.Gray(1), plan.Bands[geometry.Right].Fills[0].Color)

	ll := plan.Patches[geometry.LowerLeft].Fills
	require.Len(t, ll, 1)
	assert.Equal(t, FillSolid, ll[0].Kind)
	assert.Equal(t, content.Gray(0), ll[0].Color)
}

func TestSolidFillSamplesImages(t *testing.T) {
	spec := types.DefaultBorderSpec()
	spec.StretchMode = types.StretchSolidFill
	red := content.RGB(1, 0, 0)
	images := map[string]content.ImageInfo{"Im0": {
		Name: "Im0", Width: 10, Height: 10,
		Sampler: fixedSampler{
			edge:   map[geometry.Edge]content.Color{geometry.Left: red, geometry.Top: content.Gray(0.25)},
			corner: content.Gray(1),
		},
	}}
	prims := primitives(t, "q 200 0 0 300 0 0 cm /Im0 Do Q", images)
	plan := run(t, prims, spec)

	assert.Equal(t, red, plan.Bands[geometry.Left].Fills[0].Color)
	assert.Equal(t, content.Gray(0.25), plan.Bands[geometry.Top].Fills[0].Color)
	// No sample for the right side: the border colour is used.
	assert.Equal(t, content.RGB(1, 1, 1), plan.Bands[geometry.Right].Fills[0].Color)
	assert.False(t, plan.Bands[geometry.Right].Degraded)
	assert.Equal(t, content.Gray(1), plan.Patches[geometry.LowerLeft].Fills[0].Color)
}

func TestCornerAverage(t *testing.T) {
	spec := types.DefaultBorderSpec()
	spec.CornerFill = types.CornerAverage
	prims := primitives(t, "0 g 0 0 100 150 re f 1 g 100 0 100 150 re f", nil)
	plan := run(t, prims, spec)

	lr := plan.Patches[geometry.LowerRight].Fills
	require.Len(t, lr, 1)
	assert.Equal(t, FillSolid, lr[0].Kind)
	// Right band samples white, bottom band averages black and white.
	assert.Equal(t, content.Gray(0.75), lr[0].Color)

	// Upper corners blend the white border of the empty top band.
	ul := plan.Patches[geometry.UpperLeft].Fills[0]
	assert.Equal(t, content.SpaceRGB, ul.Color.Space)
}

func TestMarksAreNotBoundaryContent(t *testing.T) {
	spec := types.DefaultBorderSpec()
	stream := fmt.Sprintf("0.25 w %g 0 m %g 0 l S 0 %g m 0 %g l S",
		-geometry.MM(3), -geometry.MM(8), -geometry.MM(3), -geometry.MM(8))
	prims := primitives(t, stream, nil)
	set := marks.Detect(prims, trim, spec.Detect)
	require.Equal(t, 1, set.Count())

	outer, err := geometry.ExpandAll(trim, spec.Width)
	require.NoError(t, err)
	plan, err := Stretch(prims, trim, outer, set, spec)
	require.NoError(t, err)
	assert.Len(t, plan.Warnings, 4)
	assert.Empty(t, plan.Extensions)
}

func TestStretchRejectsBadInput(t *testing.T) {
	spec := types.DefaultBorderSpec()
	spec.BorderColor = "white"
	_, err := Stretch(nil, trim, geometry.NewRect(-1, -1, 201, 301), marks.Set{}, spec)
	assert.Error(t, err)

	spec = types.DefaultBorderSpec()
	_, err = Stretch(nil, trim, geometry.NewRect(1, 1, 201, 301), marks.Set{}, spec)
	assert.Error(t, err)
}
