package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trimborder/engine/batch"
	"trimborder/engine/geometry"
	"trimborder/engine/marks"
	"trimborder/engine/stretch"
	"trimborder/types"
)

var a4 = geometry.NewRect(0, 0, geometry.MM(210), geometry.MM(297))

func fullBleed(id int) *Page {
	return &Page{
		ID:      id,
		Boxes:   geometry.Boxes{Media: a4, Trim: a4, HasTrim: true},
		Content: []byte(fmt.Sprintf("0.2 0.4 0.6 rg 0 0 %g %g re f", a4.URX, a4.URY)),
	}
}

func TestScenarioMixedBatch(t *testing.T) {
	doc := &Document{Pages: []*Page{fullBleed(1), fullBleed(2), fullBleed(3)}}
	doc.Pages[1].Content = []byte("0 0 m (never closed")
	orig := bytes.Clone(doc.Pages[1].Content)

	tracker := batch.NewTracker()
	res, err := New().WithTracker(tracker).ComputeTransform(context.Background(), doc, types.DefaultBorderSpec())
	require.Error(t, err)
	assert.ErrorIs(t, err, batch.ErrPageFailed)
	assert.ErrorIs(t, err, marks.ErrUnreadableContent)

	require.Len(t, res.Pages, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{res.Pages[0].ID, res.Pages[1].ID, res.Pages[2].ID})
	assert.Len(t, res.Done(), 2)
	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].ID)
	var derr *marks.DetectError
	assert.True(t, errors.As(failed[0].Err, &derr))
	assert.Equal(t, map[batch.State]int{batch.Done: 2, batch.Failed: 1}, tracker.Counts())

	// Nothing is applied until the result is committed.
	assert.False(t, doc.Pages[0].Rebuilt)
	assert.Equal(t, a4, doc.Pages[0].Boxes.Trim)

	doc.Commit(res)
	for _, id := range []int{1, 3} {
		p := doc.Page(id)
		assert.True(t, p.Rebuilt)
		assert.NoError(t, p.Err)
		want, _ := geometry.ExpandAll(a4, geometry.MM(3))
		assert.True(t, geometry.Equal(want, p.Boxes.Trim, 1e-9))
		assert.Contains(t, string(p.Content), "-8.504 -8.504 m")
	}
	bad := doc.Page(2)
	assert.False(t, bad.Rebuilt)
	assert.ErrorIs(t, bad.Err, marks.ErrUnreadableContent)
	assert.Equal(t, orig, bad.Content)
	assert.Equal(t, a4, bad.Boxes.Trim)
}

func TestScenarioTransparentEdgeStillDone(t *testing.T) {
	p := fullBleed(1)
	p.Content = []byte(fmt.Sprintf("1 0 0 rg 50 0 %g %g re f", a4.URX-50, a4.URY))
	res, err := New().ComputeTransform(context.Background(), &Document{Pages: []*Page{p}}, types.DefaultBorderSpec())
	require.NoError(t, err)
	require.Len(t, res.Done(), 1)
	w := res.Done()[0].Warnings
	require.Len(t, w, 1)
	assert.Equal(t, stretch.WarnNoBoundaryContent, w[0].Code)
	assert.Equal(t, geometry.Left, w[0].Edge)
	assert.Equal(t, 1, res.Warnings())
}

func TestLoadErrorFailsDetection(t *testing.T) {
	p := fullBleed(7)
	p.LoadErr = errors.New("stream filter unsupported")
	_, err := New().PreviewTransform(context.Background(), p, types.DefaultBorderSpec())
	assert.ErrorIs(t, err, marks.ErrUnreadableContent)
}

func TestAbortPolicy(t *testing.T) {
	doc := &Document{Pages: []*Page{fullBleed(1), fullBleed(2)}}
	doc.Pages[0].Boxes.Media = geometry.NewRect(0, 0, -5, 10)
	spec := types.DefaultBorderSpec()
	spec.BatchFailure = types.AbortOnFirstFailure
	spec.Workers = 1

	res, err := New().ComputeTransform(context.Background(), doc, spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, batch.ErrAborted)
	assert.ErrorIs(t, err, geometry.ErrDegenerate)
	assert.Empty(t, res.Done())
	assert.ErrorIs(t, res.Pages[1].Err, batch.ErrAborted)
}

func TestPreviewDoesNotMutate(t *testing.T) {
	p := fullBleed(1)
	before := *p
	content := bytes.Clone(p.Content)

	out, err := New().PreviewTransform(context.Background(), p, types.DefaultBorderSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, out.ID)
	assert.NotEqual(t, p.Content, out.Content)
	assert.Equal(t, content, p.Content)
	assert.Equal(t, before.Boxes, p.Boxes)
	assert.False(t, p.Rebuilt)
	assert.InDelta(t, -geometry.MM(3), out.Boxes.Trim.LLX, 1e-9)
}

func TestPreviewCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := New().PreviewTransform(ctx, fullBleed(1), types.DefaultBorderSpec())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestComputeRejectsBadInput(t *testing.T) {
	spec := types.DefaultBorderSpec()
	_, err := New().ComputeTransform(context.Background(), &Document{}, spec)
	assert.ErrorIs(t, err, ErrNoPages)

	spec.Width = -1
	_, err = New().ComputeTransform(context.Background(), &Document{Pages: []*Page{fullBleed(1)}}, spec)
	var verr types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "Width")

	_, err = New().ComputeTransform(context.Background(), &Document{Pages: []*Page{fullBleed(1), fullBleed(1)}}, types.DefaultBorderSpec())
	assert.Error(t, err)
}
